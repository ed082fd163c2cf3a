// Package record archives published status messages as hourly
// zstd-compressed JSON Lines files.
package record

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/infectnet/server/internal/core/player"
	"github.com/infectnet/server/internal/core/status"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

// Entry is one line of a recording.
type Entry struct {
	Time   time.Time      `json:"time"`
	Player string         `json:"player"`
	Status status.Message `json:"status"`
}

// Recorder implements status.Consumer. Files are named
// <prefix>-YYYY-MM-DD-HH.jsonl.zst under the base directory and rotate on
// the UTC hour.
type Recorder struct {
	baseDir string
	prefix  string
	now     func() time.Time
	log     *zap.Logger

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
	written uint64
}

var _ status.Consumer = (*Recorder)(nil)

func NewRecorder(baseDir, prefix string, log *zap.Logger) *Recorder {
	return &Recorder{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
		log:     log,
	}
}

func (r *Recorder) Consume(p *player.Player, m status.Message) {
	if err := r.Write(Entry{Time: r.now().UTC(), Player: p.Username(), Status: m}); err != nil {
		r.log.Warn("record status failed", zap.String("player", p.Username()), zap.Error(err))
	}
}

// Write appends one entry, rotating first if the hour changed.
func (r *Recorder) Write(e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	hour := e.Time.UTC().Format("2006-01-02-15")
	if hour != r.curHour || r.w == nil {
		if err := r.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := r.w.Write(b); err != nil {
		return err
	}
	if err := r.w.WriteByte('\n'); err != nil {
		return err
	}
	r.written++
	return r.w.Flush()
}

// Written returns the number of entries recorded since creation.
func (r *Recorder) Written() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeLocked()
}

func (r *Recorder) rotateLocked(hour string) error {
	if err := r.closeLocked(); err != nil {
		return err
	}
	path := r.pathForHour(hour)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create record dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open record file: %w", err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	r.f = f
	r.enc = enc
	r.w = bufio.NewWriterSize(enc, 64*1024)
	r.curHour = hour
	r.log.Debug("record file opened", zap.String("path", path))
	return nil
}

func (r *Recorder) closeLocked() error {
	var err error
	if r.w != nil {
		_ = r.w.Flush()
	}
	if r.enc != nil {
		err = r.enc.Close()
		r.enc = nil
	}
	if r.f != nil {
		_ = r.f.Close()
		r.f = nil
	}
	r.w = nil
	r.curHour = ""
	return err
}

func (r *Recorder) pathForHour(hour string) string {
	return filepath.Join(r.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", r.prefix, hour))
}
