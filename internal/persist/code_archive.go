package persist

import (
	"context"
	"time"

	"github.com/infectnet/server/internal/core/script"
)

// CodeArchive keeps the latest source each player uploaded.
type CodeArchive struct {
	db *DB
}

func NewCodeArchive(db *DB) *CodeArchive {
	return &CodeArchive{db: db}
}

var _ script.Archive = (*CodeArchive)(nil)

// Save upserts a player's source. Re-saving identical source leaves the
// row untouched.
func (a *CodeArchive) Save(ctx context.Context, username, source string) error {
	_, err := a.db.SQL.ExecContext(ctx, a.db.rebind(
		`INSERT INTO player_codes (username, source, digest, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (username) DO UPDATE
		 SET source = excluded.source, digest = excluded.digest, updated_at = excluded.updated_at
		 WHERE player_codes.digest <> excluded.digest`),
		username, source, script.Digest(source), time.Now().UTC(),
	)
	return err
}

// LoadAll returns every archived source keyed by username.
func (a *CodeArchive) LoadAll(ctx context.Context) (map[string]string, error) {
	rows, err := a.db.SQL.QueryContext(ctx, `SELECT username, source FROM player_codes ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var name, src string
		if err := rows.Scan(&name, &src); err != nil {
			return nil, err
		}
		out[name] = src
	}
	return out, rows.Err()
}
