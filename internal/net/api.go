package net

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/infectnet/server/internal/core/player"
	"github.com/infectnet/server/internal/core/script"
	"go.uber.org/zap"
)

const maxSourceBytes = 256 << 10

// Control is the part of the engine the HTTP API calls.
type Control interface {
	CreateOrGetPlayer(name string) (*player.Player, error)
	CompileAndUpload(p *player.Player, src string) []script.CompilationError
	SourceCode(p *player.Player) (string, bool)
	FindPlayer(name string) (*player.Player, bool)
}

type playerResponse struct {
	Name string `json:"name"`
}

type uploadResponse struct {
	Errors []script.CompilationError `json:"errors"`
}

// API serves player creation and code upload:
//
//	POST /players/{name}        create or fetch a player
//	PUT  /players/{name}/code   upload source, returns compile errors
//	GET  /players/{name}/code   last uploaded source
type API struct {
	ctl Control
	log *zap.Logger
}

func NewAPI(ctl Control, log *zap.Logger) *API {
	return &API{ctl: ctl, log: log}
}

// Register adds the API routes to mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /players/{name}", a.createPlayer)
	mux.HandleFunc("PUT /players/{name}/code", a.uploadCode)
	mux.HandleFunc("GET /players/{name}/code", a.sourceCode)
}

func (a *API) createPlayer(w http.ResponseWriter, r *http.Request) {
	p, err := a.ctl.CreateOrGetPlayer(r.PathValue("name"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, playerResponse{Name: p.Username()})
}

func (a *API) uploadCode(w http.ResponseWriter, r *http.Request) {
	p, err := a.ctl.CreateOrGetPlayer(r.PathValue("name"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	src, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSourceBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "source too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	errs := a.ctl.CompileAndUpload(p, string(src))
	if errs == nil {
		errs = []script.CompilationError{}
	}
	a.log.Debug("code upload", zap.String("player", p.Username()), zap.Int("errors", len(errs)))
	writeJSON(w, http.StatusOK, uploadResponse{Errors: errs})
}

func (a *API) sourceCode(w http.ResponseWriter, r *http.Request) {
	p, ok := a.ctl.FindPlayer(r.PathValue("name"))
	if !ok {
		http.Error(w, "unknown player", http.StatusNotFound)
		return
	}
	src, ok := a.ctl.SourceCode(p)
	if !ok {
		http.Error(w, "no code uploaded", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, src)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
