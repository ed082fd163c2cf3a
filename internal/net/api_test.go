package net

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/infectnet/server/internal/core/player"
	"github.com/infectnet/server/internal/core/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeControl struct {
	players *player.Service
	sources map[*player.Player]string
}

func (f *fakeControl) CreateOrGetPlayer(name string) (*player.Player, error) {
	return f.players.GetOrCreate(name)
}

func (f *fakeControl) CompileAndUpload(p *player.Player, src string) []script.CompilationError {
	f.sources[p] = src
	if strings.Contains(src, "==") {
		return []script.CompilationError{{Line: 1, Column: 3, Message: "unexpected '='"}}
	}
	return nil
}

func (f *fakeControl) SourceCode(p *player.Player) (string, bool) {
	src, ok := f.sources[p]
	return src, ok
}

func (f *fakeControl) FindPlayer(name string) (*player.Player, bool) {
	return f.players.ByUsername(name)
}

func newTestAPI(t *testing.T) *httptest.Server {
	t.Helper()
	ctl := &fakeControl{players: player.NewService(zap.NewNop()), sources: map[*player.Player]string{}}
	mux := http.NewServeMux()
	NewAPI(ctl, zap.NewNop()).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAPICreatePlayer(t *testing.T) {
	srv := newTestAPI(t)

	resp := do(t, http.MethodPost, srv.URL+"/players/alice", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got playerResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "alice", got.Name)

	resp = do(t, http.MethodPost, srv.URL+"/players/x", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIUploadAndFetchCode(t *testing.T) {
	srv := newTestAPI(t)
	url := fmt.Sprintf("%s/players/%s/code", srv.URL, "alice")

	resp := do(t, http.MethodGet, url, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodPut, url, "x == 1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var up uploadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&up))
	require.Len(t, up.Errors, 1)
	assert.Equal(t, 1, up.Errors[0].Line)

	resp = do(t, http.MethodGet, url, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "x == 1", string(body))
}

func TestAPIUploadCleanSourceReturnsEmptyErrorList(t *testing.T) {
	srv := newTestAPI(t)

	resp := do(t, http.MethodPut, srv.URL+"/players/alice/code", "x = 1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"errors":[]}`, string(body))
}

func TestAPIUploadRejectsLargeSource(t *testing.T) {
	srv := newTestAPI(t)
	resp := do(t, http.MethodPut, srv.URL+"/players/alice/code", strings.Repeat("a", maxSourceBytes+1))
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}
