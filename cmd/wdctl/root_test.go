package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/webdriverify/internal/shared/types"
)

func fakeProxy(t *testing.T) *httptest.Server {
	t.Helper()
	confirm := &types.Confirmation{Cmd: types.Command{ID: "cmd_1", Name: "Forward"}, Data: "forward complete"}
	png := base64.StdEncoding.EncodeToString([]byte("\x89PNG\r\n\x1a\n"))

	routes := map[string]types.Payload{
		"POST /session":              {SessionID: "s1", Value: map[string]interface{}{"sessionId": "s1"}},
		"DELETE /session/s1":         {SessionID: "s1"},
		"POST /session/s1/forward":   {SessionID: "s1"},
		"POST /session/s1/url":       {SessionID: "s1"},
		"GET /session/s1/title":      {SessionID: "s1", Value: "Example Domain", Confirm: confirm},
		"GET /session/s1/screenshot": {SessionID: "s1", Value: png},
		"POST /session/s1/execute":   {SessionID: "s1", Value: map[string]interface{}{"answer": 42}, Confirm: confirm},
		"GET /status":                {Value: map[string]interface{}{"ready": true}},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		p, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status": 9,
				"value":  types.ErrorValue{Error: "unknown command", Message: r.URL.Path},
			})
			return
		}
		json.NewEncoder(w).Encode(p)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, srv *httptest.Server, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("WDCTL_SESSION", "")
	cmd := newRootCommand("test")
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--proxy", srv.URL}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestSessionNew(t *testing.T) {
	out, _, err := run(t, fakeProxy(t), "session", "new", "-c", "browserName=firefox", "-c", "headless=true")
	require.NoError(t, err)
	assert.Equal(t, "s1\n", out)
}

func TestSessionNewBadCapability(t *testing.T) {
	_, _, err := run(t, fakeProxy(t), "session", "new", "-c", "nope")
	assert.Error(t, err)
}

func TestSessionDelete(t *testing.T) {
	srv := fakeProxy(t)
	_, _, err := run(t, srv, "session", "delete", "s1")
	require.NoError(t, err)

	_, _, err = run(t, srv, "session", "delete")
	assert.ErrorContains(t, err, "no session")
}

func TestTitlePrintsConfirmation(t *testing.T) {
	out, errOut, err := run(t, fakeProxy(t), "-s", "s1", "title")
	require.NoError(t, err)
	assert.Equal(t, "Example Domain\n", out)
	assert.Equal(t, "confirmed: forward complete (Forward cmd_1)\n", errOut)
}

func TestNavigation(t *testing.T) {
	srv := fakeProxy(t)

	_, _, err := run(t, srv, "-s", "s1", "forward")
	assert.NoError(t, err)

	_, _, err = run(t, srv, "-s", "s1", "url", "http://example.com/")
	assert.NoError(t, err)

	_, _, err = run(t, srv, "-s", "s1", "back")
	assert.ErrorContains(t, err, "unknown command")
}

func TestScreenshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.png")
	out, _, err := run(t, fakeProxy(t), "-s", "s1", "screenshot", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG\r\n\x1a\n"), data)
}

func TestExecuteAndStatus(t *testing.T) {
	srv := fakeProxy(t)

	out, errOut, err := run(t, srv, "-s", "s1", "execute", "return {answer: 42}")
	require.NoError(t, err)
	assert.JSONEq(t, `{"answer": 42}`, out)
	assert.Contains(t, errOut, "confirmed: forward complete")

	out, errOut, err = run(t, srv, "status")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ready": true}`, out)
	assert.Empty(t, errOut)
}

func TestParseCaps(t *testing.T) {
	caps, err := parseCaps([]string{"browserName=chrome", "acceptInsecureCerts=true", "x=a=b"})
	require.NoError(t, err)
	assert.Equal(t, types.Capabilities{
		"browserName":         "chrome",
		"acceptInsecureCerts": true,
		"x":                   "a=b",
	}, caps)

	_, err = parseCaps([]string{"=v"})
	assert.Error(t, err)
}
