package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("UNCOVER_HOME", dir)
	return dir
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-level", "silent"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCLI(t, args...)
	require.NoError(t, err, "uncover %s", strings.Join(args, " "))
	return out
}

func TestVersionCmd(t *testing.T) {
	testHome(t)
	out := mustRun(t, "version")
	assert.Contains(t, out, "uncover dev")
}

func TestSessionCommands(t *testing.T) {
	testHome(t)

	assert.Equal(t, "No sessions.\n", mustRun(t, "session", "list"))
	assert.Equal(t, "Session 1\n", mustRun(t, "session", "new"))
	assert.Equal(t, "Session 2\n", mustRun(t, "session", "new"))

	mustRun(t, "session", "rename", "Session 1", "Trip plans")
	out := mustRun(t, "session", "list")
	assert.Contains(t, out, "Trip plans")
	assert.Contains(t, out, "Session 2")

	mustRun(t, "session", "delete", "Session 2")
	out = mustRun(t, "sessions", "list")
	assert.NotContains(t, out, "Session 2")
	assert.Contains(t, out, "Session 1")
}

func fakeEndpoint(t *testing.T, status int, result string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/test":
			json.NewEncoder(w).Encode(map[string]string{"message": "pong"})
		case r.Method == http.MethodPost:
			if r.Header.Get("Authorization") != "Bearer tok" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			var body struct {
				Prompt string `json:"prompt"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Prompt == "" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.WriteHeader(status)
			if status != http.StatusOK {
				w.Write([]byte(result))
				return
			}
			json.NewEncoder(w).Encode(map[string]string{"result": result})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestChatCmd_API(t *testing.T) {
	testHome(t)
	ts := fakeEndpoint(t, http.StatusOK, " Paris ")

	out := mustRun(t, "chat", "Session 1", "Capital", "of", "France?",
		"--mode", "api", "--api-url", ts.URL, "--token", "tok")
	assert.Equal(t, "Paris\n", out)

	out = mustRun(t, "session", "history", "Session 1")
	assert.Equal(t, "User: Capital of France?\nAI: Paris\n", out)

	out = mustRun(t, "session", "history", "-q", "Session 1")
	assert.Equal(t, "Capital of France?\n", out)
}

func TestChatCmd_APIFailure(t *testing.T) {
	testHome(t)
	ts := fakeEndpoint(t, http.StatusInternalServerError, "boom")

	_, err := runCLI(t, "chat", "Session 1", "hi", "--mode", "api", "--api-url", ts.URL, "--token", "tok")
	require.Error(t, err)
	assert.Equal(t, "Error: API returned status code 500 with message: boom", err.Error())

	// The failure is stored as the answer.
	out := mustRun(t, "session", "history", "Session 1")
	assert.Contains(t, out, "AI: Error: API returned status code 500")
}

func TestChatCmd_InvalidMode(t *testing.T) {
	testHome(t)

	_, err := runCLI(t, "chat", "Session 1", "hi", "--mode", "bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid mode specified")
}

func TestEndpointCommands(t *testing.T) {
	testHome(t)
	ts := fakeEndpoint(t, http.StatusOK, "unused")
	u, err := url.Parse(ts.URL)
	require.NoError(t, err)

	assert.Equal(t, "No endpoint saved.\n", mustRun(t, "endpoint", "show"))

	_, err = runCLI(t, "endpoint", "save", "example.com", "eighty", "https", "secret")
	assert.Error(t, err)

	out := mustRun(t, "endpoint", "save", u.Hostname(), u.Port(), "http", "secret")
	assert.Equal(t, "Saved endpoint http://"+u.Host+"/model\n", out)

	out = mustRun(t, "endpoint", "show")
	assert.Contains(t, out, "http://"+u.Host+"/model")
	assert.Contains(t, out, "**cret")
	assert.NotContains(t, out, "secret")

	assert.Equal(t, "Success: pong\n", mustRun(t, "endpoint", "test"))
}

func TestEndpointTest_NothingSaved(t *testing.T) {
	testHome(t)

	_, err := runCLI(t, "endpoint", "test")
	require.Error(t, err)
	assert.Equal(t, "Please fill in all fields.", err.Error())
}

func TestModelsCommands(t *testing.T) {
	testHome(t)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/tags", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"models":[{"name":"llama3:latest","model":"llama3:latest"},{"name":"phi3:mini"}]}`))
	})
	mux.HandleFunc("POST /api/pull", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success"}`))
	})
	mux.HandleFunc("DELETE /api/delete", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"model not found"}`))
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	mustRun(t, "config", "set", "chat.ollamaUrl", ts.URL)

	assert.Equal(t, "llama3:latest\nphi3:mini\n", mustRun(t, "models", "list"))
	assert.Equal(t, "Model 'mistral' downloaded successfully.\n", mustRun(t, "models", "pull", "mistral"))

	_, err := runCLI(t, "models", "delete", "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Error deleting model 'ghost'")
}

func TestConfigCommands(t *testing.T) {
	home := testHome(t)

	assert.Equal(t, filepath.Join(home, "config.yaml")+"\n", mustRun(t, "config", "path"))

	assert.Equal(t, "Set chat.model = mistral\n", mustRun(t, "config", "set", "chat.model", "mistral"))
	assert.Equal(t, "mistral\n", mustRun(t, "config", "get", "chat.model"))

	mustRun(t, "config", "set", "summary.interval", "60")
	assert.Equal(t, "60\n", mustRun(t, "config", "get", "summary.interval"))
	assert.Contains(t, mustRun(t, "config", "get", "chat"), "model: mistral")

	_, err := runCLI(t, "config", "set", "chat.mode", "bogus")
	assert.Error(t, err)
	_, err = runCLI(t, "config", "get", "chat.mode")
	assert.Error(t, err, "rejected values must not be written")

	assert.Equal(t, "Unset chat.model\n", mustRun(t, "config", "unset", "chat.model"))
	_, err = runCLI(t, "config", "get", "chat.model")
	assert.Error(t, err)

	_, err = runCLI(t, "config", "set", "agents.default", "x")
	assert.ErrorContains(t, err, "unknown config section")
}

func TestConfigFlag(t *testing.T) {
	home := testHome(t)
	alt := filepath.Join(home, "alt.yaml")

	mustRun(t, "--config", alt, "config", "set", "gateway.port", "9001")
	assert.Equal(t, alt+"\n", mustRun(t, "--config", alt, "config", "path"))
	assert.Equal(t, "9001\n", mustRun(t, "--config", alt, "config", "get", "gateway.port"))
}

func TestStatusCmd(t *testing.T) {
	testHome(t)

	out := mustRun(t, "status")
	assert.Contains(t, out, "uncover dev")
	assert.Contains(t, out, "not found (using defaults)")
	assert.Contains(t, out, "model=llama3 mode=local")
	assert.Contains(t, out, "not created yet")

	mustRun(t, "session", "new")
	out = mustRun(t, "status")
	assert.Contains(t, out, "(1 sessions, schema v2)")
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"true", true},
		{"FALSE", false},
		{"42", 42},
		{"-7", -7},
		{"1.5", 1.5},
		{"llama3", "llama3"},
		{"8919abc", "8919abc"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseValue(tt.in))
		})
	}
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", maskSecret(""))
	assert.Equal(t, "***", maskSecret("abc"))
	assert.Equal(t, "****5678", maskSecret("12345678"))
	assert.Equal(t, strings.Repeat("*", 6)+"wxyz", maskSecret("abcdefwxyz"))
}
