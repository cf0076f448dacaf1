package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/listadmin/internal/model"
)

var mailmanResponses = map[string]string{
	"/3.0/system/versions": `{"mailman_version": "GNU Mailman 3.3.9", "api_version": "3.1"}`,
	"/3.0/lists": `{"total_size": 1, "entries": [
		{"list_id": "dev.example.com", "fqdn_listname": "dev@example.com",
		 "display_name": "Dev", "mail_host": "example.com"}]}`,
	"/3.0/lists/dev.example.com/roster/owner":     `{"entries": [{"email": "alice@example.com"}]}`,
	"/3.0/lists/dev.example.com/roster/moderator": `{"total_size": 0}`,
	"/3.0/lists/dev.example.com/held": `{"entries": [
		{"request_id": 3, "hold_date": "2024-05-10T09:30:00", "sender": "carol@example.com",
		 "subject": "Release notes", "msg": "Subject: Release notes\n\nTagged.\n", "reason": "Post by non-member"}]}`,
	"/3.0/lists/dev.example.com/requests": `{"entries": [
		{"token": "abc123", "request_date": "2024-05-10T10:00:00.123456",
		 "email": "bob@example.com", "list_id": "dev.example.com"}]}`,
}

// setup starts a fake Mailman server and writes a configuration file
// pointing at it. It returns the global flags to pass to Run.
func setup(t *testing.T) []string {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, pass, _ := r.BasicAuth(); pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, found := mailmanResponses[r.URL.EscapedPath()]
		if r.Method != http.MethodGet || !found {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	config := fmt.Sprintf(`mailman:
  api_url: %s
  api_user: restadmin
  api_pass: secret
  timeout_sec: 5
database:
  path: %s
log:
  level: error
viewer:
  email: alice@example.com
`, srv.URL, filepath.Join(dir, "listadmin.db"))
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0o644))

	return []string{"listadmin", "--config", configPath}
}

func run(t *testing.T, args []string, stdin string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := Run(strings.NewReader(stdin), &out, &errOut, args, make(chan os.Signal))
	return code, out.String(), errOut.String()
}

func TestUnknownCommand(t *testing.T) {
	code, _, errOut := run(t, []string{"listadmin", "frobnicate"}, "")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "unknown command: frobnicate")
	assert.Contains(t, errOut, "set-password")
}

func TestHelp(t *testing.T) {
	code, out, _ := run(t, []string{"listadmin", "help"}, "")
	assert.Equal(t, 0, code)
	for _, name := range []string{"dashboard", "sync", "tasks", "stats", "check", "set-password", "init"} {
		assert.Contains(t, out, name)
	}

	code, out, _ = run(t, []string{"listadmin", "stats", "--help"}, "")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "--out")
}

func TestSyncIsIdempotent(t *testing.T) {
	args := setup(t)

	code, out, errOut := run(t, append(args, "sync"), "")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "1 new moderation task(s), 1 new subscription task(s), 0 removed\n", out)

	code, out, errOut = run(t, append(args, "sync"), "")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "0 new moderation task(s), 0 new subscription task(s), 0 removed\n", out)
}

func TestTasks(t *testing.T) {
	args := setup(t)

	code, out, errOut := run(t, append(args, "tasks"), "")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "no pending tasks\n", out)

	code, _, errOut = run(t, append(args, "sync"), "")
	require.Equal(t, 0, code, errOut)

	code, out, errOut = run(t, append(args, "tasks"), "")
	require.Equal(t, 0, code, errOut)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "abc123")
	assert.Contains(t, lines[0], "Subscription Request from Bob in Dev")
	assert.Contains(t, lines[1], "Message held for moderation from Carol in Dev")

	code, out, errOut = run(t, append(args, "tasks", "--type", "moderation"), "")
	require.Equal(t, 0, code, errOut)
	assert.NotContains(t, out, "abc123")
	assert.Contains(t, out, "moderation   3 ")

	code, out, errOut = run(t, append(args, "tasks", "--list", "other.example.com"), "")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "no pending tasks\n", out)

	code, out, errOut = run(t, append(args, "tasks", "-n", "1"), "")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, 1, strings.Count(out, "\n"))

	code, _, errOut = run(t, append(args, "tasks", "--type", "bounce"), "")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, `unknown task type "bounce"`)
}

func TestStatsExport(t *testing.T) {
	args := setup(t)

	code, out, errOut := run(t, append(args, "stats"), "")
	require.Equal(t, 0, code, errOut)

	var graph map[string]map[string]int
	require.NoError(t, json.Unmarshal([]byte(out), &graph))
	assert.Len(t, graph["subscriptions"], 31)
	assert.Len(t, graph["moderations"], 31)

	path := filepath.Join(t.TempDir(), "graph.json")
	code, out, errOut = run(t, append(args, "stats", "--out", path), "")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "wrote "+path)
	assert.FileExists(t, path)
}

func TestCheck(t *testing.T) {
	args := setup(t)

	code, out, errOut := run(t, append(args, "check"), "")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "GNU Mailman 3.3.9")
}

func TestCheckRejectedCredentials(t *testing.T) {
	args := setup(t)
	t.Setenv("LISTADMIN_MAILMAN_API_PASS", "wrong")

	code, _, errOut := run(t, append(args, "check"), "")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "auth error (401)")
}

func TestInitWritesConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")
	args := []string{"listadmin", "--config", configPath, "init",
		"--api-url", "http://mailman.example.com:8001/", "--email", "bob@example.com", "--superuser"}

	code, out, errOut := run(t, args, "")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "wrote "+configPath)

	cfg, err := model.LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, "http://mailman.example.com:8001", cfg.Mailman.APIURL)
	assert.Equal(t, "bob@example.com", cfg.Viewer.Email)
	assert.True(t, cfg.Viewer.Superuser)
	assert.Empty(t, cfg.Mailman.APIPass)

	code, _, errOut = run(t, args, "")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "already exists")
}

func TestReadSecret(t *testing.T) {
	pass, err := readSecret(strings.NewReader("s3cret\r\nignored\n"))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", pass)

	pass, err = readSecret(strings.NewReader("no-newline"))
	require.NoError(t, err)
	assert.Equal(t, "no-newline", pass)

	_, err = readSecret(strings.NewReader("\n"))
	assert.EqualError(t, err, "empty password")
}

func TestSettingsSaverValidate(t *testing.T) {
	args := setup(t)
	cfg, err := model.LoadConfig(args[2])
	require.NoError(t, err)

	version, err := settingsSaver{path: args[2]}.Validate(context.Background(), cfg.Mailman, "")
	require.NoError(t, err)
	assert.Equal(t, "GNU Mailman 3.3.9", version)

	_, err = settingsSaver{path: args[2]}.Validate(context.Background(), cfg.Mailman, "wrong")
	assert.ErrorContains(t, err, "auth error (401)")
}
