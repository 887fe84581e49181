package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/kaltura-client/internal/testutil"
	"github.com/Sternrassler/kaltura-client/pkg/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPartnerID  = 4242
	testAppTokenID = "0_apptoken"
	testAppToken   = "0123456789abcdef"
	testSecret     = "s3cret"
)

func newMock(t *testing.T) *testutil.MockKaltura {
	t.Helper()
	mock := testutil.NewMockKaltura(testPartnerID)
	mock.SetAppToken(testAppTokenID, testAppToken)
	mock.SetSecret(testSecret)
	mock.SetEntries([]testutil.MockEntry{
		{ID: "0_a", ReferenceID: "ref-a", CreatedAt: 1, Name: "alpha"},
		{ID: "0_b", ReferenceID: "ref-b", CreatedAt: 2, Name: "bravo"},
		{ID: "0_c", ReferenceID: "ref-c", CreatedAt: 3, Name: "charlie"},
	})
	t.Cleanup(mock.Close)
	return mock
}

// writeConfig writes a configuration for mock. credentials is the YAML
// of the credential keys under kaltura.
func writeConfig(t *testing.T, mock *testutil.MockKaltura, credentials string) string {
	t.Helper()
	content := fmt.Sprintf(`kaltura:
  url: %s
  partner_id: %d
%s
retry:
  max_attempts: 2
  delay: 1ms
  max_delay: 5ms
breaker:
  disabled: true
logging:
  level: error
`, mock.URL(), testPartnerID, credentials)

	path := filepath.Join(t.TempDir(), "kaltura.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func appTokenConfig(t *testing.T, mock *testutil.MockKaltura) string {
	return writeConfig(t, mock, fmt.Sprintf("  token_id: %s\n  token: %s", testAppTokenID, testAppToken))
}

// run executes the command line and returns its standard output and error
// output.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(""))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func TestRootCommand_Structure(t *testing.T) {
	cmd := newRootCmd()
	assert.Equal(t, "kaltura-tool", cmd.Use)

	for _, flag := range []string{"config", "log-level", "pretty", "metrics-addr"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "missing persistent flag --%s", flag)
	}

	want := []string{"lookup", "resolve", "count", "export", "report", "upload", "upload-url",
		"delete", "block", "apptoken", "session"}
	for _, name := range want {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}

	for _, name := range []string{"add", "list", "delete"} {
		sub, _, err := cmd.Find([]string{"apptoken", name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}
}

func TestRootCommand_InvalidLogLevel(t *testing.T) {
	mock := newMock(t)
	_, _, err := run(t, "--config", appTokenConfig(t, mock), "--log-level", "loud", "count")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown log level")
	assert.Zero(t, mock.Negotiations())
}

func TestRootCommand_MissingConfig(t *testing.T) {
	_, _, err := run(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "count")
	assert.Error(t, err)
}

func TestCount(t *testing.T) {
	mock := newMock(t)
	out, _, err := run(t, "--config", appTokenConfig(t, mock), "count")
	require.NoError(t, err)
	assert.Equal(t, "3\n", out)
	assert.Equal(t, 1, mock.Negotiations())
}

func TestCount_UnsupportedService(t *testing.T) {
	mock := newMock(t)
	_, _, err := run(t, "--config", appTokenConfig(t, mock), "count", "--service", "playlist")
	assert.Error(t, err)
}

func TestExport(t *testing.T) {
	mock := newMock(t)
	path := filepath.Join(t.TempDir(), "out", "entries.jsonl")

	out, _, err := run(t, "--config", appTokenConfig(t, mock), "export", "--out", path)
	require.NoError(t, err)
	assert.Contains(t, out, "exported 3 entries")

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	ids, err := report.ReadExportIDs(f)
	require.NoError(t, err)
	assert.Equal(t, []string{"0_a", "0_b", "0_c"}, ids)
}

func TestExport_LowerBound(t *testing.T) {
	mock := newMock(t)
	path := filepath.Join(t.TempDir(), "entries.jsonl")

	out, _, err := run(t, "--config", appTokenConfig(t, mock), "export", "--out", path, "--lower-bound", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "exported 2 entries")
}

func TestLookup(t *testing.T) {
	mock := newMock(t)
	cfg := appTokenConfig(t, mock)

	out, _, err := run(t, "--config", cfg, "lookup", "ref-b")
	require.NoError(t, err)
	assert.Equal(t, "ref-b\t0_b\n", out)

	out, stderr, err := run(t, "--config", cfg, "lookup", "ref-a", "ref-x")
	require.Error(t, err)
	assert.Equal(t, "ref-a\t0_a\n", out)
	assert.Contains(t, stderr, "ref-x")
}

func TestResolve(t *testing.T) {
	mock := newMock(t)
	cfg := appTokenConfig(t, mock)

	out, _, err := run(t, "--config", cfg, "resolve", "ref-c", "ref-a", "ref-x")
	require.NoError(t, err)
	assert.Equal(t, "ref-a\t0_a\nref-c\t0_c\nref-x\t\n", out)

	out, _, err = run(t, "--config", cfg, "resolve", "--json", "ref-b")
	require.NoError(t, err)
	assert.Contains(t, out, `"ref-b": "0_b"`)
}

func TestResolve_EntryIDsFromExport(t *testing.T) {
	mock := newMock(t)
	cfg := appTokenConfig(t, mock)
	path := filepath.Join(t.TempDir(), "entries.jsonl")

	_, _, err := run(t, "--config", cfg, "export", "--out", path)
	require.NoError(t, err)

	out, _, err := run(t, "--config", cfg, "resolve", "--entry-ids", "--export-file", path)
	require.NoError(t, err)
	assert.Equal(t, "0_a\tref-a\n0_b\tref-b\n0_c\tref-c\n", out)
}

func TestResolve_NoIdentifiers(t *testing.T) {
	mock := newMock(t)
	_, _, err := run(t, "--config", appTokenConfig(t, mock), "resolve")
	assert.Error(t, err)
	assert.Zero(t, mock.Negotiations())
}

func TestDeleteAndBlock(t *testing.T) {
	mock := newMock(t)
	cfg := appTokenConfig(t, mock)

	out, _, err := run(t, "--config", cfg, "block", "0_b")
	require.NoError(t, err)
	assert.Equal(t, "0_b\tblock\n", out)

	out, _, err = run(t, "--config", cfg, "delete", "0_a")
	require.NoError(t, err)
	assert.Equal(t, "0_a\tdelete\n", out)
	assert.Len(t, mock.Entries(), 2)

	_, _, err = run(t, "--config", cfg, "delete", "0_missing")
	assert.Error(t, err)
}

func TestUpload(t *testing.T) {
	mock := newMock(t)
	cfg := appTokenConfig(t, mock)
	file := filepath.Join(t.TempDir(), "talk.mp4")
	require.NoError(t, os.WriteFile(file, []byte("video bytes"), 0o600))

	out, _, err := run(t, "--config", cfg, "upload",
		"--file", file, "--ref", "talk-42", "--type", "video", "--title", "Talk 42", "--flavor", "0")
	require.NoError(t, err)
	assert.Equal(t, "talk-42\t0_new1\n", out)
	assert.Equal(t, []byte("video bytes"), mock.Upload("upload-1"))

	var content testutil.Request
	for _, call := range mock.Calls() {
		if call.Tag() == "media.addContent" {
			content = call
		}
	}
	assert.True(t, content.Has("resource:resource:token"), "content resource does not reference the upload token")
	assert.True(t, content.Has("resource:assetParamsId"), "flavor container missing")
}

func TestUpload_Validation(t *testing.T) {
	mock := newMock(t)
	cfg := appTokenConfig(t, mock)
	dir := t.TempDir()
	audio := filepath.Join(dir, "song.mp4")
	require.NoError(t, os.WriteFile(audio, []byte("x"), 0o600))

	tests := []struct {
		name string
		args []string
	}{
		{"extension mismatch", []string{"--file", audio, "--ref", "r", "--type", "audio"}},
		{"unknown type", []string{"--file", audio, "--ref", "r", "--type", "image"}},
		{"missing ref", []string{"--file", audio, "--type", "video"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := run(t, append([]string{"--config", cfg, "upload"}, tt.args...)...)
			assert.Error(t, err)
		})
	}
	assert.Zero(t, mock.CallCount("uploadToken.add"))
}

func TestUploadURL(t *testing.T) {
	mock := newMock(t)
	out, _, err := run(t, "--config", appTokenConfig(t, mock), "upload-url",
		"--url", "https://media.example.org/song.mp3", "--ref", "song-1", "--type", "audio")
	require.NoError(t, err)
	assert.Equal(t, "song-1\t0_new1\n", out)
	assert.Zero(t, mock.CallCount("uploadToken.add"))
}

func TestReport(t *testing.T) {
	mock := newMock(t)
	mock.SetAction("report.getTable", func(req testutil.Request) testutil.Response {
		return testutil.OK(map[string]any{
			"header":     strings.Join(report.TopContentColumns, ","),
			"data":       "0_a,alpha,3,1.5,0.5,6,0.5,0.25,2;0_b,bravo,1,1,1,2,0.5,0,1",
			"totalCount": 2,
		})
	})
	cfg := appTokenConfig(t, mock)
	out := filepath.Join(t.TempDir(), "plays.csv")

	_, _, err := run(t, "--config", cfg, "report", "--from", "2024-01-01", "--to", "2024-12-31",
		"--domain", "www.example.org", "--out", out, "0_a", "0_b")
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(report.TopContentColumns, ","), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "0_a,alpha"))

	var call testutil.Request
	for _, c := range mock.Calls() {
		if c.Tag() == "report.getTable" {
			call = c
		}
	}
	assert.Equal(t, "20240101", call.String("reportInputFilter:fromDay"))
	assert.Equal(t, "www.example.org", call.String("reportInputFilter:domainIn"))
}

func TestReport_Stdout(t *testing.T) {
	mock := newMock(t)
	mock.SetAction("report.getTable", func(req testutil.Request) testutil.Response {
		return testutil.OK(map[string]any{
			"header":     strings.Join(report.TopContentColumns, ","),
			"data":       "0_c,charlie,3,1.5,0.5,6,0.5,0.25,2",
			"totalCount": 1,
		})
	})

	out, _, err := run(t, "--config", appTokenConfig(t, mock), "report", "--from", "2024-01-01", "0_c")
	require.NoError(t, err)
	assert.Contains(t, out, "0_c,charlie")
}

func TestParseReportFilter(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		wantErr bool
	}{
		{"range", "2024-01-01", "2024-02-01", false},
		{"open end", "2024-01-01", "", false},
		{"missing from", "", "2024-02-01", true},
		{"bad from", "01/01/2024", "", true},
		{"bad to", "2024-01-01", "tomorrow", true},
		{"reversed", "2024-02-01", "2024-01-01", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter, err := parseReportFilter(tt.from, tt.to, "")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.False(t, filter.To.Before(filter.From))
		})
	}
}

func TestAppToken(t *testing.T) {
	mock := newMock(t)
	cfg := writeConfig(t, mock, "  admin_secret: "+testSecret)

	out, _, err := run(t, "--config", cfg, "apptoken", "add", "--description", "exporter")
	require.NoError(t, err)
	assert.Contains(t, out, `"id": "0_token1"`)
	assert.Contains(t, out, `"token": "secret-1"`)

	out, _, err = run(t, "--config", cfg, "apptoken", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "0_token1")
	assert.Contains(t, out, "exporter")

	out, _, err = run(t, "--config", cfg, "apptoken", "delete", "0_token1")
	require.NoError(t, err)
	assert.Equal(t, "0_token1\tdeleted\n", out)
}

func TestSession(t *testing.T) {
	mock := newMock(t)
	out, _, err := run(t, "--config", appTokenConfig(t, mock), "session")
	require.NoError(t, err)
	assert.Contains(t, out, fmt.Sprintf("partner:     %d", testPartnerID))
	assert.Contains(t, out, "renews:")
}

func TestSession_BadCredentials(t *testing.T) {
	mock := newMock(t)
	cfg := writeConfig(t, mock, fmt.Sprintf("  token_id: %s\n  token: wrong", testAppTokenID))
	_, _, err := run(t, "--config", cfg, "session")
	assert.Error(t, err)
}

func TestReadIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.txt")
	require.NoError(t, os.WriteFile(path, []byte("0_b\n\n  0_c  \n"), 0o600))

	ids, err := readIDs([]string{"0_a"}, path, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"0_a", "0_b", "0_c"}, ids)

	ids, err = readIDs(nil, "-", strings.NewReader("0_x\n0_y"))
	require.NoError(t, err)
	assert.Equal(t, []string{"0_x", "0_y"}, ids)

	_, err = readIDs(nil, filepath.Join(t.TempDir(), "absent"), nil)
	assert.Error(t, err)
}
