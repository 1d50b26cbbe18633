package main

import (
	"bytes"
	"context"
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

	"eosearch/internal/plugin"
	"eosearch/internal/transform"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestParseKeyValues(t *testing.T) {
	got, err := parseKeyValues([]string{"n=10", "f=1.5", "ok=true", "s=S2A", "d=2020-01-01T00:00:00Z", "empty="})
	require.NoError(t, err)
	assert.Equal(t, 10, got["n"])
	assert.Equal(t, 1.5, got["f"])
	assert.Equal(t, true, got["ok"])
	assert.Equal(t, "S2A", got["s"])
	assert.Equal(t, "", got["empty"])

	_, err = parseKeyValues([]string{"novalue"})
	assert.Error(t, err)
}

func TestConvertersCmd(t *testing.T) {
	out, err := execute(t, "converters")
	require.NoError(t, err)
	assert.Contains(t, strings.Split(out, "\n"), "to_iso_date")
}

func TestConvertersCmdPlugin(t *testing.T) {
	reg := transform.NewRegistry()
	reg.Register(transform.Converter{Name: "remote_only", Fn: func(v any, _ []any) (any, error) { return v, nil }})
	s, err := plugin.StartServer(0, plugin.NewRegistryServer(reg))
	require.NoError(t, err)
	go func() { _ = s.Serve() }()
	defer s.Stop()

	out, err := execute(t, "converters", "--plugin", fmt.Sprintf("localhost:%d", s.Port()))
	require.NoError(t, err)
	assert.Equal(t, "remote_only\n", out)
}

func TestFormatCmd(t *testing.T) {
	out, err := execute(t, "format", "{start#to_iso_date}/{n}", "start=2021-04-21T18:27:19Z", "n=3")
	require.NoError(t, err)
	assert.Equal(t, "2021-04-21/3\n", out)

	_, err = execute(t, "format", "{missing}")
	assert.Error(t, err)
}

func writeCatalog(t *testing.T, base string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "providers.yml")
	body := `providers:
  cds:
    data_request_url: ` + base + `/jobs
    status_url: ` + base + `/jobs/{jobId}/status
    result_url: ` + base + `/jobs/{jobId}/result
    poll:
      interval: 1ms
    metadata_mapping:
      id: $.id
      title: $.name
`
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestExtractCmd(t *testing.T) {
	catalog := writeCatalog(t, "http://127.0.0.1:1")
	doc := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, os.WriteFile(doc, []byte(`{"id": "x1", "name": "era5"}`), 0o644))

	out, err := execute(t, "extract", "--providers", catalog, "--provider", "cds", doc)
	require.NoError(t, err)
	assert.Contains(t, out, `"title": "era5"`)

	_, err = execute(t, "extract", "--providers", catalog, "--provider", "nope", doc)
	assert.Error(t, err)
}

func TestSearchCmd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/jobs":
			_, _ = io.WriteString(w, `{"jobId": "j1"}`)
		case "/jobs/j1/status":
			_, _ = io.WriteString(w, `{"status": "completed"}`)
		case "/jobs/j1/result":
			_, _ = io.WriteString(w, `{"content": [{"id": "x1", "name": "era5"}, {"id": "x2", "name": "era5-land"}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	out, err := execute(t, "search", "--providers", writeCatalog(t, srv.URL), "--provider", "cds", "--arg", "title=era5")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"id":"x1"`)
	assert.Contains(t, lines[1], `"title":"era5-land"`)
}
