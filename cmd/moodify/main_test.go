package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/moodify/internal/apperr"
	"github.com/hyperjump/moodify/internal/models"
)

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
		wantErr  bool
	}{
		{"single word", []string{"melancholy"}, "melancholy", false},
		{"multiple words", []string{"rainy", "sunday"}, "rainy sunday", false},
		{"single quoted phrase", []string{"rainy sunday"}, "rainy sunday", false},
		{"blank args", []string{"  ", "  "}, "", true},
		{"empty args", []string{}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildQuery(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("buildQuery(%v) err=%v, wantErr %v", tt.args, err, tt.wantErr)
			}
			if got != tt.expected {
				t.Errorf("buildQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
storage:
  database_path: "test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Search.DefaultK == 0 {
		t.Error("defaults should be applied")
	}
}

func TestLoadConfig_missingExplicitPath(t *testing.T) {
	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "moodify version dev") {
		t.Errorf("output=%q", out)
	}
}

func TestSearchViaServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/search" {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("query"); got != "rainy sunday" {
			t.Errorf("query=%q", got)
		}
		if got := r.URL.Query().Get("k"); got != "2" {
			t.Errorf("k=%q", got)
		}
		_ = json.NewEncoder(w).Encode(&models.SearchResponse{
			Query:   "rainy sunday",
			Results: []*models.RetrievalResult{{TrackID: "t1", Content: "Riders on the Storm", Score: 0.9}},
		})
	}))
	defer srv.Close()

	out, err := execute(t, "search", "--server", srv.URL, "-k", "2", "-o", "json", "rainy", "sunday")
	if err != nil {
		t.Fatal(err)
	}
	var res models.SearchResponse
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(res.Results) != 1 || res.Results[0].TrackID != "t1" {
		t.Errorf("results=%+v", res.Results)
	}
}

func TestLoginRequiredViaServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusTemporaryRedirect)
	}))
	defer srv.Close()

	_, err := execute(t, "recommend", "--server", srv.URL, "focus")
	if !errors.Is(err, apperr.ErrAuthRequired) {
		t.Errorf("got %v", err)
	}
}

func TestUnknownOutputFormat(t *testing.T) {
	if _, err := execute(t, "status", "--output", "yaml"); err == nil {
		t.Error("expected error for unknown output format")
	}
}

func writeLocalConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
storage:
  database_path: "./db/moodify.db"
  token_path: "./db/tokens.db"
embedding:
  provider: "mock"
  dimensions: 32
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)
	return path
}

func TestStatusDirect(t *testing.T) {
	path := writeLocalConfig(t)

	out, err := execute(t, "status", "--server", "", "--config", path, "-o", "json")
	if err != nil {
		t.Fatal(err)
	}
	var st models.Status
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if st.CurrentUser != "" || st.Documents != 0 {
		t.Errorf("status=%+v", st)
	}
	if st.Config == nil || st.Config.EmbeddingProvider != "mock" || st.Config.LeaseBackend != "local" {
		t.Errorf("config=%+v", st.Config)
	}
}

func TestSearchDirectRequiresLogin(t *testing.T) {
	path := writeLocalConfig(t)

	_, err := execute(t, "search", "--server", "", "--config", path, "anything")
	if !errors.Is(err, apperr.ErrAuthRequired) {
		t.Errorf("got %v", err)
	}
}
