package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/lexrag/internal/config"
	"github.com/hyperjump/lexrag/internal/embedding"
	"github.com/hyperjump/lexrag/internal/extract"
	"github.com/hyperjump/lexrag/internal/generation"
	"github.com/hyperjump/lexrag/internal/index"
	"github.com/hyperjump/lexrag/internal/indexer"
	"github.com/hyperjump/lexrag/internal/models"
)

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after question are moved first",
			args:     []string{"how do I terminate", "--stream"},
			expected: []string{"--stream", "how do I terminate"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"--output", "json", "fees"},
			expected: []string{"--output", "json", "fees"},
		},
		{
			name:     "question only returns unchanged",
			args:     []string{"what are the fees"},
			expected: []string{"what are the fees"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"contracts", "terms.pdf", "--label", "Terms"},
			expected: []string{"--label", "Terms", "contracts", "terms.pdf"},
		},
		{
			name:     "flag inside question keeps word order",
			args:     []string{"what", "is", "--stream", "the", "notice"},
			expected: []string{"--stream", "what", "is", "the", "notice"},
		},
		{
			name:     "value flag inside question",
			args:     []string{"what", "--output", "json", "is", "due"},
			expected: []string{"--output", "json", "what", "is", "due"},
		},
		{
			name:     "inline value",
			args:     []string{"fees", "--output=json", "owed"},
			expected: []string{"--output=json", "fees", "owed"},
		},
		{
			name:     "double dash ends flags",
			args:     []string{"--stream", "--", "-5", "days"},
			expected: []string{"--stream", "--", "-5", "days"},
		},
	}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.String("output", "text", "")
	fs.String("label", "", "")
	fs.Bool("stream", false, "")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(fs, tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildQuestion(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"termination"}, "termination"},
		{"multiple words", []string{"how", "to", "terminate?"}, "how to terminate?"},
		{"quoted phrase", []string{"how to terminate?"}, "how to terminate?"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildQuestion(tt.args); got != tt.expected {
				t.Errorf("buildQuestion(%v) = %q, want %q", tt.args, got, tt.expected)
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
index:
  location: "./index"
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
	if filepath.Base(cfg.Index.Location) != "index" || !filepath.IsAbs(cfg.Index.Location) {
		t.Errorf("index location = %q", cfg.Index.Location)
	}
}

func TestLoadConfig_defaultsWhenNoFile(t *testing.T) {
	chdir(t, t.TempDir())
	if _, err := os.Stat(defaultConfigPath); err == nil {
		t.Skip("a system config exists at the default path")
	}
	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != "" {
		t.Errorf("resolved = %q, want empty for built-in defaults", resolved)
	}
	if cfg.Retrieval.TopK != config.DefaultTopK || cfg.Index.ChunkSize != config.DefaultChunkSize {
		t.Errorf("defaults not applied: %+v", cfg)
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
}

func TestLoadConfig_explicitMissingPath(t *testing.T) {
	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func echoConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Index.Location = filepath.Join(t.TempDir(), "index")
	cfg.Index.ChunkSize = 40
	cfg.Embedding.Dimensions = 256
	cfg.Embedding.CacheSize = 16
	cfg.Generation.Provider = config.ProviderEcho
	return cfg
}

func TestInitializeComponents_missingIndexIsFatal(t *testing.T) {
	_, err := initializeComponents(echoConfig(t), zap.NewNop())
	if !errors.Is(err, index.ErrIndexUnavailable) {
		t.Errorf("err = %v, want ErrIndexUnavailable", err)
	}
}

func TestInitializeComponents_answersFromPersistedIndex(t *testing.T) {
	cfg := echoConfig(t)
	docs := t.TempDir()
	text := "1. Termination\nEither party may terminate this contract with 30 days written notice.\n" +
		"2. Payment\nFees are invoiced monthly and payable within fourteen days."
	if err := os.WriteFile(filepath.Join(docs, "agreement.txt"), []byte(text), 0600); err != nil {
		t.Fatal(err)
	}
	emb, err := embedding.NewFromConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	ix := indexer.NewIndexer(cfg, emb, extract.NewExtractor(), indexer.WithLogger(zap.NewNop()))
	if _, err := ix.Run(context.Background(), []string{docs}, ""); err != nil {
		t.Fatalf("Run: %v", err)
	}
	_ = emb.Close()

	components, err := initializeComponents(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("initializeComponents: %v", err)
	}
	defer components.Close()
	if _, ok := components.Generator.(*generation.EchoGenerator); !ok {
		t.Errorf("generator = %T, want *generation.EchoGenerator", components.Generator)
	}
	if components.Holder.Current() == nil {
		t.Fatal("index should be loaded")
	}

	ans := components.Service.Answer(context.Background(), "How many days notice to terminate?")
	if ans.Outcome != models.OutcomeAnswered {
		t.Fatalf("outcome = %s (%s)", ans.Outcome, ans.Text)
	}
	if !strings.Contains(ans.Text, "30 days") {
		t.Errorf("answer should echo the retrieved context, got %q", ans.Text)
	}
	if len(ans.Sources) == 0 {
		t.Error("expected sources")
	}

	components.Close()
	if components.Holder.Current() != nil {
		t.Error("Close should release the loaded index")
	}
}
