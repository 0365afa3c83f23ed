package commands

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"

	"github.com/54b3r/priorart-go/internal/provider"
)

func TestRootCmd_Subcommands(t *testing.T) {
	t.Parallel()

	root := NewRootCmd()
	want := []string{"serve", "analyze", "search", "index", "version"}
	for _, name := range want {
		if c, _, err := root.Find([]string{name}); err != nil || c.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
	if c, _, err := root.Find([]string{"index", "build"}); err != nil || c.Name() != "build" {
		t.Error("index build not registered")
	}
}

func TestVersionCmd(t *testing.T) {
	t.Setenv("PRIORART_CONFIG", "")

	root := NewRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "none.yaml"), "version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "priorart dev") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestReadQuery(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "idea.txt")
	if err := os.WriteFile(file, []byte("a foldable solar charging umbrella\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		stdin   string
		args    []string
		file    string
		want    string
		wantErr bool
	}{
		{name: "args joined", args: []string{"battery", "management", "system"}, want: "battery management system"},
		{name: "file", file: file, want: "a foldable solar charging umbrella\n"},
		{name: "stdin", stdin: "piped idea text", file: "-", want: "piped idea text"},
		{name: "both", args: []string{"x"}, file: file, wantErr: true},
		{name: "none", wantErr: true},
		{name: "missing file", file: filepath.Join(t.TempDir(), "missing"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := readQuery(strings.NewReader(tt.stdin), tt.args, tt.file)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("INDEX_WORKERS", "3")
	t.Setenv("INDEX_BATCH_SIZE", "lots")
	t.Setenv("EMBEDDING_CACHE_TTL", "36h")

	opts := buildOptions()
	if opts.Workers != 3 || opts.BatchSize != 0 {
		t.Errorf("buildOptions: got %+v", opts)
	}
	if got := getEnvDuration("EMBEDDING_CACHE_TTL", 0); got != 36*time.Hour {
		t.Errorf("getEnvDuration: got %v", got)
	}
	if got := getEnvOrDefault("PRIORART_UNSET_FOR_TEST", "fallback"); got != "fallback" {
		t.Errorf("getEnvOrDefault: got %q", got)
	}
}

func TestLoadCorpus_MissingFileDegrades(t *testing.T) {
	t.Setenv("CORPUS_PATH", filepath.Join(t.TempDir(), "missing.csv"))

	if s := loadCorpus(discardLogger()); s != nil {
		t.Errorf("want nil store for missing corpus, got %d records", s.Len())
	}
}

func discardLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestBuildApp_LexicalOnly(t *testing.T) {
	csv := filepath.Join(t.TempDir(), "patents.csv")
	data := "patent_id,title,technology_category\n" +
		"US-1,Smart Battery Management System,Electronics\n" +
		"US-2,Wind Turbine Blade Coating,Energy\n"
	if err := os.WriteFile(csv, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CORPUS_PATH", csv)
	t.Setenv("EMBEDDING_PROVIDER", "none")
	t.Setenv("LANGFUSE_PUBLIC_KEY", "")
	t.Setenv("REDIS_URL", "")

	a, err := buildApp(t.Context(), discardLogger(), bootOptions{})
	if err != nil {
		t.Fatalf("buildApp: %v", err)
	}
	defer a.Close()

	if a.engine.Capabilities().HasVector() {
		t.Error("vector capability must be absent without an embedder")
	}
	if a.analyses != nil || a.chat != nil {
		t.Error("store and model were not requested")
	}

	out, err := a.orch.Run(t.Context(), "battery management system for electric vehicles")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(out.SimilarRecords) != 1 || out.SimilarRecords[0].ID != "US-1" {
		t.Errorf("unexpected matches: %+v", out.SimilarRecords)
	}
	if !out.Degraded() {
		t.Error("run without a model must report degraded stages")
	}
}

func TestStageSettings_ReportKeepsModelSampling(t *testing.T) {
	t.Setenv("ANALYSIS_MAX_CONTEXT_TOKENS", "")

	pc := &provider.Config{
		Backend: provider.BackendOllama,
		Tuning:  provider.SharedTuning{MaxTokens: 1024, Temperature: 0, TopP: 0.5},
	}

	got := model.GetCommonOptions(&model.Options{}, analysisConfig(pc).Options()...)
	if got.Temperature == nil || *got.Temperature != 0 {
		t.Errorf("analysis temperature: explicit 0 should be kept, got %v", got.Temperature)
	}
	if got.TopP == nil || *got.TopP != 0.5 {
		t.Errorf("analysis top_p: got %v", got.TopP)
	}

	rep := model.GetCommonOptions(&model.Options{}, reportOptions(pc)...)
	if rep.Temperature != nil || rep.TopP != nil {
		t.Errorf("report should use model sampling defaults, got temperature %v top_p %v", rep.Temperature, rep.TopP)
	}
	if rep.MaxTokens == nil || *rep.MaxTokens != 1024 {
		t.Errorf("report max tokens: got %v", rep.MaxTokens)
	}

	pc.Tuning.MaxTokens = 0
	if opts := reportOptions(pc); opts != nil {
		t.Errorf("no max tokens configured: want no report options, got %d", len(opts))
	}
}
