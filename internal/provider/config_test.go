package provider

import (
	"strings"
	"testing"
)

// validConfig returns a configuration that passes Validate for backend.
func validConfig(backend Backend) Config {
	return Config{
		Backend:     backend,
		Ollama:      ProviderOllama{Host: "http://localhost:11434", Model: "llama3"},
		OpenAI:      ProviderOpenAI{APIKey: "sk-test", Model: "gpt-4o"},
		AzureOpenAI: ProviderAzureOpenAI{APIKey: "key", Endpoint: "https://acme.openai.azure.com", Deployment: "gpt-4.1", APIVersion: "2024-02-01"},
		Bedrock:     ProviderBedrock{AWSRegion: "eu-west-1", ModelID: "anthropic.claude-3"},
		Gemini:      ProviderGemini{APIKey: "AIza-test", Model: "gemini-1.5-pro"},
	}
}

// TestConfigValidate blanks one required field at a time and expects the
// error to name the env var that supplies it.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	blanks := map[Backend]map[string]func(*Config){
		BackendOllama: {
			"OLLAMA_HOST":  func(c *Config) { c.Ollama.Host = "" },
			"OLLAMA_MODEL": func(c *Config) { c.Ollama.Model = "" },
		},
		BackendOpenAI: {
			"OPENAI_API_KEY": func(c *Config) { c.OpenAI.APIKey = "" },
			"OPENAI_MODEL":   func(c *Config) { c.OpenAI.Model = "" },
		},
		BackendAzure: {
			"AZURE_OPENAI_API_KEY":    func(c *Config) { c.AzureOpenAI.APIKey = "" },
			"AZURE_OPENAI_ENDPOINT":   func(c *Config) { c.AzureOpenAI.Endpoint = "" },
			"AZURE_OPENAI_DEPLOYMENT": func(c *Config) { c.AzureOpenAI.Deployment = "" },
		},
		BackendBedrock: {
			"BEDROCK_MODEL_ID": func(c *Config) { c.Bedrock.ModelID = "" },
			"AWS_REGION":       func(c *Config) { c.Bedrock.AWSRegion = "" },
		},
		BackendGemini: {
			"GOOGLE_API_KEY": func(c *Config) { c.Gemini.APIKey = "" },
			"GEMINI_MODEL":   func(c *Config) { c.Gemini.Model = "" },
		},
	}

	for backend, fields := range blanks {
		t.Run(string(backend)+"/valid", func(t *testing.T) {
			t.Parallel()
			cfg := validConfig(backend)
			if err := cfg.Validate(); err != nil {
				t.Errorf("Validate() unexpected error: %v", err)
			}
		})
		for envVar, blank := range fields {
			t.Run(string(backend)+"/missing "+envVar, func(t *testing.T) {
				t.Parallel()
				cfg := validConfig(backend)
				blank(&cfg)
				err := cfg.Validate()
				if err == nil || !strings.Contains(err.Error(), envVar) {
					t.Errorf("Validate() = %v, want error naming %s", err, envVar)
				}
			})
		}
	}

	t.Run("unknown backend", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig("watsonx")
		if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "unknown backend") {
			t.Errorf("Validate() = %v", err)
		}
	})
}

func TestModelName(t *testing.T) {
	t.Parallel()

	want := map[Backend]string{
		BackendOllama:  "llama3",
		BackendOpenAI:  "gpt-4o",
		BackendAzure:   "gpt-4.1",
		BackendBedrock: "anthropic.claude-3",
		BackendGemini:  "gemini-1.5-pro",
		"unknown":      "",
	}
	for backend, name := range want {
		cfg := validConfig(backend)
		if got := cfg.ModelName(); got != name {
			t.Errorf("%s: ModelName() = %q, want %q", backend, got, name)
		}
	}
}

func TestIsAzureReasoningModel(t *testing.T) {
	t.Parallel()

	reasoning := []string{"o1", "o1-preview", "o3-mini", "o4-mini", "O3-Mini", "codex-mini"}
	standard := []string{"gpt-4o", "gpt-4.1", "gpt-35-turbo", "gpt-5.2-codex", "omni-search", ""}

	for _, d := range reasoning {
		if !isAzureReasoningModel(d) {
			t.Errorf("%q should be treated as a reasoning deployment", d)
		}
	}
	for _, d := range standard {
		if isAzureReasoningModel(d) {
			t.Errorf("%q should not be treated as a reasoning deployment", d)
		}
	}
}

func TestSupportsSampling(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
		want bool
	}{
		{"ollama", Config{Backend: BackendOllama, Ollama: ProviderOllama{Model: "o1"}}, true},
		{"azure gpt-4o", Config{Backend: BackendAzure, AzureOpenAI: ProviderAzureOpenAI{Deployment: "gpt-4o"}}, true},
		{"azure o3-mini", Config{Backend: BackendAzure, AzureOpenAI: ProviderAzureOpenAI{Deployment: "o3-mini"}}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.cfg.SupportsSampling(); got != tc.want {
				t.Errorf("SupportsSampling() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestConfigFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"MODEL_PROVIDER", "OLLAMA_HOST", "OLLAMA_MODEL", "MODEL_TEMPERATURE", "MODEL_TOP_P", "MODEL_MAX_TOKENS"} {
		t.Setenv(k, "")
	}

	cfg := ConfigFromEnv()
	if cfg.Backend != BackendOllama {
		t.Errorf("Backend = %q, want ollama", cfg.Backend)
	}
	if cfg.ModelName() != "llama3" {
		t.Errorf("ModelName() = %q, want llama3", cfg.ModelName())
	}
	if cfg.Tuning.Temperature != 0.3 || cfg.Tuning.TopP != 0.9 {
		t.Errorf("Tuning = %+v, want temperature 0.3 top_p 0.9", cfg.Tuning)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("MODEL_PROVIDER", "azure")
	t.Setenv("AZURE_OPENAI_DEPLOYMENT", "gpt-4.1")
	t.Setenv("MODEL_TEMPERATURE", "0.7")
	t.Setenv("MODEL_MAX_TOKENS", "bogus")

	cfg := ConfigFromEnv()
	if cfg.Backend != BackendAzure || cfg.ModelName() != "gpt-4.1" {
		t.Errorf("got backend %q model %q", cfg.Backend, cfg.ModelName())
	}
	if cfg.Tuning.Temperature != 0.7 {
		t.Errorf("Temperature = %v, want 0.7", cfg.Tuning.Temperature)
	}
	if cfg.Tuning.MaxTokens != 2048 {
		t.Errorf("invalid MODEL_MAX_TOKENS should fall back to 2048, got %d", cfg.Tuning.MaxTokens)
	}
}
