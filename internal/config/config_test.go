package config

import "testing"

func TestNormalizeEnv(t *testing.T) {
	cases := map[string]string{
		"dev":         "development",
		"Develop":     "development",
		"LOCAL":       "development",
		"prod":        "production",
		"Production":  "production",
		"stage":       "staging",
		"test":        "test",
		" Production": "production",
		"custom":      "custom",
	}
	for in, want := range cases {
		if got := normalizeEnv(in); got != want {
			t.Fatalf("normalizeEnv(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DB_URL", "postgres://localhost/app")
	t.Setenv("PAYWALL_BYPASS_USER", "Reviewer")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.OpenAIModel != "gpt-4o-mini" {
		t.Fatalf("unexpected default model: %q", cfg.OpenAIModel)
	}
	if cfg.TrialWindow.Hours() != 7*24 {
		t.Fatalf("unexpected trial window: %v", cfg.TrialWindow)
	}
	if cfg.LegacyPaymentWindow.Hours() != 32*24 {
		t.Fatalf("unexpected legacy payment window: %v", cfg.LegacyPaymentWindow)
	}
	if cfg.PaywallBypassUser != "reviewer" {
		t.Fatalf("bypass user should be lowercased, got %q", cfg.PaywallBypassUser)
	}
}

func TestLoadConfigRequiresDBUrl(t *testing.T) {
	t.Setenv("DB_URL", "")
	t.Setenv("DATABASE_URL", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error without DB_URL")
	}
}
