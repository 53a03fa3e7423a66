package config

import (
	"reflect"
	"testing"
	"time"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(envOf(nil))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 8080 || cfg.StoreBackend != BackendDynamo || cfg.DirectoryMode != DirectoryOpen {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.DeadlineInterval != 2*time.Second || cfg.ClaimTimeout != 2*time.Minute {
		t.Errorf("durations = %s %s", cfg.DeadlineInterval, cfg.ClaimTimeout)
	}
	if !reflect.DeepEqual(cfg.AllowedOrigins, []string{"*"}) {
		t.Errorf("origins = %v", cfg.AllowedOrigins)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(envOf(map[string]string{
		"PORT":                   "9000",
		"STORE_BACKEND":          "Postgres",
		"DATABASE_URL":           "postgres://localhost/skillnet",
		"ENABLE_STREAMS":         "true",
		"DEADLINE_SCAN_INTERVAL": "500ms",
		"MIN_PAYMENT_AMOUNT":     "2.5",
		"DIRECTORY_MODE":         "store",
		"ALLOWED_ORIGINS":        "https://a.test, https://b.test,",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 9000 || cfg.StoreBackend != BackendPostgres || !cfg.EnableStreams {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.DeadlineInterval != 500*time.Millisecond || cfg.MinPaymentAmount != 2.5 || cfg.DirectoryMode != DirectoryStore {
		t.Errorf("cfg = %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.AllowedOrigins, []string{"https://a.test", "https://b.test"}) {
		t.Errorf("origins = %v", cfg.AllowedOrigins)
	}
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"port not a number", map[string]string{"PORT": "http"}},
		{"port out of range", map[string]string{"PORT": "70000"}},
		{"postgres without url", map[string]string{"STORE_BACKEND": "postgres"}},
		{"unknown backend", map[string]string{"STORE_BACKEND": "redis"}},
		{"zero interval", map[string]string{"DEADLINE_SCAN_INTERVAL": "0s"}},
		{"bad claim timeout", map[string]string{"CLAIM_TIMEOUT": "soon"}},
		{"negative minimum", map[string]string{"MIN_PAYMENT_AMOUNT": "-1"}},
		{"bad streams flag", map[string]string{"ENABLE_STREAMS": "maybe"}},
		{"unknown directory", map[string]string{"DIRECTORY_MODE": "ldap"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FromEnv(envOf(tt.env)); err == nil {
				t.Error("FromEnv() succeeded, want error")
			}
		})
	}
}
