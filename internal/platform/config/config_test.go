package config

import (
	"testing"
	"time"
)

func TestLoad_ShippedConfig(t *testing.T) {
	cfg, err := Load("../../../configs/config.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Every method routed by the API must pass a browser preflight.
	for _, method := range []string{"GET", "POST", "DELETE", "OPTIONS"} {
		found := false
		for _, m := range cfg.CORS.AllowedMethods {
			if m == method {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("cors.allowed_methods = %v, missing %s", cfg.CORS.AllowedMethods, method)
		}
	}

	if cfg.Invitations.TTL != 168*time.Hour {
		t.Errorf("invitations.ttl = %v, want 168h", cfg.Invitations.TTL)
	}
	if cfg.Email.Provider != "log" {
		t.Errorf("email.provider = %q, want log", cfg.Email.Provider)
	}
}
