package config

import "testing"

func TestLoadRequiresAPIKeyPepper(t *testing.T) {
	t.Setenv("API_KEY_PEPPER", "")
	t.Setenv("ADMIN_KEY", "admin")
	t.Setenv("DATABASE_URL", "postgres://localhost/fightclaw")

	if _, err := load(); err == nil {
		t.Fatal("load() with no API_KEY_PEPPER should fail")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("API_KEY_PEPPER", "pepper")
	t.Setenv("ADMIN_KEY", "admin")
	t.Setenv("DATABASE_URL", "postgres://localhost/fightclaw")

	c, err := load()
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if c.Port != "8080" {
		t.Fatalf("Port = %q, want 8080", c.Port)
	}
	if c.ActorConfig.SubscriberBacklog != 256 {
		t.Fatalf("SubscriberBacklog = %d, want default 256", c.ActorConfig.SubscriberBacklog)
	}
	if c.ActorConfig.EloK != 32 {
		t.Fatalf("EloK = %v, want default 32", c.ActorConfig.EloK)
	}
}

func TestLoadRejectsNonIntegerDuration(t *testing.T) {
	t.Setenv("API_KEY_PEPPER", "pepper")
	t.Setenv("ADMIN_KEY", "admin")
	t.Setenv("DATABASE_URL", "postgres://localhost/fightclaw")
	t.Setenv("MATCH_TURN_TIMEOUT_MS", "not-a-number")

	if _, err := load(); err == nil {
		t.Fatal("load() with a malformed MATCH_TURN_TIMEOUT_MS should fail")
	}
}
