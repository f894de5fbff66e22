package instance

import "testing"

func TestIDPrefersExplicitValue(t *testing.T) {
	t.Setenv("INSTANCE_ID", "api-7")
	t.Setenv("DYNO", "web.1")
	if got := ID(); got != "api-7" {
		t.Fatalf("expected api-7, got %q", got)
	}
}

func TestIDFallsBackToDyno(t *testing.T) {
	t.Setenv("INSTANCE_ID", "")
	t.Setenv("DYNO", "web.2")
	if got := ID(); got != "web.2" {
		t.Fatalf("expected web.2, got %q", got)
	}
}

func TestIDNeverEmpty(t *testing.T) {
	t.Setenv("INSTANCE_ID", "")
	t.Setenv("DYNO", "")
	if ID() == "" {
		t.Fatal("expected a non-empty instance id")
	}
}
