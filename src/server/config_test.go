package server

import (
	"os"
	"testing"
)

func TestGetConfigDefaultPort(t *testing.T) {
	t.Setenv("API_PORT", "") // register cleanup, then clear for the test
	os.Unsetenv("API_PORT")

	if got := GetConfig().Port; got != "8980" {
		t.Fatalf("expected default port 8980, got %q", got)
	}
}

func TestGetConfigPortOverride(t *testing.T) {
	t.Setenv("API_PORT", "3000")

	if got := GetConfig().Port; got != "3000" {
		t.Fatalf("expected port 3000, got %q", got)
	}
}
