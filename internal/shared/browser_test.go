package shared

import (
	"errors"
	"testing"
)

func TestPartyURL(t *testing.T) {
	got, err := PartyURL("http://localhost:3000/", "Ab3_x-Z")
	if err != nil {
		t.Fatalf("PartyURL() error: %v", err)
	}
	if got != "http://localhost:3000/party/Ab3_x-Z" {
		t.Errorf("unexpected url %s", got)
	}

	if _, err := PartyURL("localhost", "abc"); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for relative base, got %v", err)
	}

	if _, err := PartyURL("http://localhost:3000", " "); !errors.Is(err, ErrMissingArgument) {
		t.Errorf("expected ErrMissingArgument for blank code, got %v", err)
	}
}

func TestBrowserCommand(t *testing.T) {
	orig := getRuntime
	defer func() { getRuntime = orig }()

	for _, rt := range []string{"darwin", "linux", "windows"} {
		getRuntime = func() string { return rt }
		cmd, err := browserCommand("http://example.com")
		if err != nil {
			t.Fatalf("%s: unexpected error %v", rt, err)
		}
		if cmd.Args[len(cmd.Args)-1] != "http://example.com" {
			t.Errorf("%s: url should be the last argument, got %v", rt, cmd.Args)
		}
	}

	getRuntime = func() string { return "plan9" }
	if _, err := browserCommand("http://example.com"); err == nil {
		t.Error("expected unsupported platform error")
	}
}
