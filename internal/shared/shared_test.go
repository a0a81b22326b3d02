package shared

import (
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestFormatDuration(t *testing.T) {
	tc := []struct {
		ms   int64
		want string
	}{
		{0, "0:00"},
		{-5, "0:00"},
		{61_000, "1:01"},
		{215_999, "3:35"},
		{3_600_000, "1:00:00"},
		{3_725_000, "1:02:05"},
	}

	for _, tt := range tc {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatDuration(tt.ms); got != tt.want {
				t.Errorf("FormatDuration(%d) = %v, want %v", tt.ms, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("hello", 10); got != "hello" {
		t.Errorf("short strings should be unchanged, got %q", got)
	}
	if got := Truncate("hello world", 6); got != "hello…" {
		t.Errorf("expected hello…, got %q", got)
	}
	if got := Truncate("héllo", 1); got != "…" {
		t.Errorf("expected ellipsis, got %q", got)
	}
}

func TestGenerateCode(t *testing.T) {
	seen := make(map[string]bool)
	for range 50 {
		code, err := GenerateCode()
		if err != nil {
			t.Fatalf("GenerateCode() error: %v", err)
		}
		if code == "" || strings.ContainsAny(code, " /?#") {
			t.Fatalf("code %q is not URL-safe", code)
		}
		if seen[code] {
			t.Fatalf("duplicate code %q", code)
		}
		seen[code] = true
	}
}

func TestIDs(t *testing.T) {
	id := GenerateID()
	if !IsUUID(id) {
		t.Errorf("GenerateID() = %q is not a uuid", id)
	}
	if IsUUID("party-123") {
		t.Error("IsUUID should reject non-uuid strings")
	}
}

func TestParseLogLevel(t *testing.T) {
	if got := ParseLogLevel("DEBUG"); got != log.DebugLevel {
		t.Errorf("expected debug, got %v", got)
	}
	if got := ParseLogLevel("nonsense"); got != log.InfoLevel {
		t.Errorf("expected info fallback, got %v", got)
	}
}
