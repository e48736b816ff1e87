package repository

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateError(t *testing.T) {
	if got := TruncateError("  SMTP timeout  ", ErrorTextMaxLen); got != "SMTP timeout" {
		t.Fatalf("expected trimmed text, got %q", got)
	}

	long := strings.Repeat("x", ErrorTextMaxLen+100)
	if got := TruncateError(long, ErrorTextMaxLen); len(got) != ErrorTextMaxLen {
		t.Fatalf("expected %d chars, got %d", ErrorTextMaxLen, len(got))
	}

	exact := strings.Repeat("y", ErrorTextMaxLen)
	if got := TruncateError(exact, ErrorTextMaxLen); got != exact {
		t.Fatal("text at the limit must pass through unchanged")
	}
}

func TestTruncateErrorKeepsValidUTF8(t *testing.T) {
	// "ü" is two bytes; an odd byte limit would split a rune in half.
	got := TruncateError(strings.Repeat("ü", 10), 5)
	if !utf8.ValidString(got) {
		t.Fatalf("truncated text must stay valid UTF-8, got %q", got)
	}
	if got != "üü" {
		t.Fatalf("expected cut backed off to the rune boundary, got %q", got)
	}

	long := strings.Repeat("é", ErrorTextMaxLen)
	got = TruncateError(long, ErrorTextMaxLen)
	if !utf8.ValidString(got) || len(got) > ErrorTextMaxLen {
		t.Fatalf("expected valid UTF-8 within %d bytes, got %d bytes", ErrorTextMaxLen, len(got))
	}
}
