package validators

import "testing"

func TestSanitizeTerm(t *testing.T) {
	if got := SanitizeTerm("  whole   milk \t", 0); got != "whole milk" {
		t.Fatalf("expected collapsed term, got %q", got)
	}
	if got := SanitizeTerm("brötchen", 4); got != "bröt" {
		t.Fatalf("expected rune-safe truncation, got %q", got)
	}
}
