package model

import (
	"testing"
	"unicode/utf8"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"El pH óptimo es 10.5", 5, "El pH"},
		{"El pH óptimo es 10.5", 8, "El pH óp"},
		{"corto", 10, "corto"},
		{"", 3, ""},
		{"espesador", 0, "espesador"},
		{"molino SAG", 6, "molino"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestTruncateIsIdempotent(t *testing.T) {
	texts := []string{"flotación de cobre con pH alto", "ñandú", "torque del espesador"}
	for _, text := range texts {
		for n := 1; n <= utf8.RuneCountInString(text)+2; n++ {
			once := Truncate(text, n)
			if !utf8.ValidString(once) {
				t.Fatalf("Truncate(%q, %d) produced invalid UTF-8", text, n)
			}
			if twice := Truncate(once, n); twice != once {
				t.Errorf("Truncate not idempotent for %q at %d: %q vs %q", text, n, once, twice)
			}
			if larger := Truncate(once, n+5); larger != once {
				t.Errorf("Truncate with larger cap changed %q", once)
			}
		}
	}
}
