package logger

import (
	"fmt"
	"strings"
	"testing"
)

func TestLevelToColor(t *testing.T) {
	tests := []struct {
		level    Level
		message  string
		expected string
	}{
		{DebugLevel, "[DEBUG]", colorMagenta + "[DEBUG]" + colorReset},
		{InfoLevel, "[INFO]", "[INFO]"},
		{SuccessLevel, "[SUCCESS]", colorGreen + "[SUCCESS]" + colorReset},
		{WarnLevel, "[WARN]", colorYellow + "[WARN]" + colorReset},
		{ErrorLevel, "[ERROR]", colorRed + "[ERROR]" + colorReset},
		{Level(99), "[UNKNOWN]", "[UNKNOWN]"},
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			if got := levelToColor(tt.level, tt.message); got != tt.expected {
				t.Fatalf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestCacheLevelStrings(t *testing.T) {
	levels := []Level{DebugLevel, InfoLevel, SuccessLevel, WarnLevel, ErrorLevel}

	plain := cacheLevelStrings(false)
	for _, l := range levels {
		want := fmt.Sprintf("[%s]", l.CapitalString())
		if plain[l] != want {
			t.Fatalf("plain[%v] = %q, want %q", l, plain[l], want)
		}
	}

	colored := cacheLevelStrings(true)
	if colored[InfoLevel] != "[INFO]" {
		t.Fatalf("InfoLevel should not be colored by default, got %q", colored[InfoLevel])
	}
	if !strings.Contains(colored[SuccessLevel], colorGreen) {
		t.Fatalf("SuccessLevel should be green, got %q", colored[SuccessLevel])
	}
}
