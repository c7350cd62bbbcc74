package logger

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newTestEncoderConfig(opts Options) zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:      "time",
		CallerKey:    "caller",
		MessageKey:   "msg",
		LineEnding:   zapcore.DefaultLineEnding,
		EncodeTime:   zapcore.TimeEncoderOfLayout(opts.TimestampFormat),
		EncodeCaller: zapcore.ShortCallerEncoder,
	}
}

func TestColorConsoleEncoderClone(t *testing.T) {
	opts := DefaultOptions()
	opts.TimestampFormat = "custom-format"
	cfg := newTestEncoderConfig(opts)
	original := NewColorConsoleEncoder(cfg, opts).(*colorConsoleEncoder)

	cloned := original.Clone().(*colorConsoleEncoder)
	if cloned == original {
		t.Fatal("Clone should return a new instance")
	}
	if cloned.timeFormat != original.timeFormat || cloned.colors != original.colors {
		t.Fatalf("clone diverged from original: %+v vs %+v", cloned, original)
	}

	cloned.timeFormat = "clone-modified"
	if original.timeFormat != "custom-format" {
		t.Fatal("mutating the clone's timeFormat must not affect the original")
	}
}

func TestColorConsoleEncoderEncodeEntry(t *testing.T) {
	opts := DefaultOptions()
	opts.TimestampFormat = "2006-01-02 15:04:05"
	cfg := newTestEncoderConfig(opts)
	now := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)
	entry := zapcore.Entry{Time: now, Message: "test message", Caller: zapcore.EntryCaller{Defined: true, File: "test/file.go", Line: 42}}

	tests := []struct {
		name           string
		colors         bool
		level          Level
		zapLevel       zapcore.Level
		runID          string
		logFields      []zapcore.Field
		expectedPrefix string
		expectedLevel  string
		expectedSuffix string
	}{
		{
			name:           "info with run id",
			colors:         true,
			level:          InfoLevel,
			zapLevel:       zapcore.InfoLevel,
			runID:          "run-1",
			logFields:      []zapcore.Field{zap.String("data", "payload")},
			expectedPrefix: "[R:run-1]",
			expectedLevel:  "[INFO]",
			expectedSuffix: " data=payload",
		},
		{
			name:          "success is colored distinctly from info",
			colors:        true,
			level:         SuccessLevel,
			zapLevel:      zapcore.InfoLevel,
			logFields:     []zapcore.Field{zap.Int("count", 5)},
			expectedLevel: colorGreen + "[SUCCESS]" + colorReset,
			expectedSuffix: " count=5",
		},
		{
			name:          "error plain text",
			colors:        false,
			level:         ErrorLevel,
			zapLevel:      zapcore.ErrorLevel,
			logFields:     []zapcore.Field{zap.Error(fmt.Errorf("boom"))},
			expectedLevel: "[ERROR]",
			expectedSuffix: ` error="boom"`,
		},
		{
			name:     "zap level used when no customlevel field is present",
			colors:   true,
			zapLevel: zapcore.WarnLevel,
			expectedLevel: colorYellow + "[WARN]" + colorReset,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			currentOpts := opts
			currentOpts.ColorConsole = tt.colors
			var enc zapcore.Encoder
			if tt.colors {
				enc = NewColorConsoleEncoder(cfg, currentOpts)
			} else {
				enc = NewPlainTextConsoleEncoder(cfg, currentOpts)
			}

			var fields []zapcore.Field
			if tt.runID != "" {
				fields = append(fields, zap.String("run_id", tt.runID))
			}
			if tt.level != 0 {
				fields = append(fields, zap.String("customlevel", tt.level.CapitalString()))
			}
			fields = append(fields, tt.logFields...)

			currentEntry := entry
			currentEntry.Level = tt.zapLevel

			buf, err := enc.EncodeEntry(currentEntry, fields)
			if err != nil {
				t.Fatalf("EncodeEntry: %v", err)
			}
			out := buf.String()
			buf.Free()

			var parts []string
			parts = append(parts, now.Format(opts.TimestampFormat))
			if tt.expectedPrefix != "" {
				parts = append(parts, tt.expectedPrefix)
			}
			parts = append(parts, tt.expectedLevel, "test/file.go:42:", entry.Message)
			want := strings.Join(parts, " ") + tt.expectedSuffix + zapcore.DefaultLineEnding

			if out != want {
				t.Fatalf("got %q, want %q", out, want)
			}
		})
	}
}

func TestTempEncoderAddString(t *testing.T) {
	opts := DefaultOptions()
	cfg := newTestEncoderConfig(opts)
	buf := _bufferPool.Get()
	defer buf.Free()

	enc := &tempEncoder{buf: buf, EncoderConfig: cfg}
	enc.AddString("", "test/caller.go:123")
	if buf.String() != "test/caller.go:123" {
		t.Fatalf("got %q", buf.String())
	}
}
