package pkg

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"testing"
)

// captureLogs points the default logger at a buffer for the duration of
// the test.
func captureLogs(t *testing.T, format LogFormat, level slog.Level) *bytes.Buffer {
	t.Helper()

	original := logLevel.Level()
	var buf bytes.Buffer
	SetLogLevel(level)
	setOutput(&buf, format)
	t.Cleanup(func() {
		SetLogLevel(original)
		setOutput(os.Stderr, LogFormatText)
	})
	return &buf
}

func TestSetLogLevel_Filters(t *testing.T) {
	buf := captureLogs(t, LogFormatText, slog.LevelWarn)

	LogDebug(ComponentSerial, "hidden debug")
	LogInfo(ComponentSerial, "hidden info")
	LogWarn(ComponentSerial, "shown warn")
	if out := buf.String(); strings.Contains(out, "hidden") || !strings.Contains(out, "shown warn") {
		t.Errorf("warn level output = %q", out)
	}

	buf.Reset()
	SetLogLevel(slog.LevelDebug)
	LogDebug(ComponentSerial, "now shown")
	if !strings.Contains(buf.String(), "now shown") {
		t.Errorf("debug level output = %q", buf.String())
	}
}

func TestLogHelpers_TagComponent(t *testing.T) {
	buf := captureLogs(t, LogFormatText, slog.LevelDebug)

	tests := []struct {
		name string
		log  func(Component, string, ...any)
		comp Component
	}{
		{"debug", LogDebug, ComponentSerial},
		{"info", LogInfo, ComponentSim},
		{"warn", LogWarn, ComponentMetrics},
		{"error", LogError, ComponentHAL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.log(tt.comp, tt.name+" message", "key", "value")
			out := buf.String()
			if !strings.Contains(out, tt.name+" message") {
				t.Errorf("missing message: %s", out)
			}
			if !strings.Contains(out, "component="+string(tt.comp)) {
				t.Errorf("missing component: %s", out)
			}
			if !strings.Contains(out, "key=value") {
				t.Errorf("missing attribute: %s", out)
			}
		})
	}
}

func TestLogFormatJSON(t *testing.T) {
	buf := captureLogs(t, LogFormatJSON, slog.LevelInfo)

	Logger(ComponentExample).Info("json record", "n", 3)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not one JSON record: %v: %s", err, buf.String())
	}
	if rec["msg"] != "json record" || rec["component"] != "example" || rec["n"] != float64(3) {
		t.Errorf("record = %v", rec)
	}
}

func TestLogger_LevelFollowsSetLogLevel(t *testing.T) {
	buf := captureLogs(t, LogFormatText, slog.LevelWarn)

	logger := Logger(ComponentSerial)
	logger.Debug("before")
	SetLogLevel(slog.LevelDebug)
	logger.Debug("after")

	out := buf.String()
	if strings.Contains(out, "before") || !strings.Contains(out, "after") {
		t.Errorf("held logger output = %q", out)
	}
}
