package log

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

func TestSimpleFormatterLayout(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogrusLoggerWithOutput("debug", &buf)

	logger.WithFields(map[string]interface{}{"track": "left", "duty": 0.5}).Warnf("pwm %s", "slow")

	line := buf.String()
	re := regexp.MustCompile(`^\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2}\.\d{6} \[WAR\] pwm slow duty=0.5 track=left\n$`)
	if !re.MatchString(line) {
		t.Errorf("Unexpected log line: %q", line)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogrusLoggerWithOutput("warn", &buf)

	logger.Infof("hidden")
	logger.Debugf("hidden")
	logger.Errorf("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Errorf("Expected info/debug to be filtered, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "[ERR] shown") {
		t.Errorf("Expected error line, got %q", buf.String())
	}
}

func TestInvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogrusLoggerWithOutput("loud", &buf)

	logger.Debugf("hidden")
	logger.Infof("visible")

	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "visible") {
		t.Errorf("Expected info level, got %q", buf.String())
	}
}

func TestNewLogrusLoggerWritesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	logger, err := NewLogrusLogger("info", dir, "vehicle")
	if err != nil {
		t.Fatalf("NewLogrusLogger failed: %v", err)
	}
	logger.Infof("session started")

	data, err := os.ReadFile(filepath.Join(dir, "vehicle.log"))
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "session started") {
		t.Errorf("Expected log file to contain message, got %q", string(data))
	}
}
