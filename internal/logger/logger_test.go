package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: "bogus", Output: &buf})
	if l.GetLevel() != logrus.InfoLevel {
		t.Fatalf("expected info level, got %s", l.GetLevel())
	}

	l.Debug("hidden")
	l.WithComponent("poller").Info("visible")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug entry should be filtered: %s", out)
	}
	if !strings.Contains(out, "component=poller") {
		t.Fatalf("expected component field: %s", out)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: "debug", Format: "JSON", Output: &buf})
	l.WithFields(Fields{"job_id": "j1", "done": 2}).Debug("tick")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON output: %v (%s)", err, buf.String())
	}
	if entry["job_id"] != "j1" || entry["msg"] != "tick" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestSetLevelName(t *testing.T) {
	l := Discard()
	if !l.SetLevelName("WARN") || l.GetLevel() != logrus.WarnLevel {
		t.Fatalf("expected warn level, got %s", l.GetLevel())
	}
	if l.SetLevelName("loud") {
		t.Fatal("invalid level should be rejected")
	}
	if l.GetLevel() != logrus.WarnLevel {
		t.Fatal("invalid level must not change the current level")
	}
}

func TestOrDiscard(t *testing.T) {
	if OrDiscard(nil) == nil {
		t.Fatal("expected a discarding logger")
	}
	l := Discard()
	if OrDiscard(l) != l {
		t.Fatal("expected the given logger back")
	}
}

func TestOpenFileCreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "nested", "console.log")
	f, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer f.Close()

	l := New(Options{Output: f})
	l.Info("to file")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Fatalf("log file missing entry: %s", data)
	}
}
