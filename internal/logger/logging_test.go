package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestNewWithConfig(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithConfig(&buf, "index", log.InfoLevel, false, false, log.LogfmtFormatter)
	l.Debug("hidden")
	l.Info("built", "entries", 12)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line written at info level: %q", out)
	}
	if !strings.Contains(out, "entries=12") || !strings.Contains(out, "index") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestSetGlobal(t *testing.T) {
	prev := log.GetLevel()
	defer log.SetLevel(prev)

	SetGlobal("debug", false)
	if log.GetLevel() != log.DebugLevel {
		t.Errorf("level = %v, want debug", log.GetLevel())
	}
	SetGlobal("nonsense", false)
	if log.GetLevel() != log.WarnLevel {
		t.Errorf("level = %v, want warn fallback", log.GetLevel())
	}
}
