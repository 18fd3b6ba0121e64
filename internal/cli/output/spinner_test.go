package output

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestNewSpinner(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner(&buf, "Creating snapshot...")

	if s.w != &buf {
		t.Error("writer not set")
	}
	if s.message != "Creating snapshot..." {
		t.Errorf("message = %q, want 'Creating snapshot...'", s.message)
	}
	if len(s.frames) == 0 {
		t.Error("no animation frames")
	}
	if s.done == nil {
		t.Error("done channel not initialized")
	}
}

func TestSpinner_StartStop(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner(&buf, "Creating snapshot...")

	s.Start()
	time.Sleep(150 * time.Millisecond)
	s.Stop()
	time.Sleep(50 * time.Millisecond)

	// The animation redraws in place.
	if !strings.Contains(buf.String(), "\r") {
		t.Error("spinner output should redraw with carriage returns")
	}
}

func TestSpinner_Success(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner(&buf, "Creating snapshot...")

	s.Start()
	time.Sleep(50 * time.Millisecond)
	s.Success("Snapshot cgsnap-001 created")
	time.Sleep(50 * time.Millisecond)

	out := buf.String()
	if !strings.Contains(out, "✓") {
		t.Error("success output missing checkmark")
	}
	if !strings.Contains(out, "Snapshot cgsnap-001 created") {
		t.Error("success output missing message")
	}
}

func TestSpinner_Fail(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner(&buf, "Creating snapshot...")

	s.Start()
	time.Sleep(50 * time.Millisecond)
	s.Fail("snapshot failed")
	time.Sleep(50 * time.Millisecond)

	out := buf.String()
	if !strings.Contains(out, "✗") {
		t.Error("fail output missing cross mark")
	}
	if !strings.Contains(out, "snapshot failed") {
		t.Error("fail output missing message")
	}
}

func TestSpinner_StopWithoutStart(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner(&buf, "idle")

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Stop without Start panicked: %v", r)
		}
	}()
	s.Stop()
}
