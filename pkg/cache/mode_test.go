package cache

import (
	"testing"
)

func testHandles(t *testing.T) (local, remote *BackendHandle) {
	t.Helper()
	lb := NewMemoryBackend("local", 1<<20)
	rb := NewMemoryBackend("remote", 1<<20)
	t.Cleanup(func() { lb.Close(); rb.Close() })
	return newHandle(lb), newHandle(rb)
}

func TestParseMode(t *testing.T) {
	cases := map[string]Mode{"local": ModeLocal, "dual": ModeDual, "remote": ModeRemote}
	for s, want := range cases {
		got, err := ParseMode(s)
		if err != nil {
			t.Fatalf("ParseMode(%q): %v", s, err)
		}
		if got != want {
			t.Errorf("ParseMode(%q) = %v, want %v", s, got, want)
		}
		if got.String() != s {
			t.Errorf("Mode.String() = %q, want %q", got.String(), s)
		}
	}
	if _, err := ParseMode("hybrid"); err == nil {
		t.Error("Expected error for unknown mode")
	}
}

func TestModeController_Plans(t *testing.T) {
	local, remote := testHandles(t)
	c, err := NewModeController(local, remote, ModeDual)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	p := c.Plan()
	if p.mode != ModeDual {
		t.Errorf("Expected dual mode, got %v", p.mode)
	}
	// Remote is the primary of record: first in both plans.
	if len(p.read) != 2 || p.read[0] != remote || p.read[1] != local {
		t.Error("Expected dual read plan [remote, local]")
	}
	if len(p.write) != 2 || p.write[0] != remote || p.write[1] != local {
		t.Error("Expected dual write plan [remote, local]")
	}

	if err := c.SetMode(ModeLocal); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	p = c.Plan()
	if len(p.read) != 1 || p.read[0] != local || len(p.write) != 1 {
		t.Error("Expected local-only plans")
	}

	if err := c.SetMode(ModeRemote); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	p = c.Plan()
	if len(p.read) != 1 || p.read[0] != remote {
		t.Error("Expected remote-only read plan")
	}
}

func TestModeController_DualDegradesWithoutRemote(t *testing.T) {
	local, _ := testHandles(t)
	c, err := NewModeController(local, nil, ModeDual)
	if err != nil {
		t.Fatalf("Expected degraded dual, got error %v", err)
	}

	p := c.Plan()
	if p.mode != ModeDual {
		t.Errorf("Expected mode to stay dual, got %v", p.mode)
	}
	if len(p.read) != 1 || p.read[0] != local {
		t.Error("Expected read plan reduced to the local side")
	}
}

func TestModeController_MissingBackendRejected(t *testing.T) {
	local, remote := testHandles(t)

	if _, err := NewModeController(local, nil, ModeRemote); err == nil {
		t.Error("Expected error for remote mode without remote backend")
	}
	if _, err := NewModeController(nil, remote, ModeLocal); err == nil {
		t.Error("Expected error for local mode without local backend")
	}
	if _, err := NewModeController(nil, nil, ModeDual); err == nil {
		t.Error("Expected error for dual mode with no backends")
	}

	// A running controller rejects a switch it cannot satisfy and keeps the
	// previous plan.
	c, err := NewModeController(nil, remote, ModeRemote)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := c.SetMode(ModeLocal); err == nil {
		t.Error("Expected error switching to local without a local backend")
	}
	if c.Mode() != ModeRemote {
		t.Errorf("Expected mode to remain remote, got %v", c.Mode())
	}
}
