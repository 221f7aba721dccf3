package cache

import (
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Mode selects which tiers serve reads and receive writes.
type Mode int

const (
	ModeLocal  Mode = iota // local tier only
	ModeDual               // write both, read remote with local fallback
	ModeRemote             // remote tier only
)

func (m Mode) String() string {
	switch m {
	case ModeLocal:
		return "local"
	case ModeDual:
		return "dual"
	case ModeRemote:
		return "remote"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses the configuration strings local, dual and remote.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "local":
		return ModeLocal, nil
	case "dual":
		return ModeDual, nil
	case "remote":
		return ModeRemote, nil
	default:
		return 0, fmt.Errorf("unknown cache mode %q", s)
	}
}

// plan is the resolved, immutable adapter ordering for one mode. Plans are
// swapped wholesale; in-flight operations keep the plan they loaded and never
// observe a half-transitioned state.
type plan struct {
	mode  Mode
	read  []*BackendHandle
	write []*BackendHandle
}

// ModeController resolves read and write plans for the active mode. Mode
// changes come from admin action only; health state never changes the mode.
type ModeController struct {
	local   *BackendHandle // nil when no local tier is configured
	remote  *BackendHandle // nil when no remote tier is configured
	current atomic.Pointer[plan]
}

func NewModeController(local, remote *BackendHandle, mode Mode) (*ModeController, error) {
	c := &ModeController{local: local, remote: remote}
	p, err := c.build(mode)
	if err != nil {
		return nil, err
	}
	c.current.Store(p)
	return c, nil
}

func (c *ModeController) build(mode Mode) (*plan, error) {
	switch mode {
	case ModeLocal:
		if c.local == nil {
			return nil, fmt.Errorf("mode local requires a local backend")
		}
		both := []*BackendHandle{c.local}
		return &plan{mode: ModeLocal, read: both, write: both}, nil
	case ModeRemote:
		if c.remote == nil {
			return nil, fmt.Errorf("mode remote requires a remote backend")
		}
		both := []*BackendHandle{c.remote}
		return &plan{mode: ModeRemote, read: both, write: both}, nil
	case ModeDual:
		switch {
		case c.local != nil && c.remote != nil:
			// Remote is the primary of record: preferred for reads, first in
			// the write plan.
			return &plan{
				mode:  ModeDual,
				read:  []*BackendHandle{c.remote, c.local},
				write: []*BackendHandle{c.remote, c.local},
			}, nil
		case c.remote != nil:
			slog.Warn("dual mode with no local backend, degrading to remote")
			both := []*BackendHandle{c.remote}
			return &plan{mode: ModeDual, read: both, write: both}, nil
		case c.local != nil:
			slog.Warn("dual mode with no remote backend, degrading to local")
			both := []*BackendHandle{c.local}
			return &plan{mode: ModeDual, read: both, write: both}, nil
		default:
			return nil, fmt.Errorf("mode dual requires at least one backend")
		}
	default:
		return nil, fmt.Errorf("unknown cache mode %v", mode)
	}
}

// Plan returns the active plan. A single atomic load, safe on every request.
func (c *ModeController) Plan() *plan { return c.current.Load() }

// Mode returns the active operating mode.
func (c *ModeController) Mode() Mode { return c.current.Load().mode }

// SetMode atomically swaps in the plan for the requested mode.
func (c *ModeController) SetMode(mode Mode) error {
	p, err := c.build(mode)
	if err != nil {
		return err
	}
	old := c.current.Swap(p)
	if old.mode != p.mode {
		slog.Info("cache mode changed", "from", old.mode.String(), "to", p.mode.String())
	}
	return nil
}

// Handles returns every configured backend handle, local first.
func (c *ModeController) Handles() []*BackendHandle {
	var out []*BackendHandle
	if c.local != nil {
		out = append(out, c.local)
	}
	if c.remote != nil {
		out = append(out, c.remote)
	}
	return out
}
