package engine

import (
	"context"
	"sync/atomic"

	"github.com/pkg/errors"

	"clustersync/pkg/payload"
)

// ErrNotReady is returned by Handle calls made before Init has completed.
var ErrNotReady = errors.New("cluster engine not initialized")

// Handle is a stable indirection to an engine that may not exist yet. The
// host wires its call sites against one Handle at load time; Ready swaps in
// the live engine atomically after Init, and every call checks the current
// variant instead of relying on a reassigned global.
type Handle struct {
	engine atomic.Pointer[Engine]
}

func NewHandle() *Handle {
	return &Handle{}
}

// Ready publishes e to all Handle callers.
func (h *Handle) Ready(e *Engine) {
	h.engine.Store(e)
}

// Engine returns the live engine, or ErrNotReady before initialization.
func (h *Handle) Engine() (*Engine, error) {
	e := h.engine.Load()
	if e == nil {
		return nil, ErrNotReady
	}
	return e, nil
}

func (h *Handle) Flows(ctx context.Context) (*payload.Payload, error) {
	e, err := h.Engine()
	if err != nil {
		return nil, err
	}
	return e.Flows(ctx)
}

func (h *Handle) SaveFlows(ctx context.Context, p *payload.Payload) error {
	e, err := h.Engine()
	if err != nil {
		return err
	}
	return e.SaveFlows(ctx, p)
}

func (h *Handle) Credentials(ctx context.Context) (map[string]any, error) {
	e, err := h.Engine()
	if err != nil {
		return nil, err
	}
	return e.Credentials(ctx)
}

func (h *Handle) SaveCredentials(ctx context.Context, creds map[string]any) error {
	e, err := h.Engine()
	if err != nil {
		return err
	}
	return e.SaveCredentials(ctx, creds)
}

func (h *Handle) Settings(ctx context.Context) (map[string]any, error) {
	e, err := h.Engine()
	if err != nil {
		return nil, err
	}
	return e.Settings(ctx)
}

func (h *Handle) SaveSettings(ctx context.Context, settings map[string]any) error {
	e, err := h.Engine()
	if err != nil {
		return err
	}
	return e.SaveSettings(ctx, settings)
}

func (h *Handle) Sessions(ctx context.Context) (map[string]any, error) {
	e, err := h.Engine()
	if err != nil {
		return nil, err
	}
	return e.Sessions(ctx)
}

func (h *Handle) SaveSessions(ctx context.Context, sessions map[string]any) error {
	e, err := h.Engine()
	if err != nil {
		return err
	}
	return e.SaveSessions(ctx, sessions)
}

func (h *Handle) ActiveScope(ctx context.Context) (string, error) {
	e, err := h.Engine()
	if err != nil {
		return "", err
	}
	return e.ActiveScope(ctx)
}

func (h *Handle) SetActiveScope(ctx context.Context, name string) error {
	e, err := h.Engine()
	if err != nil {
		return err
	}
	return e.SetActiveScope(ctx, name)
}
