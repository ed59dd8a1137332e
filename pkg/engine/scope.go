package engine

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ScopeMarker records the currently active project/workspace. It is written
// by the admin on scope changes and flow saves, and consulted by both roles
// to resolve scoped category keys.
type ScopeMarker struct {
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ActiveScope returns the active scope name, or "" when none is set.
func (e *Engine) ActiveScope(ctx context.Context) (string, error) {
	data, found, err := e.shared.Get(ctx, e.keys.ActiveScope())
	if err != nil {
		return "", errors.Wrap(err, "read active scope")
	}
	if !found {
		return "", nil
	}
	var marker ScopeMarker
	if err := e.codec.Decode(data, &marker); err != nil {
		return "", errors.Wrap(err, "decode active scope marker")
	}
	return marker.Name, nil
}

// SetActiveScope records name as the active scope. It does not migrate any
// previously shared unscoped data; callers wanting migration follow up with
// an explicit flow save.
func (e *Engine) SetActiveScope(ctx context.Context, name string) error {
	data, err := e.codec.Encode(ScopeMarker{Name: name, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return e.shared.Set(ctx, e.keys.ActiveScope(), data, 0)
}

// touchScope refreshes the marker's timestamp for the current scope.
// Best-effort: failures are logged by the caller's save path.
func (e *Engine) touchScope(ctx context.Context) error {
	name, err := e.ActiveScope(ctx)
	if err != nil {
		return err
	}
	if name == "" {
		return nil
	}
	return e.SetActiveScope(ctx, name)
}
