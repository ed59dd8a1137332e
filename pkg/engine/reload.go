package engine

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// onFlowUpdate is the worker's subscriber callback for the flow-update
// channel. It prefers an in-place reload through the host's hook; when no
// hook exists or the hook fails in any way, it falls back to a clean process
// exit so the supervisor restarts the worker against fresh shared state.
//
// State machine per message: Idle -> Reloading -> Idle (hook succeeds), or
// Reloading -> Terminating (hook missing, errors or panics).
func (e *Engine) onFlowUpdate(data []byte) {
	var env updateEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		e.log.WithError(err).Warn("malformed flow update envelope")
	}
	if env.Origin != "" && env.Origin == e.origin {
		return
	}

	log := e.log.WithField("published_at_ms", env.TS)
	log.Info("flow update received")

	if err := e.tryReload(); err != nil {
		log.WithError(err).Info("in-place reload unavailable, requesting restart")
		e.exit.Exit(0)
		return
	}
	log.Info("flows reloaded in place")
}

// tryReload invokes the host reload hook, converting a missing hook, an
// error and a panic into a single failure path so the restart fallback is
// never starved.
func (e *Engine) tryReload() (err error) {
	if e.reloadHook == nil {
		return errors.New("no reload hook registered")
	}
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("reload hook panicked: %v", r)
		}
	}()
	return e.reloadHook()
}
