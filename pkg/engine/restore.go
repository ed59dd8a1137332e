package engine

import (
	"context"

	"clustersync/config"
	"clustersync/pkg/payload"
)

// ensureRestored materializes the shared store's authoritative copy of a
// category into the worker's local state, once per process lifetime.
//
// The flag advances on success, miss and handled failure alike: a worker
// that found nothing starts from its defaults and converges when the admin
// next publishes, rather than hammering the store with retries.
func (e *Engine) ensureRestored(ctx context.Context, c Category) {
	if e.role != config.RoleWorker {
		return
	}

	e.restoreMu.Lock()
	defer e.restoreMu.Unlock()
	if e.restored[c] {
		return
	}
	e.restoreCategory(ctx, c)
	e.restored[c] = true
}

func (e *Engine) restoreCategory(ctx context.Context, c Category) {
	log := e.log.WithField("category", c)

	scope := e.scopeOrEmpty(ctx)
	key := e.keys.Resolve(scope, c)

	data, found, err := e.shared.Get(ctx, key)
	if err != nil {
		// Transport failure is treated as a miss; the next process restart
		// retries.
		log.WithError(err).Warn("restore fetch failed, keeping local defaults")
		return
	}
	if !found {
		log.Debug("no shared state to restore, keeping local defaults")
		return
	}

	if err := e.materialize(ctx, c, scope, data); err != nil {
		log.WithError(err).Warn("restore failed, keeping local defaults")
		return
	}
	log.Info("restored category from shared store")
}

// materialize decodes a fetched value and hands it to the local store so the
// on-disk mirror stays consistent with the shared state.
func (e *Engine) materialize(ctx context.Context, c Category, scope string, data []byte) error {
	switch c {
	case CategoryFlows:
		p, err := e.decodeFlows(data)
		if err != nil {
			return err
		}
		// Two historical wire formats exist; translate to the shape the
		// local store expects for the current scope instead of failing.
		if scope == "" && p.Shape == payload.ShapeScoped {
			p = p.AsBare()
		} else if scope != "" && p.Shape == payload.ShapeBare {
			p = p.AsScoped("")
		}
		// Straight to the local store: a restore is a mirror write, not a
		// durable save, so it fires no hooks and publishes nothing.
		return e.local.SaveFlows(ctx, p)
	case CategoryCredentials:
		var creds map[string]any
		if err := e.codec.Decode(data, &creds); err != nil {
			return err
		}
		return e.local.SaveCredentials(ctx, creds)
	case CategorySettings:
		var settings map[string]any
		if err := e.codec.Decode(data, &settings); err != nil {
			return err
		}
		return e.local.SaveSettings(ctx, settings)
	case CategorySessions:
		var sessions map[string]any
		if err := e.codec.Decode(data, &sessions); err != nil {
			return err
		}
		return e.local.SaveSessions(ctx, sessions)
	default:
		return nil
	}
}
