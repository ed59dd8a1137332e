package engine

import (
	"context"
	"encoding/json"
	"time"

	"clustersync/pkg/payload"
)

// updateEnvelope is the payload published on the flow-update channel. The
// timestamp lets workers log causality; origin identifies the publishing
// process.
type updateEnvelope struct {
	TS     int64  `json:"ts"`
	Origin string `json:"origin,omitempty"`
}

// readsLocal reports whether reads of c are served by the local store for
// this process's role.
func (e *Engine) readsLocal(c Category) bool {
	return Resolve(c, e.role).ReadFrom == StoreLocal
}

// mirrorsShared reports whether writes of c propagate to the shared store
// for this process's role.
func (e *Engine) mirrorsShared(c Category) bool {
	for _, w := range Resolve(c, e.role).WriteTo {
		if w == StoreShared {
			return true
		}
	}
	return false
}

// Flows returns the current flow set. Admin reads its local authoritative
// copy; workers restore lazily once, then read the shared store directly on
// every call so they never serve stale state.
func (e *Engine) Flows(ctx context.Context) (*payload.Payload, error) {
	if e.readsLocal(CategoryFlows) {
		return e.local.Flows(ctx)
	}

	e.ensureRestored(ctx, CategoryFlows)

	scope := e.scopeOrEmpty(ctx)
	data, found, err := e.shared.Get(ctx, e.keys.Resolve(scope, CategoryFlows))
	if err != nil {
		return nil, err
	}
	if !found {
		return payload.Empty(), nil
	}
	return e.decodeFlows(data)
}

// SaveFlows persists a flow set and, on the admin, propagates it to the
// fleet.
func (e *Engine) SaveFlows(ctx context.Context, p *payload.Payload) error {
	// Local durability first; a local failure fails the save.
	if err := e.local.SaveFlows(ctx, p); err != nil {
		return err
	}
	e.runPostSaveHooks(ctx, CategoryFlows)

	if !e.mirrorsShared(CategoryFlows) {
		return nil
	}

	// Mirror to the shared store. Replication freshness is best-effort once
	// local durability has succeeded.
	scope := e.scopeOrEmpty(ctx)
	if data, err := e.encodeFlows(p); err != nil {
		e.log.WithError(err).Error("encoding flows for mirror")
	} else if err := e.shared.Set(ctx, e.keys.Resolve(scope, CategoryFlows), data, 0); err != nil {
		e.log.WithError(err).Error("mirroring flows to shared store")
	}

	if err := e.touchScope(ctx); err != nil {
		e.log.WithError(err).Warn("refreshing active scope marker")
	}

	e.publishFlowUpdate(ctx)
	return nil
}

// Credentials returns the credential set for the process role.
func (e *Engine) Credentials(ctx context.Context) (map[string]any, error) {
	if e.readsLocal(CategoryCredentials) {
		return e.local.Credentials(ctx)
	}
	e.ensureRestored(ctx, CategoryCredentials)
	scope := e.scopeOrEmpty(ctx)
	return e.sharedObject(ctx, e.keys.Resolve(scope, CategoryCredentials))
}

func (e *Engine) SaveCredentials(ctx context.Context, creds map[string]any) error {
	if err := e.local.SaveCredentials(ctx, creds); err != nil {
		return err
	}
	e.runPostSaveHooks(ctx, CategoryCredentials)

	if e.mirrorsShared(CategoryCredentials) {
		scope := e.scopeOrEmpty(ctx)
		e.mirrorObject(ctx, e.keys.Resolve(scope, CategoryCredentials), creds, 0)
	}
	return nil
}

// Settings returns runtime settings for the process role.
func (e *Engine) Settings(ctx context.Context) (map[string]any, error) {
	if e.readsLocal(CategorySettings) {
		return e.local.Settings(ctx)
	}
	e.ensureRestored(ctx, CategorySettings)
	return e.sharedObject(ctx, e.keys.Category(CategorySettings))
}

func (e *Engine) SaveSettings(ctx context.Context, settings map[string]any) error {
	if err := e.local.SaveSettings(ctx, settings); err != nil {
		return err
	}
	e.runPostSaveHooks(ctx, CategorySettings)

	if e.mirrorsShared(CategorySettings) {
		e.mirrorObject(ctx, e.keys.Category(CategorySettings), settings, 0)
		// Settings saves follow plugin installs; give the install subsystem
		// time to finish writing the manifest before the sync pass reads it.
		if e.syncer != nil {
			e.syncer.NotifySettingsSaved()
		}
	}
	return nil
}

// Sessions returns editor session state for the process role.
func (e *Engine) Sessions(ctx context.Context) (map[string]any, error) {
	if e.readsLocal(CategorySessions) {
		return e.local.Sessions(ctx)
	}
	e.ensureRestored(ctx, CategorySessions)
	return e.sharedObject(ctx, e.keys.Category(CategorySessions))
}

func (e *Engine) SaveSessions(ctx context.Context, sessions map[string]any) error {
	if err := e.local.SaveSessions(ctx, sessions); err != nil {
		return err
	}
	e.runPostSaveHooks(ctx, CategorySessions)

	if e.mirrorsShared(CategorySessions) {
		e.mirrorObject(ctx, e.keys.Category(CategorySessions), sessions, e.sessionTTL)
	}
	return nil
}

func (e *Engine) publishFlowUpdate(ctx context.Context) {
	env := updateEnvelope{TS: time.Now().UnixMilli(), Origin: e.origin}
	data, err := json.Marshal(env)
	if err != nil {
		e.log.WithError(err).Error("encoding flow update envelope")
		return
	}
	if err := e.shared.Publish(ctx, e.updateChannel, data); err != nil {
		e.log.WithError(err).Warn("publishing flow update")
	}
}

// scopeOrEmpty resolves the active scope, treating lookup failures as "no
// scope" so transport errors degrade to unscoped keys instead of failing
// reads.
func (e *Engine) scopeOrEmpty(ctx context.Context) string {
	scope, err := e.ActiveScope(ctx)
	if err != nil {
		e.log.WithError(err).Warn("resolving active scope")
		return ""
	}
	return scope
}

// sharedObject reads a JSON object category from the shared store; a miss is
// an empty object.
func (e *Engine) sharedObject(ctx context.Context, key string) (map[string]any, error) {
	data, found, err := e.shared.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return map[string]any{}, nil
	}
	var obj map[string]any
	if err := e.codec.Decode(data, &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		obj = map[string]any{}
	}
	return obj, nil
}

// mirrorObject writes a JSON object to the shared store, best-effort.
func (e *Engine) mirrorObject(ctx context.Context, key string, obj map[string]any, ttl time.Duration) {
	data, err := e.codec.Encode(obj)
	if err != nil {
		e.log.WithError(err).WithField("key", key).Error("encoding mirror value")
		return
	}
	if err := e.shared.Set(ctx, key, data, ttl); err != nil {
		e.log.WithError(err).WithField("key", key).Error("mirroring to shared store")
	}
}

func (e *Engine) encodeFlows(p *payload.Payload) ([]byte, error) {
	data, err := p.Encode()
	if err != nil {
		return nil, err
	}
	return e.codec.EncodeRaw(data)
}

func (e *Engine) decodeFlows(data []byte) (*payload.Payload, error) {
	raw, err := e.codec.Raw(data)
	if err != nil {
		return nil, err
	}
	return payload.Decode(raw)
}
