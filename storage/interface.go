package storage

import (
	"context"

	"clustersync/pkg/payload"
)

// Store defines the local persistent store: the on-disk state that is
// authoritative for the admin role and a mirror target for workers during
// restore. Credentials, settings and sessions are opaque JSON objects; flows
// carry their wire shape through the payload type.
type Store interface {
	Flows(ctx context.Context) (*payload.Payload, error)
	SaveFlows(ctx context.Context, p *payload.Payload) error

	Credentials(ctx context.Context) (map[string]any, error)
	SaveCredentials(ctx context.Context, creds map[string]any) error

	Settings(ctx context.Context) (map[string]any, error)
	SaveSettings(ctx context.Context, settings map[string]any) error

	Sessions(ctx context.Context) (map[string]any, error)
	SaveSessions(ctx context.Context, sessions map[string]any) error

	Close() error
}
