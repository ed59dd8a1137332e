package engine

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"clustersync/config"
	"clustersync/pkg/codec"
	"clustersync/pkg/pkgsync"
	"clustersync/pkg/sharedstore"
	"clustersync/storage"
)

// ReloadHook triggers the host runtime's own flow-reload path. Absence is a
// valid state: without a hook the engine falls back to a process restart.
type ReloadHook func() error

// PostSaveHook runs after a successful durable admin write. Hooks are
// independently fallible; a hook error is logged and never affects the
// save's result.
type PostSaveHook func(ctx context.Context, c Category) error

// Exiter terminates the process; indirected for tests.
type Exiter interface {
	Exit(code int)
}

type osExiter struct{}

func (osExiter) Exit(code int) { os.Exit(code) }

// Options carries the collaborators an Engine is built from.
type Options struct {
	Config     *config.Config
	Shared     sharedstore.Store
	Local      storage.Store
	Installer  pkgsync.Installer
	ReloadHook ReloadHook
	Exiter     Exiter
}

// Engine is the cluster coordination engine: it decides which store is
// authoritative per category and role, restores worker state lazily,
// propagates admin writes with notifications, and keeps installed package
// sets synchronized across the fleet.
type Engine struct {
	role           config.Role
	keys           Keys
	shared         sharedstore.Store
	local          storage.Store
	codec          *codec.Codec
	syncer         *pkgsync.Syncer
	reloadHook     ReloadHook
	exit           Exiter
	updateChannel  string
	packageChannel string
	sessionTTL     time.Duration
	syncPackages   bool
	origin         string
	log            *logrus.Entry

	restoreMu sync.Mutex
	restored  map[Category]bool

	mu       sync.Mutex
	postSave []PostSaveHook
	cancels  []sharedstore.CancelFunc
}

// Init validates the configuration and builds an engine. An invalid or
// missing role is a configuration error: the engine refuses to start rather
// than guess a default.
func Init(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Config == nil {
		return nil, errors.New("engine: config is required")
	}
	role, err := config.ParseRole(opts.Config.Cluster.Role)
	if err != nil {
		return nil, err
	}
	if opts.Shared == nil || opts.Local == nil {
		return nil, errors.New("engine: shared and local stores are required")
	}
	if opts.Exiter == nil {
		opts.Exiter = osExiter{}
	}

	cc := opts.Config.Cluster
	e := &Engine{
		role:           role,
		keys:           Keys{Prefix: cc.KeyPrefix},
		shared:         opts.Shared,
		local:          opts.Local,
		codec:          codec.New(cc.EnableCompression),
		reloadHook:     opts.ReloadHook,
		exit:           opts.Exiter,
		updateChannel:  cc.UpdateChannel,
		packageChannel: cc.PackageChannel,
		sessionTTL:     cc.SessionTTLDuration(),
		syncPackages:   cc.SyncPackages,
		origin:         uuid.NewString(),
		restored:       make(map[Category]bool),
		log: logrus.WithFields(logrus.Fields{
			"component": "engine",
			"role":      string(role),
		}),
	}

	if e.syncPackages {
		e.syncer = pkgsync.New(pkgsync.Options{
			Shared:        opts.Shared,
			Installer:     opts.Installer,
			Exiter:        opts.Exiter,
			ManifestKey:   e.keys.Packages(),
			Channel:       cc.PackageChannel,
			ManifestPath:  opts.Config.Packages.ManifestPath,
			CoreNamespace: opts.Config.Packages.CoreNamespace,
			Debounce:      cc.Debounce(),
		})
		if role == config.RoleAdmin {
			if err := e.syncer.Seed(ctx); err != nil {
				// Seeding only prevents a spurious first announcement; an
				// unreachable store at init must not block startup.
				e.log.WithError(err).Warn("seeding package set from shared store")
			}
		}
	}

	return e, nil
}

// Role returns the process role decided at init.
func (e *Engine) Role() config.Role { return e.role }

// Start wires the worker's subscriptions and runs its startup package sync.
// On the admin it is a no-op beyond logging; admin-side triggers are the
// save operations themselves.
func (e *Engine) Start(ctx context.Context) error {
	if e.role != config.RoleWorker {
		e.log.Info("engine started")
		return nil
	}

	cancel, err := e.shared.Subscribe(ctx, e.updateChannel, e.onFlowUpdate)
	if err != nil {
		return errors.Wrapf(err, "subscribe %s", e.updateChannel)
	}
	e.addCancel(cancel)

	if e.syncPackages {
		cancel, err = e.shared.Subscribe(ctx, e.packageChannel, e.syncer.HandleNotification)
		if err != nil {
			return errors.Wrapf(err, "subscribe %s", e.packageChannel)
		}
		e.addCancel(cancel)

		// Startup trigger: converge on whatever the admin last published.
		if err := e.syncer.SyncFromStore(ctx); err != nil {
			return errors.Wrap(err, "startup package sync")
		}
	}

	e.log.Info("engine started")
	return nil
}

// OnPostSave registers a hook invoked after every successful durable admin
// write.
func (e *Engine) OnPostSave(h PostSaveHook) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.postSave = append(e.postSave, h)
}

// NotifySettingsSaved forwards an external settings-save signal to the
// package syncer's debounce. The host calls this when its install subsystem
// mutates settings outside the engine's own SaveSettings path.
func (e *Engine) NotifySettingsSaved() {
	if e.role == config.RoleAdmin && e.syncer != nil {
		e.syncer.NotifySettingsSaved()
	}
}

// Close cancels subscriptions and pending timers. It does not close the
// stores; their lifetime is owned by the caller that opened them.
func (e *Engine) Close() {
	e.mu.Lock()
	cancels := e.cancels
	e.cancels = nil
	e.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	if e.syncer != nil {
		e.syncer.Stop()
	}
}

func (e *Engine) addCancel(c sharedstore.CancelFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancels = append(e.cancels, c)
}

// runPostSaveHooks fires registered hooks; failures are logged only.
func (e *Engine) runPostSaveHooks(ctx context.Context, c Category) {
	e.mu.Lock()
	hooks := make([]PostSaveHook, len(e.postSave))
	copy(hooks, e.postSave)
	e.mu.Unlock()

	for _, h := range hooks {
		if err := h(ctx, c); err != nil {
			e.log.WithError(err).WithField("category", c).Warn("post-save hook failed")
		}
	}
}
