package pkgsync

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"clustersync/pkg/sharedstore"
)

// Exiter terminates the process. Indirected so tests can observe exit codes
// instead of dying.
type Exiter interface {
	Exit(code int)
}

// OSExiter calls os.Exit.
type OSExiter struct{}

func (OSExiter) Exit(code int) { os.Exit(code) }

// Exit codes used as operator signaling. Zero asks the supervisor for a
// clean restart; one flags a sync failure that must not be papered over.
const (
	ExitRestart = 0
	ExitFailure = 1
)

// Options configures a Syncer.
type Options struct {
	Shared        sharedstore.Store
	Installer     Installer
	Exiter        Exiter
	ManifestKey   string // shared-store key holding the admin's full set
	Channel       string // package-update pub/sub channel
	ManifestPath  string // local installed-package manifest
	CoreNamespace string
	Debounce      time.Duration
}

// Syncer keeps worker package sets converged on the admin's. The admin side
// debounces settings saves into announcement passes; the worker side applies
// diffs against its own manifest, failing fast on installer errors.
type Syncer struct {
	shared        sharedstore.Store
	installer     Installer
	exit          Exiter
	manifestKey   string
	channel       string
	manifestPath  string
	coreNamespace string
	debounce      time.Duration
	log           *logrus.Entry

	mu    sync.Mutex
	timer *time.Timer
	last  Set // lastKnownAdminSet; admin side only
}

func New(opts Options) *Syncer {
	if opts.Exiter == nil {
		opts.Exiter = OSExiter{}
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	return &Syncer{
		shared:        opts.Shared,
		installer:     opts.Installer,
		exit:          opts.Exiter,
		manifestKey:   opts.ManifestKey,
		channel:       opts.Channel,
		manifestPath:  opts.ManifestPath,
		coreNamespace: opts.CoreNamespace,
		debounce:      opts.Debounce,
		last:          Set{},
		log:           logrus.WithField("component", "pkgsync"),
	}
}

// Seed loads lastKnownAdminSet from the shared store so a restarted admin
// does not re-announce an unchanged set as changed.
func (s *Syncer) Seed(ctx context.Context) error {
	set, err := s.readPublishedSet(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.last = set
	s.mu.Unlock()
	return nil
}

// NotifySettingsSaved schedules (or reschedules) the debounced announcement
// pass. Only the trailing save of a burst fires; the delay gives the install
// subsystem time to finish writing the manifest the pass will read.
func (s *Syncer) NotifySettingsSaved() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, s.fire)
}

// Stop cancels any pending debounce timer.
func (s *Syncer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Syncer) fire() {
	s.mu.Lock()
	s.timer = nil
	s.mu.Unlock()

	if err := s.Announce(context.Background()); err != nil {
		s.log.WithError(err).Warn("package announcement pass failed, will retry on next settings save")
	}
}

// Announce runs one admin-side pass: read the local manifest, compare with
// the last announced set, and on change publish and persist the full new set.
// A manifest read failure skips the pass; the next settings save retries.
func (s *Syncer) Announce(ctx context.Context) error {
	current, err := ReadManifest(s.manifestPath, s.coreNamespace)
	if err != nil {
		return err
	}

	s.mu.Lock()
	unchanged := s.last.Equal(current)
	s.mu.Unlock()
	if unchanged {
		s.log.Debug("package set unchanged, nothing to announce")
		return nil
	}

	ids := current.Sorted()
	payload, err := json.Marshal(ids)
	if err != nil {
		return errors.Wrap(err, "encode package set")
	}

	if err := s.shared.Publish(ctx, s.channel, payload); err != nil {
		// Fire-and-forget: workers missing this notification converge on
		// their next startup read of the manifest key.
		s.log.WithError(err).Warn("publishing package update")
	}
	if err := s.shared.Set(ctx, s.manifestKey, payload, 0); err != nil {
		// Keep lastKnownAdminSet unchanged so the next pass retries the write.
		return errors.Wrap(err, "persist package set")
	}

	s.mu.Lock()
	s.last = current
	s.mu.Unlock()

	s.log.WithField("packages", ids).Info("announced package set")
	return nil
}

// SyncFromStore is the worker's startup trigger: read the admin's published
// set from the shared store and converge on it.
func (s *Syncer) SyncFromStore(ctx context.Context) error {
	adminSet, err := s.readPublishedSet(ctx)
	if err != nil {
		return err
	}
	return s.apply(ctx, adminSet)
}

// HandleNotification is the worker's channel trigger. The payload is the
// admin's full current set as a JSON array.
func (s *Syncer) HandleNotification(payload []byte) {
	var ids []string
	if err := json.Unmarshal(payload, &ids); err != nil {
		s.log.WithError(err).Warn("ignoring malformed package notification")
		return
	}
	_ = s.apply(context.Background(), NewSet(ids...))
}

// apply converges the local package set on adminSet. Uninstalls run before
// installs so a package replaced by a differently-named equivalent never
// has both versions resident. Installer failure is fail-fast: an
// inconsistent plugin set is worse than a crash loop an orchestrator can see.
func (s *Syncer) apply(ctx context.Context, adminSet Set) error {
	workerSet, err := ReadManifest(s.manifestPath, s.coreNamespace)
	if err != nil {
		s.log.WithError(err).Error("cannot read local package manifest")
		s.exit.Exit(ExitFailure)
		return err
	}

	toInstall, toUninstall := Diff(adminSet, workerSet)
	if len(toInstall) == 0 && len(toUninstall) == 0 {
		s.log.Debug("package set already in sync")
		return nil
	}

	log := s.log.WithFields(logrus.Fields{
		"install":   toInstall,
		"uninstall": toUninstall,
	})

	if len(toUninstall) > 0 {
		if err := s.installer.Uninstall(ctx, toUninstall); err != nil {
			err = errors.Wrapf(err, "uninstalling packages %v", toUninstall)
			log.WithError(err).Error("package uninstall failed, terminating")
			s.exit.Exit(ExitFailure)
			return err
		}
	}
	if len(toInstall) > 0 {
		if err := s.installer.Install(ctx, toInstall); err != nil {
			err = errors.Wrapf(err, "installing packages %v", toInstall)
			log.WithError(err).Error("package install failed, terminating")
			s.exit.Exit(ExitFailure)
			return err
		}
	}

	// A clean restart picks up the newly available node types; the admin's
	// next flow deploy would otherwise find them missing from the registry.
	log.Info("package set synchronized, requesting restart")
	s.exit.Exit(ExitRestart)
	return nil
}

func (s *Syncer) readPublishedSet(ctx context.Context) (Set, error) {
	data, found, err := s.shared.Get(ctx, s.manifestKey)
	if err != nil {
		return nil, errors.Wrap(err, "read published package set")
	}
	if !found {
		return Set{}, nil
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, errors.Wrap(err, "decode published package set")
	}
	return NewSet(ids...), nil
}
