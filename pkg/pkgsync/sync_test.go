package pkgsync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clustersync/pkg/sharedstore"
)

type fakeInstaller struct {
	mu          sync.Mutex
	calls       []string
	failVerb    string
	failMessage string
}

func (f *fakeInstaller) record(verb string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("%s:%v", verb, ids))
	if f.failVerb == verb {
		return fmt.Errorf("%s", f.failMessage)
	}
	return nil
}

func (f *fakeInstaller) Install(ctx context.Context, ids []string) error {
	return f.record("install", ids)
}

func (f *fakeInstaller) Uninstall(ctx context.Context, ids []string) error {
	return f.record("uninstall", ids)
}

type fakeExiter struct {
	mu    sync.Mutex
	codes []int
}

func (f *fakeExiter) Exit(code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes = append(f.codes, code)
}

func (f *fakeExiter) last() (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.codes) == 0 {
		return 0, false
	}
	return f.codes[len(f.codes)-1], true
}

type syncerFixture struct {
	syncer    *Syncer
	shared    *sharedstore.MemoryStore
	installer *fakeInstaller
	exiter    *fakeExiter
	manifest  string
}

func newFixture(t *testing.T, debounce time.Duration) *syncerFixture {
	t.Helper()
	shared := sharedstore.NewMemoryStore()
	t.Cleanup(func() { shared.Close() })

	installer := &fakeInstaller{}
	exiter := &fakeExiter{}
	manifest := filepath.Join(t.TempDir(), "package.json")

	s := New(Options{
		Shared:        shared,
		Installer:     installer,
		Exiter:        exiter,
		ManifestKey:   "nodered:packages",
		Channel:       "nodered:packages:updated",
		ManifestPath:  manifest,
		CoreNamespace: "node-red",
		Debounce:      debounce,
	})
	t.Cleanup(s.Stop)

	return &syncerFixture{syncer: s, shared: shared, installer: installer, exiter: exiter, manifest: manifest}
}

func (fx *syncerFixture) writeManifest(t *testing.T, deps ...string) {
	t.Helper()
	doc := `{"dependencies":{`
	for i, d := range deps {
		if i > 0 {
			doc += ","
		}
		doc += fmt.Sprintf("%q:%q", d, "1.0.0")
	}
	doc += `}}`
	require.NoError(t, os.WriteFile(fx.manifest, []byte(doc), 0o644))
}

func TestAnnouncePublishesAndPersistsOnChange(t *testing.T) {
	fx := newFixture(t, time.Second)
	ctx := context.Background()

	var published [][]byte
	_, err := fx.shared.Subscribe(ctx, "nodered:packages:updated", func(payload []byte) {
		published = append(published, payload)
	})
	require.NoError(t, err)

	fx.writeManifest(t, "node-red-contrib-mqtt", "node-red")
	require.NoError(t, fx.syncer.Announce(ctx))

	require.Len(t, published, 1)
	assert.JSONEq(t, `["node-red-contrib-mqtt"]`, string(published[0]))

	stored, found, err := fx.shared.Get(ctx, "nodered:packages")
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `["node-red-contrib-mqtt"]`, string(stored))

	// Unchanged set: no second announcement.
	require.NoError(t, fx.syncer.Announce(ctx))
	assert.Len(t, published, 1)
}

func TestSeedPreventsReannouncement(t *testing.T) {
	fx := newFixture(t, time.Second)
	ctx := context.Background()

	require.NoError(t, fx.shared.Set(ctx, "nodered:packages", []byte(`["pkg-a"]`), 0))
	require.NoError(t, fx.syncer.Seed(ctx))

	var published int
	_, err := fx.shared.Subscribe(ctx, "nodered:packages:updated", func([]byte) {
		published++
	})
	require.NoError(t, err)

	fx.writeManifest(t, "pkg-a")
	require.NoError(t, fx.syncer.Announce(ctx))
	assert.Zero(t, published)
}

func TestDebounceCoalescesBursts(t *testing.T) {
	fx := newFixture(t, 80*time.Millisecond)
	ctx := context.Background()

	var mu sync.Mutex
	var published int
	_, err := fx.shared.Subscribe(ctx, "nodered:packages:updated", func([]byte) {
		mu.Lock()
		published++
		mu.Unlock()
	})
	require.NoError(t, err)

	fx.writeManifest(t, "pkg-a")

	// Two saves 50ms apart against an 80ms window. A timer timed from the
	// first save would fire at 80ms; one rescheduled by the second fires at
	// 130ms.
	fx.syncer.NotifySettingsSaved()
	time.Sleep(50 * time.Millisecond)
	fx.syncer.NotifySettingsSaved()

	// At ~90ms: past the first save's window, inside the second's.
	time.Sleep(40 * time.Millisecond)
	mu.Lock()
	assert.Zero(t, published, "the window restarts on every save")
	mu.Unlock()

	time.Sleep(200 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, 1, published, "the burst coalesces into one pass")
	mu.Unlock()
}

func TestWorkerAppliesDiffUninstallFirst(t *testing.T) {
	fx := newFixture(t, time.Second)
	ctx := context.Background()

	require.NoError(t, fx.shared.Set(ctx, "nodered:packages", []byte(`["red","blue"]`), 0))
	fx.writeManifest(t, "red", "green")

	err := fx.syncer.SyncFromStore(ctx)
	require.NoError(t, err)

	require.Equal(t, []string{"uninstall:[green]", "install:[blue]"}, fx.installer.calls)

	code, called := fx.exiter.last()
	require.True(t, called, "a successful sync with changes requests a restart")
	assert.Equal(t, ExitRestart, code)
}

func TestWorkerNoopWhenAlreadyInSync(t *testing.T) {
	fx := newFixture(t, time.Second)
	ctx := context.Background()

	require.NoError(t, fx.shared.Set(ctx, "nodered:packages", []byte(`["red"]`), 0))
	fx.writeManifest(t, "red")

	require.NoError(t, fx.syncer.SyncFromStore(ctx))

	assert.Empty(t, fx.installer.calls)
	_, called := fx.exiter.last()
	assert.False(t, called, "no restart when both diffs are empty")
}

func TestWorkerEmptyStoreEmptyManifestIsNoop(t *testing.T) {
	fx := newFixture(t, time.Second)

	require.NoError(t, fx.syncer.SyncFromStore(context.Background()))

	assert.Empty(t, fx.installer.calls)
	_, called := fx.exiter.last()
	assert.False(t, called)
}

func TestWorkerInstallFailureIsFatal(t *testing.T) {
	fx := newFixture(t, time.Second)
	ctx := context.Background()

	fx.installer.failVerb = "install"
	fx.installer.failMessage = "npm exited 254"

	require.NoError(t, fx.shared.Set(ctx, "nodered:packages", []byte(`["pkg-a","pkg-b"]`), 0))

	err := fx.syncer.SyncFromStore(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pkg-a")
	assert.Contains(t, err.Error(), "pkg-b")

	code, called := fx.exiter.last()
	require.True(t, called)
	assert.Equal(t, ExitFailure, code)
}

func TestWorkerUninstallFailureStopsBeforeInstall(t *testing.T) {
	fx := newFixture(t, time.Second)
	ctx := context.Background()

	fx.installer.failVerb = "uninstall"
	fx.installer.failMessage = "npm exited 1"

	require.NoError(t, fx.shared.Set(ctx, "nodered:packages", []byte(`["blue"]`), 0))
	fx.writeManifest(t, "green")

	err := fx.syncer.SyncFromStore(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "green")

	// Fail-fast: the install batch never runs after a failed uninstall.
	assert.Equal(t, []string{"uninstall:[green]"}, fx.installer.calls)

	code, _ := fx.exiter.last()
	assert.Equal(t, ExitFailure, code)
}

func TestHandleNotificationMalformedPayloadIgnored(t *testing.T) {
	fx := newFixture(t, time.Second)

	fx.syncer.HandleNotification([]byte("not-json"))

	assert.Empty(t, fx.installer.calls)
	_, called := fx.exiter.last()
	assert.False(t, called)
}

func TestHandleNotificationAppliesPayloadSet(t *testing.T) {
	fx := newFixture(t, time.Second)

	fx.syncer.HandleNotification([]byte(`["pkg-new"]`))

	assert.Equal(t, []string{"install:[pkg-new]"}, fx.installer.calls)
	code, called := fx.exiter.last()
	require.True(t, called)
	assert.Equal(t, ExitRestart, code)
}
