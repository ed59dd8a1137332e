package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLibraryEntryRoundTrip(t *testing.T) {
	fx := newFixture(t, testConfig("admin"))
	ctx := context.Background()

	entry := LibraryEntry{
		Meta: map[string]any{"outputs": 1.0},
		Body: "return msg;",
	}
	require.NoError(t, fx.engine.SaveLibraryEntry(ctx, "functions", "math/double", entry))

	got, found, err := fx.engine.LibraryEntry(ctx, "functions", "math/double")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "return msg;", got.Body)
	assert.Equal(t, 1.0, got.Meta["outputs"])
}

func TestLibraryEntryMissing(t *testing.T) {
	fx := newFixture(t, testConfig("worker"))

	_, found, err := fx.engine.LibraryEntry(context.Background(), "functions", "nope")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLibraryEntrySharedAcrossRoles(t *testing.T) {
	admin, worker, _ := adminAndWorker(t)
	ctx := context.Background()

	require.NoError(t, admin.SaveLibraryEntry(ctx, "flows", "samples/demo", LibraryEntry{Body: "[]"}))

	got, found, err := worker.LibraryEntry(ctx, "flows", "samples/demo")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "[]", got.Body)
}

func TestListLibraryEntries(t *testing.T) {
	fx := newFixture(t, testConfig("admin"))
	ctx := context.Background()

	for _, path := range []string{"math/add", "math/mul", "strings/upper"} {
		require.NoError(t, fx.engine.SaveLibraryEntry(ctx, "functions", path, LibraryEntry{Body: "x"}))
	}

	all, err := fx.engine.ListLibraryEntries(ctx, "functions", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"math/add", "math/mul", "strings/upper"}, all)

	math, err := fx.engine.ListLibraryEntries(ctx, "functions", "math")
	require.NoError(t, err)
	assert.Equal(t, []string{"add", "mul"}, math)
}

func TestActiveScopeRoundTrip(t *testing.T) {
	fx := newFixture(t, testConfig("admin"))
	ctx := context.Background()

	scope, err := fx.engine.ActiveScope(ctx)
	require.NoError(t, err)
	assert.Empty(t, scope, "no marker means no active scope")

	require.NoError(t, fx.engine.SetActiveScope(ctx, "plant-7"))

	scope, err = fx.engine.ActiveScope(ctx)
	require.NoError(t, err)
	assert.Equal(t, "plant-7", scope)
}

func TestFlowSaveRefreshesScopeMarker(t *testing.T) {
	fx := newFixture(t, testConfig("admin"))
	ctx := context.Background()

	require.NoError(t, fx.engine.SetActiveScope(ctx, "plant-7"))

	var before ScopeMarker
	data, found, err := fx.shared.Get(ctx, "nodered:activeProject")
	require.NoError(t, err)
	require.True(t, found)
	require.NoError(t, fx.engine.codec.Decode(data, &before))

	require.NoError(t, fx.engine.SaveFlows(ctx, mustDecodeFlows(t, []byte(`[{"id":"n1"}]`))))

	var after ScopeMarker
	data, _, err = fx.shared.Get(ctx, "nodered:activeProject")
	require.NoError(t, err)
	require.NoError(t, fx.engine.codec.Decode(data, &after))

	assert.Equal(t, "plant-7", after.Name)
	assert.False(t, after.UpdatedAt.Before(before.UpdatedAt))
}
