package payload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBareArray(t *testing.T) {
	p, err := Decode([]byte(`[{"id":"n1","type":"inject"},{"id":"n2","type":"debug"}]`))
	require.NoError(t, err)

	assert.Equal(t, ShapeBare, p.Shape)
	assert.Equal(t, []string{"n1", "n2"}, p.IDs())
	assert.Empty(t, p.Rev)
}

func TestDecodeScopedObject(t *testing.T) {
	p, err := Decode([]byte(`{"flows":[{"id":"n1"}],"rev":"abc123"}`))
	require.NoError(t, err)

	assert.Equal(t, ShapeScoped, p.Shape)
	assert.Equal(t, []string{"n1"}, p.IDs())
	assert.Equal(t, "abc123", p.Rev)
}

func TestDecodeEmptyInput(t *testing.T) {
	p, err := Decode([]byte("  \n"))
	require.NoError(t, err)

	assert.Equal(t, ShapeBare, p.Shape)
	assert.Empty(t, p.Flows)
}

func TestDecodeRejectsScalar(t *testing.T) {
	_, err := Decode([]byte(`"not-a-flow-set"`))
	assert.Error(t, err)
}

func TestShapeConversionPreservesOrder(t *testing.T) {
	p, err := Decode([]byte(`[{"id":"a"},{"id":"b"},{"id":"c"}]`))
	require.NoError(t, err)

	scoped := p.AsScoped("r1")
	assert.Equal(t, ShapeScoped, scoped.Shape)
	assert.Equal(t, "r1", scoped.Rev)
	assert.Equal(t, []string{"a", "b", "c"}, scoped.IDs())

	bare := scoped.AsBare()
	assert.Equal(t, ShapeBare, bare.Shape)
	assert.Equal(t, []string{"a", "b", "c"}, bare.IDs())
}

func TestEncodeRoundTrip(t *testing.T) {
	t.Run("bare", func(t *testing.T) {
		orig, err := Decode([]byte(`[{"id":"x","wires":[["y"]]}]`))
		require.NoError(t, err)

		data, err := orig.Encode()
		require.NoError(t, err)

		back, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, ShapeBare, back.Shape)
		assert.Equal(t, orig.IDs(), back.IDs())
	})

	t.Run("scoped", func(t *testing.T) {
		orig, err := Decode([]byte(`{"flows":[{"id":"x"}],"rev":"deadbeef"}`))
		require.NoError(t, err)

		data, err := orig.Encode()
		require.NoError(t, err)

		back, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, ShapeScoped, back.Shape)
		assert.Equal(t, "deadbeef", back.Rev)
		assert.Equal(t, orig.IDs(), back.IDs())
	})
}

func TestEmptyDefault(t *testing.T) {
	p := Empty()
	assert.Equal(t, ShapeBare, p.Shape)
	assert.NotNil(t, p.Flows)
	assert.Empty(t, p.Flows)
	assert.Empty(t, p.Rev)
}
