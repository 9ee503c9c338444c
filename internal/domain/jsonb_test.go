package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONBMapValue(t *testing.T) {
	t.Run("empty map stores an empty object", func(t *testing.T) {
		for _, m := range []JSONBMap{nil, {}} {
			v, err := m.Value()
			require.NoError(t, err)
			assert.Equal(t, []byte("{}"), v)
		}
	})

	t.Run("entries are serialized", func(t *testing.T) {
		v, err := JSONBMap{"Aanvaarding": "In overleg"}.Value()
		require.NoError(t, err)
		assert.JSONEq(t, `{"Aanvaarding": "In overleg"}`, string(v.([]byte)))
	})
}

func TestJSONBMapScan(t *testing.T) {
	var m JSONBMap
	require.NoError(t, m.Scan([]byte(`{"Ligging": "Aan rustige weg"}`)))
	assert.Equal(t, "Aan rustige weg", m["Ligging"])

	var empty JSONBMap
	require.NoError(t, empty.Scan(nil))
	assert.Empty(t, empty)

	var bad JSONBMap
	require.Error(t, bad.Scan(42))
}
