package feed

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateVectorDecoding(t *testing.T) {
	var vec StateVector
	require.NoError(t, json.Unmarshal([]byte(`["abc", "IGO1 ", null, 12.5, true, {"x":1}, [1,2]]`), &vec))
	require.Len(t, vec, 7)

	s, ok := vec.Field(0).String()
	assert.True(t, ok)
	assert.Equal(t, "abc", s)

	f, ok := vec.Field(3).Float64()
	assert.True(t, ok)
	assert.Equal(t, 12.5, f)

	for _, i := range []int{2, 4, 5, 6, 42, -1} {
		_, isNum := vec.Field(i).Float64()
		_, isStr := vec.Field(i).String()
		assert.False(t, isNum || isStr, "field %d should be absent", i)
	}
}

func TestStateFieldIsStrictAboutKinds(t *testing.T) {
	var vec StateVector
	require.NoError(t, json.Unmarshal([]byte(`["77.5", 1]`), &vec))

	_, ok := vec.Field(0).Float64()
	assert.False(t, ok, "numeric strings are not numbers")

	_, ok = vec.Field(1).String()
	assert.False(t, ok)
}
