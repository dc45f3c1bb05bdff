package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string            `json:"name" cbor:"1,keyasint"`
	ID    uint64            `json:"id" cbor:"2,keyasint"`
	Tags  map[string]string `json:"tags,omitempty" cbor:"3,keyasint,omitempty"`
	Score float64           `json:"score" cbor:"4,keyasint"`
}

func TestCodecs_RoundTrip(t *testing.T) {
	in := record{Name: "notes.txt", ID: 13, Tags: map[string]string{"b": "2", "a": "1"}, Score: 0.5}

	for _, c := range []Codec{CBOR{}, JSON{}, GoJSON{}} {
		t.Run(c.Name(), func(t *testing.T) {
			b, err := c.Marshal(in)
			require.NoError(t, err)

			var out record
			require.NoError(t, c.Unmarshal(b, &out))
			assert.Equal(t, in, out)
		})
	}
}

func TestCBOR_Deterministic(t *testing.T) {
	a := map[string]int{"z": 1, "a": 2, "m": 3}
	first, err := CBOR{}.Marshal(a)
	require.NoError(t, err)
	for range 20 {
		b, err := CBOR{}.Marshal(map[string]int{"m": 3, "z": 1, "a": 2})
		require.NoError(t, err)
		assert.Equal(t, first, b)
	}
}

func TestByName(t *testing.T) {
	for _, name := range []string{"cbor", "json", "go-json"} {
		c, ok := ByName(name)
		require.True(t, ok)
		assert.Equal(t, name, c.Name())
	}
	_, ok := ByName("gob")
	assert.False(t, ok)

	assert.Equal(t, "cbor", Default.Name())
}

func TestGoJSON_MarshalIndent(t *testing.T) {
	b, err := GoJSON{}.MarshalIndent(map[string]int{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": 1\n}", string(b))
}
