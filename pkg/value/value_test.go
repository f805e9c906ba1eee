package value_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/curator/pkg/errors"
	"github.com/agentstation/curator/pkg/value"
)

type band struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
	Founded int      `json:"founded,omitempty"`
}

func TestOf(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want value.Value
	}{
		{"nil", nil, value.Null{}},
		{"bool", true, value.Bool(true)},
		{"int", 42, value.Number(42)},
		{"string", "x", value.String("x")},
		{"map", map[string]any{"a": 1, "b": []any{"x", nil}}, value.Object{
			"a": value.Number(1),
			"b": value.Array{value.String("x"), value.Null{}},
		}},
		{"struct", band{Name: "Low", Members: []string{"Mimi"}}, value.Object{
			"name":    value.String("Low"),
			"members": value.Array{value.String("Mimi")},
		}},
		{"value passthrough", value.String("v"), value.String("v")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := value.Of(tc.in)
			require.NoError(t, err)
			assert.True(t, value.Equal(tc.want, got), "got %s", value.Format(got))
		})
	}
}

func TestOfRejectsUnserializable(t *testing.T) {
	_, err := value.Of(math.NaN())
	assert.True(t, errors.IsSerialization(err))

	_, err = value.Of(map[string]any{"f": func() {}})
	assert.True(t, errors.IsSerialization(err))

	cyclic := map[string]any{}
	cyclic["self"] = cyclic
	_, err = value.Of(cyclic)
	assert.True(t, errors.IsSerialization(err))
}

func TestAs(t *testing.T) {
	v := value.MustOf(map[string]any{"name": "Low", "members": []any{"Alan", "Mimi"}})

	b, err := value.As[band](v)
	require.NoError(t, err)
	assert.Equal(t, band{Name: "Low", Members: []string{"Alan", "Mimi"}}, b)

	same, err := value.As[value.Value](v)
	require.NoError(t, err)
	assert.True(t, value.Equal(v, same))
}

func TestEncodeIsCanonical(t *testing.T) {
	a := value.Object{"b": value.Number(2), "a": value.Array{value.Bool(true)}}
	b := value.Object{"a": value.Array{value.Bool(true)}, "b": value.Number(2)}

	ea, err := value.Encode(a)
	require.NoError(t, err)
	eb, err := value.Encode(b)
	require.NoError(t, err)

	assert.Equal(t, `{"a":[true],"b":2}`, string(ea))
	assert.Equal(t, ea, eb)
}

func TestChecksum(t *testing.T) {
	sumA, sizeA, err := value.Checksum(value.MustOf(map[string]any{"name": "A"}))
	require.NoError(t, err)
	sumB, _, err := value.Checksum(value.MustOf(map[string]any{"name": "A"}))
	require.NoError(t, err)
	sumC, _, err := value.Checksum(value.MustOf(map[string]any{"name": "B"}))
	require.NoError(t, err)

	assert.Equal(t, sumA, sumB)
	assert.NotEqual(t, sumA, sumC)
	assert.Len(t, sumA, 16)
	assert.Equal(t, len(`{"name":"A"}`), sizeA)

	_, _, err = value.Checksum(value.Object{"x": value.Number(math.Inf(1))})
	assert.True(t, errors.IsSerialization(err))
}

func TestParse(t *testing.T) {
	v, err := value.Parse([]byte(`{"title":"Fest","year":2024,"tags":[],"venue":null}`))
	require.NoError(t, err)

	want := value.Object{
		"title": value.String("Fest"),
		"year":  value.Number(2024),
		"tags":  value.Array{},
		"venue": value.Null{},
	}
	assert.True(t, value.Equal(want, v))

	_, err = value.Parse([]byte(`{"a":1} {"b":2}`))
	assert.True(t, errors.IsSerialization(err))
	_, err = value.Parse([]byte(`{`))
	assert.True(t, errors.IsSerialization(err))
}

func TestEqual(t *testing.T) {
	assert.True(t, value.Equal(nil, value.Null{}))
	assert.False(t, value.Equal(value.Number(1), value.String("1")))
	assert.False(t, value.Equal(value.Array{value.Number(1)}, value.Array{}))
	assert.False(t, value.Equal(value.Object{"a": value.Null{}}, value.Object{"b": value.Null{}}))
	assert.True(t, value.Equal(
		value.MustOf(map[string]any{"a": []any{1, map[string]any{"b": "c"}}}),
		value.MustOf(map[string]any{"a": []any{1, map[string]any{"b": "c"}}}),
	))
}

func TestCloneIsDeep(t *testing.T) {
	orig := value.Object{"inner": value.Object{"n": value.Number(1)}}
	cp := value.Clone(orig).(value.Object)
	cp["inner"].(value.Object)["n"] = value.Number(2)

	assert.Equal(t, value.Number(1), orig["inner"].(value.Object)["n"])
}

func TestDeepMerge(t *testing.T) {
	base := value.MustOf(map[string]any{
		"title": "Fest",
		"venue": map[string]any{"city": "Oslo", "capacity": 500},
		"tags":  []any{"a", "b"},
	})
	override := value.MustOf(map[string]any{
		"venue": map[string]any{"capacity": 800},
		"tags":  []any{"c"},
	})

	got := value.DeepMerge(base, override)
	want := value.MustOf(map[string]any{
		"title": "Fest",
		"venue": map[string]any{"city": "Oslo", "capacity": 800},
		"tags":  []any{"c"},
	})
	assert.True(t, value.Equal(want, got), value.Format(got))
	assert.True(t, value.Equal(base, value.DeepMerge(base, nil)))
}
