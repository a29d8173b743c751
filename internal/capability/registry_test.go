package capability

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echo(name string) Descriptor {
	return Descriptor{
		Name: name,
		Handler: HandlerFunc(func(ctx context.Context, args map[string]any) (any, error) {
			return args, nil
		}),
	}
}

func TestRegistry_RegisterAndResolve(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(echo("a")))
	require.NoError(t, reg.Register(echo("b")))

	err := reg.Register(echo("a"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicate))

	d, err := reg.Resolve("b")
	require.NoError(t, err)
	assert.Equal(t, "b", d.Name)
	assert.Equal(t, "object", d.Parameters["type"])

	_, err = reg.Resolve("missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	assert.Equal(t, []string{"a", "b"}, reg.Names())
	assert.Equal(t, 2, reg.Len())
}

func TestRegistry_Sealed(t *testing.T) {
	reg := NewRegistry()
	reg.Seal()
	err := reg.Register(echo("late"))
	assert.True(t, errors.Is(err, ErrSealed))
}

func TestRegistry_RejectsIncompleteDescriptor(t *testing.T) {
	reg := NewRegistry()
	assert.Error(t, reg.Register(Descriptor{Name: "x"}))
	assert.Error(t, reg.Register(Descriptor{Handler: echo("y").Handler}))
}

func TestDecode(t *testing.T) {
	type sample struct {
		Title string `json:"title"`
	}
	testCases := []struct {
		description string
		raw         any
		expect      map[string]any
	}{
		{description: "map", raw: map[string]any{"a": 1}, expect: map[string]any{"a": 1}},
		{description: "json string", raw: `{"a":"b"}`, expect: map[string]any{"a": "b"}},
		{description: "json bytes", raw: json.RawMessage(`{"n":2}`), expect: map[string]any{"n": float64(2)}},
		{description: "struct", raw: sample{Title: "t"}, expect: map[string]any{"title": "t"}},
		{description: "plain text", raw: "hello", expect: map[string]any{"result": "hello"}},
		{description: "json array", raw: `[1,2]`, expect: map[string]any{"result": []any{float64(1), float64(2)}}},
		{description: "nil", raw: nil, expect: map[string]any{}},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			got, err := Decode(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.expect, got)
		})
	}
}

func TestCall_FailureBecomesErrorResult(t *testing.T) {
	failing := &Descriptor{Name: "boom", Handler: HandlerFunc(func(ctx context.Context, args map[string]any) (any, error) {
		return nil, errors.New("下游超时")
	})}
	result, err := Call(context.Background(), failing, nil)
	require.Error(t, err)
	assert.Equal(t, map[string]any{"error": "下游超时"}, result)
	assert.True(t, IsError(result))

	panicking := &Descriptor{Name: "panic", Handler: HandlerFunc(func(ctx context.Context, args map[string]any) (any, error) {
		panic("bad index")
	})}
	result, err = Call(context.Background(), panicking, nil)
	require.Error(t, err)
	assert.True(t, IsError(result))
}

func TestArgs(t *testing.T) {
	args := map[string]any{"s": "x", "f": float64(3), "n": json.Number("7"), "b": "true", "empty": ""}
	assert.Equal(t, "x", String(args, "s", "d"))
	assert.Equal(t, "d", String(args, "empty", "d"))
	assert.Equal(t, 3, Int(args, "f", 0))
	assert.Equal(t, 7.0, Float(args, "n", 0))
	assert.True(t, Bool(args, "b", false))
	assert.Equal(t, 5, Int(args, "missing", 5))

	_, err := RequireString(args, "empty")
	var missing *MissingArgError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "empty", missing.Name)
}

func TestObjectSchema(t *testing.T) {
	schema := ObjectSchema([]NamedProperty{
		Param("topic", "string", "话题", Required()),
		Param("limit", "integer", "数量", Default(5)),
	})
	assert.Equal(t, []string{"topic"}, schema["required"])
	props := schema["properties"].(map[string]any)
	assert.Equal(t, 5, props["limit"].(map[string]any)["default"])
}
