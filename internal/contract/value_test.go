package contract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSON_NumberKinds(t *testing.T) {
	v, err := DecodeJSON([]byte(`{"i":42,"f":1.5,"e":1e3,"big":-9007199254740993}`))
	require.NoError(t, err)

	obj := v.(Object)
	assert.Equal(t, Int(42), obj["i"])
	assert.Equal(t, Float(1.5), obj["f"])
	assert.Equal(t, Float(1000), obj["e"])
	assert.Equal(t, Int(-9007199254740993), obj["big"])
}

func TestDecodeJSON_RejectsTrailingData(t *testing.T) {
	_, err := DecodeJSON([]byte(`{} {}`))
	assert.Error(t, err)
}

func TestObject_MarshalJSONSortsKeys(t *testing.T) {
	obj := NewObject(O("b", Int(1)), O("a", List{String("x"), Null{}}), O("c", Bool(true)))
	data, err := MarshalValue(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":["x",null],"b":1,"c":true}`, string(data))
}

func TestSortedKeys_UTF16Order(t *testing.T) {
	// U+1F600 encodes as surrogates 0xD83D..., which sort before U+FB01 in
	// UTF-16 but after it in UTF-8.
	obj := Object{"\U0001F600": Int(1), "\uFB01": Int(2)}
	assert.Equal(t, []string{"\U0001F600", "\uFB01"}, obj.SortedKeys())
}

func TestFromGo(t *testing.T) {
	v, err := FromGo(map[string]any{
		"name":  "acme",
		"count": 3,
		"tags":  []string{"a"},
		"meta":  nil,
	})
	require.NoError(t, err)
	assert.Equal(t, Object{
		"name":  String("acme"),
		"count": Int(3),
		"tags":  List{String("a")},
		"meta":  Null{},
	}, v)

	_, err = FromGo(struct{}{})
	assert.Error(t, err)
}

func TestObjectAccessors(t *testing.T) {
	obj := Object{"s": String("x"), "n": Int(7), "z": Null{}}
	assert.Equal(t, "x", obj.Str("s"))
	assert.Equal(t, "", obj.Str("n"))
	assert.Equal(t, int64(7), obj.Int64("n"))
	assert.True(t, obj.Has("s"))
	assert.False(t, obj.Has("z"))
	assert.False(t, obj.Has("missing"))
}

func TestMarshalCanonical(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		want string
	}{
		{"sorted keys", Object{"b": Int(1), "a": Int(2)}, `{"a":2,"b":1}`},
		{"no html escaping", String("<a&b>"), `"<a&b>"`},
		{"line separator literal", String("x\u2028y"), "\"x\u2028y\""},
		{"escaped backslash kept", String(`\u2028`), `"\\u2028"`},
		{"nfc normalised", String("e\u0301"), "\"\u00e9\""},
		{"integral float", Float(2), `2`},
		{"fractional float", Float(0.25), `0.25`},
		{"nested", Object{"l": List{Bool(false), Null{}}}, `{"l":[false,null]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestDigest_StableAndDomainSeparated(t *testing.T) {
	v := Object{"a": Int(1)}
	d1, err := Digest("tenantrpc/test/v1", v)
	require.NoError(t, err)
	d2, err := Digest("tenantrpc/test/v1", Object{"a": Int(1)})
	require.NoError(t, err)
	d3, err := Digest("tenantrpc/other/v1", v)
	require.NoError(t, err)

	assert.Equal(t, d1, d2)
	assert.NotEqual(t, d1, d3)
	assert.Len(t, d1, 64)
}
