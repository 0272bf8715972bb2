package signature

import (
	"reflect"
	"testing"

	"github.com/hupe1980/qibridge/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrimitives(t *testing.T) {
	for code := range primitives {
		shape, err := Parse(string([]byte{byte(code)}))
		require.NoError(t, err, "code %q", byte(code))
		assert.Equal(t, code, shape.Kind)
		assert.Equal(t, Signature([]byte{byte(code)}), shape.Signature())
		assert.True(t, code.IsPrimitive())
	}
}

func TestParseContainers(t *testing.T) {
	tests := []struct {
		in        string
		canonical Signature
		kind      Kind
	}{
		{"[i]", "[i]", List},
		{"[[f]]", "[[f]]", List},
		{"{sm}", "{sm}", Map},
		{"()", "()", Struct},
		{"(is[d])", "(is[d])", Struct},
		{"(ff)<Point,x,y>", "(ff)", Struct},
		{"[(ff)<Point,x,y>]", "[(ff)]", List},
		{"{s(ib)<Flag>}", "{s(ib)}", Map},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			shape, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, shape.Kind)
			assert.Equal(t, tt.canonical, shape.Signature())
			assert.Equal(t, tt.in, shape.String())
		})
	}
}

func TestParseStructAnnotation(t *testing.T) {
	shape, err := Parse("(ff)<Point,x,y>")
	require.NoError(t, err)
	assert.Equal(t, "Point", shape.Name)
	assert.Equal(t, []string{"x", "y"}, shape.FieldNames)
	require.Len(t, shape.Fields, 2)
	assert.Equal(t, Float32, shape.Fields[0].Kind)
}

func TestParseMalformed(t *testing.T) {
	for _, in := range []string{
		"", "[", "[i", "[]", "{i}", "{iii}", "(i", "i]", "ii", "q", "(i)<P", "(ii)<P,x>", "{s", ")",
	} {
		t.Run(in, func(t *testing.T) {
			_, err := Parse(in)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrMalformedSignature)
			var sigErr *core.SignatureError
			require.ErrorAs(t, err, &sigErr)
			assert.Equal(t, in, sigErr.Signature)
		})
	}
}

func TestParseUnsupported(t *testing.T) {
	for _, in := range []string{"X", "[*]", "(i#)", "~", "+i", "_"} {
		t.Run(in, func(t *testing.T) {
			_, err := Parse(in)
			assert.ErrorIs(t, err, core.ErrUnsupportedSignature)
			assert.NotErrorIs(t, err, core.ErrMalformedSignature)
		})
	}
}

func TestParseDepthLimit(t *testing.T) {
	deep := ""
	for i := 0; i < maxDepth+2; i++ {
		deep += "["
	}
	deep += "i"
	for i := 0; i < maxDepth+2; i++ {
		deep += "]"
	}
	_, err := Parse(deep)
	assert.ErrorIs(t, err, core.ErrMalformedSignature)
}

func TestEqualIgnoresAnnotations(t *testing.T) {
	assert.True(t, Equal("(ff)<Point,x,y>", "(ff)<Vec,a,b>"))
	assert.True(t, Equal("(ff)", "(ff)<Point,x,y>"))
	assert.False(t, Equal("(ff)", "(dd)"))
	assert.False(t, Equal("[", "(ff)"))
	assert.True(t, Equal("[", "["))
}

func TestConstructors(t *testing.T) {
	assert.Equal(t, Signature("[i]"), ListOf("i"))
	assert.Equal(t, Signature("{sm}"), MapOf("s", "m"))
	assert.Equal(t, Signature("(is)"), StructOf("i", "s"))
	assert.Equal(t, Signature("()"), StructOf())

	shape := NewMap(Primitive(String), NewList(Primitive(Int32)))
	assert.Equal(t, Signature("{s[i]}"), shape.Signature())
	assert.True(t, shape.Equal(MustParse("{s[i]}")))
}

func TestKindQueries(t *testing.T) {
	assert.Equal(t, "int32", Int32.String())
	assert.Equal(t, "invalid", Kind('q').String())
	assert.True(t, Int64.IsInteger())
	assert.True(t, Int64.IsSigned())
	assert.False(t, UInt64.IsSigned())
	assert.False(t, Float64.IsInteger())
	assert.False(t, List.IsPrimitive())
}

type point struct {
	X    float32
	Y    float32 `qi:"y"`
	skip int
	Tag  string `qi:"-"`
}

type node struct {
	Value int32
	Next  *node
}

type selfSigned struct{}

func (selfSigned) Signature() Signature { return "i" }

func TestFromType(t *testing.T) {
	tests := []struct {
		in   any
		want Signature
	}{
		{true, "b"},
		{int8(0), "c"},
		{uint8(0), "C"},
		{int16(0), "w"},
		{uint16(0), "W"},
		{int32(0), "i"},
		{uint32(0), "I"},
		{int64(0), "l"},
		{uint64(0), "L"},
		{float32(0), "f"},
		{float64(0), "d"},
		{"", "s"},
		{[]byte{}, "r"},
		{[]float64{}, "[d]"},
		{[2]int32{}, "[i]"},
		{[][]string{}, "[[s]]"},
		{map[string]int32{}, "{si}"},
		{map[string]any{}, "{sm}"},
		{point{}, "(ff)"},
		{&point{}, "(ff)"},
		{core.ObjectRef{}, "o"},
		{selfSigned{}, "m"},
	}
	for _, tt := range tests {
		t.Run(reflect.TypeOf(tt.in).String(), func(t *testing.T) {
			shape, err := FromType(reflect.TypeOf(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, shape.Signature())
		})
	}
}

func TestFromTypeAnnotatesStructs(t *testing.T) {
	shape, err := FromType(reflect.TypeOf(point{}))
	require.NoError(t, err)
	assert.Equal(t, "(ff)<point,X,y>", shape.String())
}

func TestFromTypeRejects(t *testing.T) {
	for _, in := range []any{0, uint(0), uintptr(0), complex64(0), make(chan int), func() {}, node{}} {
		_, err := FromType(reflect.TypeOf(in))
		assert.ErrorIs(t, err, core.ErrUnsupportedSignature, "%T", in)
	}
}

func TestOf(t *testing.T) {
	sig, err := Of(int32(4))
	require.NoError(t, err)
	assert.Equal(t, Signature("i"), sig)

	sig, err = Of(nil)
	require.NoError(t, err)
	assert.Equal(t, Signature("v"), sig)

	sig, err = Of(selfSigned{})
	require.NoError(t, err)
	assert.Equal(t, Signature("i"), sig)
}
