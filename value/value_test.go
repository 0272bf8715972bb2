package value

import (
	"testing"

	"github.com/hupe1980/qibridge/core"
	"github.com/hupe1980/qibridge/signature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArenaCreate(t *testing.T) {
	a := NewArena()
	defer a.Release()

	tests := []struct {
		sig  signature.Signature
		kind signature.Kind
	}{
		{"i", signature.Int32},
		{"[s]", signature.List},
		{"{sm}", signature.Map},
		{"(is)", signature.Struct},
		{"m", signature.Dynamic},
	}
	for _, tt := range tests {
		t.Run(string(tt.sig), func(t *testing.T) {
			v, err := a.Create(tt.sig)
			require.NoError(t, err)
			assert.Equal(t, tt.sig, v.Signature())
			assert.Equal(t, tt.kind, v.Kind())
		})
	}

	_, err := a.Create("[i")
	assert.ErrorIs(t, err, core.ErrMalformedSignature)
	_, err = a.Create("*i")
	assert.ErrorIs(t, err, core.ErrUnsupportedSignature)
	assert.Equal(t, len(tests), a.Live())
}

func TestArenaRelease(t *testing.T) {
	a := NewArena()
	v := a.Int32(1)
	a.String("x")
	a.Bool(true)
	assert.Equal(t, 3, a.Live())

	require.NoError(t, v.Release())
	assert.True(t, v.Released())
	assert.ErrorIs(t, v.Release(), core.ErrReleased)

	assert.Equal(t, 2, a.Release())
	assert.Equal(t, 0, a.Live())

	// The arena stays usable.
	w := a.Int64(2)
	assert.Equal(t, 1, a.Live())
	assert.False(t, w.Released())
}

func TestReleasedValueFails(t *testing.T) {
	a := NewArena()
	v, err := a.Create("[i]")
	require.NoError(t, err)
	require.NoError(t, v.Release())

	_, err = v.Len()
	assert.ErrorIs(t, err, core.ErrReleased)
	_, err = v.Index(0)
	assert.ErrorIs(t, err, core.ErrReleased)
	assert.ErrorIs(t, v.AddElement(a.Int32(1)), core.ErrReleased)
	_, err = Get[[]int32](v)
	assert.ErrorIs(t, err, core.ErrReleased)
	assert.False(t, v.Equal(v))
	assert.Equal(t, signature.Signature("[i]"), v.Signature())
	assert.Contains(t, v.String(), "released")
}

func TestListElements(t *testing.T) {
	a := NewArena()
	defer a.Release()

	l, err := a.Create("[i]")
	require.NoError(t, err)
	require.NoError(t, l.AddElement(a.Int32(1)))
	require.NoError(t, l.AddElement(a.Int32(2)))
	assert.ErrorIs(t, l.AddElement(a.String("x")), core.ErrShapeMismatch)

	n, err := l.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, l.SetIndex(1, a.Int32(20)))
	assert.ErrorIs(t, l.SetIndex(2, a.Int32(3)), core.ErrIndexOutOfRange)
	assert.ErrorIs(t, l.SetIndex(0, a.Int64(3)), core.ErrShapeMismatch)

	_, err = l.Index(-1)
	var ie *core.IndexError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 2, ie.Len)

	got, err := Get[[]int32](l)
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 20}, got)
	assert.Equal(t, "[1, 20]", l.String())
}

func TestElementReadsAreCopies(t *testing.T) {
	a := NewArena()
	defer a.Release()

	l, err := a.Create("[[i]]")
	require.NoError(t, err)
	inner, err := a.Create("[i]")
	require.NoError(t, err)
	require.NoError(t, l.AddElement(inner))

	// Mutating the argument after the write does not reach the container.
	require.NoError(t, inner.AddElement(a.Int32(9)))
	first, err := l.Index(0)
	require.NoError(t, err)
	n, err := first.Len()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// Mutating a read copy does not reach the container either.
	require.NoError(t, first.AddElement(a.Int32(1)))
	again, err := l.Index(0)
	require.NoError(t, err)
	n, err = again.Len()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// Releasing a read copy leaves the container intact.
	require.NoError(t, first.Release())
	_, err = l.Index(0)
	assert.NoError(t, err)
}

func TestDynamicSlotWrapsAnything(t *testing.T) {
	a := NewArena()
	defer a.Release()

	l, err := a.Create("[m]")
	require.NoError(t, err)
	require.NoError(t, l.AddElement(a.Int32(1)))
	require.NoError(t, l.AddElement(a.String("x")))

	e, err := l.Index(1)
	require.NoError(t, err)
	assert.Equal(t, signature.Signature("m"), e.Signature())

	content, err := e.Unwrap()
	require.NoError(t, err)
	assert.Equal(t, signature.Signature("s"), content.Signature())

	s, err := Get[string](e)
	require.NoError(t, err)
	assert.Equal(t, "x", s)
	assert.Equal(t, `[m(1), m("x")]`, l.String())
}

func TestDynamic(t *testing.T) {
	a := NewArena()
	defer a.Release()

	d, err := a.Dynamic(a.Int32(5))
	require.NoError(t, err)
	got, err := d.ToInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(5), got)

	empty, err := a.Dynamic(nil)
	require.NoError(t, err)
	voidContent, err := a.Dynamic(a.Void())
	require.NoError(t, err)
	assert.True(t, empty.Equal(voidContent))

	u, err := empty.Unwrap()
	require.NoError(t, err)
	assert.Equal(t, signature.Void, u.Kind())
	_, err = Get[int32](empty)
	assert.ErrorIs(t, err, core.ErrConversion)

	require.NoError(t, empty.SetContent(a.String("now")))
	s, err := empty.ToString()
	require.NoError(t, err)
	assert.Equal(t, "now", s)

	_, err = a.Int32(1).Unwrap()
	assert.ErrorIs(t, err, core.ErrConversion)
}

func TestStructBuilding(t *testing.T) {
	type pair struct {
		A int32
		B string
	}

	a := NewArena()
	defer a.Release()

	s, err := a.Create("(is)")
	require.NoError(t, err)
	assert.False(t, s.Complete())

	_, err = Get[pair](s)
	assert.ErrorIs(t, err, core.ErrConversion)

	assert.ErrorIs(t, s.AddElement(a.String("first")), core.ErrShapeMismatch)
	require.NoError(t, s.AddElement(a.Int32(7)))
	require.NoError(t, s.AddElement(a.String("seven")))
	assert.True(t, s.Complete())
	assert.ErrorIs(t, s.AddElement(a.Int32(8)), core.ErrShapeMismatch)

	got, err := Get[pair](s)
	require.NoError(t, err)
	assert.Equal(t, pair{A: 7, B: "seven"}, got)

	require.NoError(t, s.SetIndex(0, a.Int32(70)))
	f, err := s.Index(0)
	require.NoError(t, err)
	v, err := f.ToInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(70), v)
}

func TestMapOperations(t *testing.T) {
	a := NewArena()
	defer a.Release()

	m, err := a.Create("{si}")
	require.NoError(t, err)
	require.NoError(t, m.Put(a.String("one"), a.Int32(1)))
	require.NoError(t, m.Put(a.String("two"), a.Int32(2)))
	require.NoError(t, m.Put(a.String("one"), a.Int32(11)))
	assert.ErrorIs(t, m.Put(a.Int32(3), a.Int32(3)), core.ErrShapeMismatch)

	n, err := m.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, ok, err := m.Lookup(a.String("one"))
	require.NoError(t, err)
	require.True(t, ok)
	v, err := got.ToInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(11), v)

	_, ok, err = m.Lookup(a.String("missing"))
	require.NoError(t, err)
	assert.False(t, ok)

	keys, err := m.Keys()
	require.NoError(t, err)
	require.Len(t, keys, 2)
	k0, err := keys[0].ToString()
	require.NoError(t, err)
	assert.Equal(t, "one", k0)

	_, err = a.Int32(1).Keys()
	assert.ErrorIs(t, err, core.ErrShapeMismatch)

	decoded, err := Get[map[string]int32](m)
	require.NoError(t, err)
	assert.Equal(t, map[string]int32{"one": 11, "two": 2}, decoded)
}

func TestMapEqualityIgnoresOrder(t *testing.T) {
	a := NewArena()
	defer a.Release()

	m1, err := a.Create("{si}")
	require.NoError(t, err)
	m2, err := a.Create("{si}")
	require.NoError(t, err)
	require.NoError(t, m1.Put(a.String("a"), a.Int32(1)))
	require.NoError(t, m1.Put(a.String("b"), a.Int32(2)))
	require.NoError(t, m2.Put(a.String("b"), a.Int32(2)))
	require.NoError(t, m2.Put(a.String("a"), a.Int32(1)))
	assert.True(t, m1.Equal(m2))

	require.NoError(t, m2.Put(a.String("a"), a.Int32(3)))
	assert.False(t, m1.Equal(m2))
}

func TestCloneAcrossArenas(t *testing.T) {
	a := NewArena()
	b := NewArena()

	l, err := a.From([]string{"x", "y"})
	require.NoError(t, err)
	cp, err := l.Clone(b)
	require.NoError(t, err)
	assert.Same(t, b, cp.Arena())
	assert.True(t, l.Equal(cp))

	a.Release()
	got, err := cp.ToStrings()
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, got)
	assert.Equal(t, 1, b.Release())
}

func TestEqual(t *testing.T) {
	a := NewArena()
	defer a.Release()

	assert.True(t, a.Int32(1).Equal(a.Int32(1)))
	assert.False(t, a.Int32(1).Equal(a.Int64(1)))
	assert.False(t, a.Int32(1).Equal(nil))
	assert.True(t, a.Raw([]byte{1, 2}).Equal(a.Raw([]byte{1, 2})))
	assert.True(t, a.Object(core.ObjectRef{Service: "ALMemory"}).Equal(a.Object(core.ObjectRef{Service: "ALMemory"})))
}
