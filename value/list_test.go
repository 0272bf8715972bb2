package value

import (
	"testing"

	"github.com/hupe1980/qibridge/core"
	"github.com/hupe1980/qibridge/signature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewList(t *testing.T) {
	a := NewArena()
	defer a.Release()

	l, err := NewList(a, a.Int32(42), a.Int32(7))
	require.NoError(t, err)

	n, err := l.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, signature.Signature("i"), l.ElemSignature())
	assert.Equal(t, signature.Signature("[i]"), l.Signature())

	first, err := l.Index(0)
	require.NoError(t, err)
	got, err := Get[int32](first)
	require.NoError(t, err)
	assert.Equal(t, int32(42), got)
}

func TestNewListRejectsMixedSignatures(t *testing.T) {
	a := NewArena()
	defer a.Release()

	x, y := a.Int32(42), a.String("x")
	_, err := NewList(a, x, y)
	assert.ErrorIs(t, err, core.ErrInconsistentElementSignature)
	assert.Equal(t, 2, a.Live())
}

func TestNewListRejectsEmptyInput(t *testing.T) {
	a := NewArena()
	_, err := NewList[*Value](a)
	assert.ErrorIs(t, err, core.ErrEmptyInput)
	assert.Equal(t, 0, a.Live())
}

func TestNewListRejectsReleasedElement(t *testing.T) {
	a := NewArena()
	defer a.Release()

	x := a.Int32(1)
	require.NoError(t, x.Release())
	_, err := NewList(a, a.Int32(2), x)
	assert.ErrorIs(t, err, core.ErrReleased)
}

func TestListOwnsCopies(t *testing.T) {
	a := NewArena()
	defer a.Release()

	x := a.String("a")
	l, err := NewList(a, x)
	require.NoError(t, err)
	require.NoError(t, x.Release())

	got, err := Get[[]string](l)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got)
}

func TestListAppendAndSet(t *testing.T) {
	a := NewArena()
	defer a.Release()

	l, err := EmptyList[*Value](a, "s")
	require.NoError(t, err)
	require.NoError(t, l.Append(a.String("a")))
	require.NoError(t, l.Append(a.String("b")))
	assert.ErrorIs(t, l.Append(a.Int32(1)), core.ErrInconsistentElementSignature)

	require.NoError(t, l.SetIndex(0, a.String("z")))
	assert.ErrorIs(t, l.SetIndex(0, a.Bool(true)), core.ErrInconsistentElementSignature)
	assert.ErrorIs(t, l.SetIndex(5, a.String("q")), core.ErrIndexOutOfRange)

	got, err := Get[[]string](l)
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "b"}, got)

	_, err = EmptyList[*Value](a, "[")
	assert.ErrorIs(t, err, core.ErrMalformedSignature)
}

func TestListOfLists(t *testing.T) {
	a := NewArena()
	defer a.Release()

	inner1, err := NewList(a, a.Int32(1))
	require.NoError(t, err)
	inner2, err := NewList(a, a.Int32(2), a.Int32(3))
	require.NoError(t, err)

	outer, err := NewList(a, inner1, inner2)
	require.NoError(t, err)
	assert.Equal(t, signature.Signature("[[i]]"), outer.Signature())

	got, err := Get[[][]int32](outer)
	require.NoError(t, err)
	assert.Equal(t, [][]int32{{1}, {2, 3}}, got)
}
