package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCarriesTaxonomy(t *testing.T) {
	err := New(NotFound, "task gr-a1b2 not found")
	assert.Equal(t, NotFound, err.Code)
	assert.Equal(t, 1002, err.ErrorCode())
	assert.Equal(t, 404, err.HTTPStatus())
	assert.Equal(t, "task gr-a1b2 not found", err.Error())
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(cause, Internal, "write task")
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, Internal, "unreachable"))
}

func TestCodeOfDefaultsToInternalForUntypedErrors(t *testing.T) {
	assert.Equal(t, Internal, CodeOf(stderrors.New("boom")))
	assert.Equal(t, Code(""), CodeOf(nil))
	assert.Equal(t, Conflict, CodeOf(ConflictErr("duplicate id")))
}

func TestAsUnwrapsThroughPlainWrapping(t *testing.T) {
	inner := Invalid("bad title")
	wrapped := fmt.Errorf("decode request: %w", inner)

	found, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, InvalidArgument, found.Code)
}

func TestIsMatchesOnCodeNotMessage(t *testing.T) {
	a := NotFoundErr("task gr-aaaa not found")
	b := NotFoundErr("git-ref gf-bbbb not found")
	assert.True(t, a.Is(b), "two not_found errors with different messages are still the same taxonomy bucket")

	c := ConflictErr("duplicate id")
	assert.False(t, a.Is(c))
}

func TestConstructorHelpersMapToExpectedCodes(t *testing.T) {
	cases := []struct {
		err  *Error
		code Code
	}{
		{Invalid("x"), InvalidArgument},
		{Invalidf("x %d", 1), InvalidArgument},
		{NotFoundErr("x"), NotFound},
		{NotFoundf("x %d", 1), NotFound},
		{ConflictErr("x"), Conflict},
		{Conflictf("x %d", 1), Conflict},
		{InternalErr(stderrors.New("cause"), "x"), Internal},
		{InternalErrf(stderrors.New("cause"), "x %d", 1), Internal},
	}
	for _, c := range cases {
		assert.Equal(t, c.code, c.err.Code)
	}
}
