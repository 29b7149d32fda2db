package dbsyncerr

import (
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, Wrap(Read, nil, "reading %s", "x"))
}

func TestKindOfUnwrapsThroughCause(t *testing.T) {
	base := Wrap(Connection, io.EOF, "connecting to %s", "db")
	wrapped := errors.WithMessage(base, "outer context")
	assert.Equal(t, Connection, KindOf(wrapped))
}

func TestKindOfReturnsOtherForPlainError(t *testing.T) {
	assert.Equal(t, Other, KindOf(io.EOF))
}

func TestExitCodeZeroOnSuccess(t *testing.T) {
	assert.Zero(t, ExitCode(nil))
}

func TestExitCodeDistinguishesKinds(t *testing.T) {
	a := ExitCode(New(Config, "bad config"))
	b := ExitCode(New(Write, "write failed"))
	assert.NotEqual(t, a, b, "expected distinct exit codes for distinct kinds")
	assert.NotZero(t, a)
	assert.NotZero(t, b)
}

func TestErrorUnwrapExposesCause(t *testing.T) {
	wrapped := Wrap(Read, io.EOF, "reading batch")
	assert.ErrorIs(t, wrapped, io.EOF, "expected errors.Is to see through to the wrapped cause")
}

func TestErrorMessageIncludesKindAndContext(t *testing.T) {
	err := New(Type, "unknown type %q", "geometry")
	assert.Equal(t, `type: unknown type "geometry"`, err.Error())
	assert.Equal(t, Type, KindOf(err))
}
