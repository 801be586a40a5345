package tkterr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	err := New(CodeValidation, "bad value %q", "x")
	assert.Contains(t, err.Error(), `bad value "x"`)

	withID := NewID(CodeNotFound, "tk-1", "ticket not found")
	assert.Contains(t, withID.Error(), "tk-1")
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(CodeStorage, cause, "append to log")

	assert.True(t, Is(err, CodeStorage))
	assert.ErrorIs(t, err, cause)
}

func TestCodeOfThroughWrapping(t *testing.T) {
	inner := New(CodeOverflow, "too many results")
	outer := fmt.Errorf("running query: %w", inner)

	code, ok := CodeOf(outer)
	require.True(t, ok)
	assert.Equal(t, CodeOverflow, code)
	assert.True(t, Is(outer, CodeOverflow))
	assert.False(t, Is(outer, CodeStorage))

	_, ok = CodeOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestExitCodes(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitSuccess},
		{errors.New("plain"), ExitFailure},
		{New(CodeInvalidArg, "x"), 3},
		{New(CodeNotFound, "x"), 4},
		{New(CodeValidation, "x"), 5},
		{New(CodeState, "x"), 6},
		{New(CodeDependency, "x"), 7},
		{New(CodeDuplicate, "x"), 8},
		{New(CodeOverflow, "x"), 9},
		{New(CodeStorage, "x"), 10},
		{fmt.Errorf("wrapped: %w", New(CodeState, "x")), 6},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExitCode(tt.err), "ExitCode(%v)", tt.err)
	}
}
