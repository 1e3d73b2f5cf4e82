package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/enzbench/pkg/errors"
)

func TestNew_FieldsAreSetCorrectly(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		code    errors.ErrorCode
		message string
	}{
		{"internal error", errors.CodeInternal, "unexpected failure"},
		{"column missing", errors.ErrCodeColumnNotFound, "EC number"},
		{"invalid ec", errors.ErrCodeECInvalid, "1.x.3"},
		{"tool failure", errors.ErrCodeToolExecFailed, "theia-cli exited 1"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ae := errors.New(tc.code, tc.message)

			require.NotNil(t, ae)
			assert.Equal(t, tc.code, ae.Code)
			assert.Equal(t, tc.message, ae.Message)
			assert.Empty(t, ae.Detail)
			assert.Nil(t, ae.Cause)
			assert.NotEmpty(t, ae.Stack)
		})
	}
}

func TestAppError_ErrorFormat(t *testing.T) {
	t.Parallel()

	ae := errors.New(errors.ErrCodeTableRead, "read predictions")
	assert.Equal(t, "[TBL_001] read predictions", ae.Error())

	withDetail := ae.WithDetail("claire.csv")
	assert.Equal(t, "[TBL_001] read predictions: claire.csv", withDetail.Error())

	withCause := withDetail.WithCause(fmt.Errorf("permission denied"))
	assert.Equal(t, "[TBL_001] read predictions: claire.csv: permission denied", withCause.Error())

	// the original is never mutated
	assert.Empty(t, ae.Detail)
}

func TestWrap(t *testing.T) {
	t.Parallel()

	t.Run("nil passes through", func(t *testing.T) {
		assert.Nil(t, errors.Wrap(nil, errors.CodeInternal, "x"))
		assert.Nil(t, errors.Wrapf(nil, errors.CodeInternal, "x %d", 1))
	})

	t.Run("unknown keeps original code", func(t *testing.T) {
		inner := errors.New(errors.ErrCodeInvalidSMILES, "bad ring closure")
		outer := errors.Wrap(inner, errors.CodeUnknown, "canonicalize")
		assert.Equal(t, errors.ErrCodeInvalidSMILES, outer.Code)
		assert.True(t, stderrors.Is(outer, inner))
	})

	t.Run("explicit code overrides", func(t *testing.T) {
		inner := errors.New(errors.ErrCodeInvalidSMILES, "bad ring closure")
		outer := errors.Wrapf(inner, errors.ErrCodeInvalidReaction, "reaction %s", "R1")
		assert.Equal(t, errors.ErrCodeInvalidReaction, outer.Code)
		assert.Equal(t, "reaction R1", outer.Message)
		assert.True(t, errors.IsCode(outer, errors.ErrCodeInvalidSMILES))
	})
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", fmt.Errorf("boom"), false},
		{"not found", errors.NotFound("file"), true},
		{"column", errors.ColumnNotFound("EC number"), true},
		{"wrapped column", fmt.Errorf("ctx: %w", errors.ColumnNotFound("x")), true},
		{"other code", errors.InvalidParam("depth"), false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, errors.IsNotFound(tc.err))
		})
	}
}

func TestGetCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, errors.CodeOK, errors.GetCode(nil))
	assert.Equal(t, errors.CodeUnknown, errors.GetCode(fmt.Errorf("plain")))
	assert.Equal(t, errors.ErrCodeECDepthInvalid,
		errors.GetCode(fmt.Errorf("wrap: %w", errors.New(errors.ErrCodeECDepthInvalid, "depth 5"))))
}

func TestNilReceiverBuilders(t *testing.T) {
	t.Parallel()

	var ae *errors.AppError
	assert.Nil(t, ae.WithDetail("x"))
	assert.Nil(t, ae.WithCause(fmt.Errorf("x")))
}

func TestDefaultMessageAndRetryable(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "column not found", errors.DefaultMessage(errors.ErrCodeColumnNotFound))
	assert.Equal(t, "NOPE_1", errors.DefaultMessage(errors.ErrorCode("NOPE_1")))
	assert.True(t, errors.IsRetryable(errors.ErrCodeToolUnavailable))
	assert.False(t, errors.IsRetryable(errors.ErrCodeECInvalid))
}
