package operations

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationError_Error(t *testing.T) {
	cause := errors.New("disk gone")
	tests := []struct {
		name string
		err  *OperationError
		want string
	}{
		{
			name: "validation",
			err:  NewValidationError(StageSelect, "missing column"),
			want: "[validation] select: missing column",
		},
		{
			name: "execution with cause",
			err:  NewExecutionError(StageAssemble, cause),
			want: "[execution] assemble: stage execution failed: disk gone",
		},
		{
			name: "fatal on shard",
			err:  NewFatalError(StageRead, "failed to read shard", cause).WithShard(3),
			want: "[fatal] read: failed to read shard (shard 3): disk gone",
		},
		{
			name: "no stage",
			err:  &OperationError{Type: ErrorTypeExecution, Message: "boom"},
			want: "[execution] boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestErrorClassification(t *testing.T) {
	cause := errors.New("root cause")
	fatal := NewFatalError(StageValidate, "check non_empty failed", cause)
	wrapped := fmt.Errorf("run: %w", fatal)

	assert.True(t, IsFatal(fatal))
	assert.True(t, IsFatal(wrapped))
	assert.True(t, errors.Is(wrapped, cause))
	assert.False(t, IsFatal(NewExecutionError(StageAssemble, cause)))
	assert.False(t, IsFatal(nil))

	assert.Equal(t, ErrorType(""), GetErrorType(nil))
	assert.Equal(t, ErrorTypeExecution, GetErrorType(cause))
	assert.Equal(t, ErrorTypeNotFound, GetErrorType(NewNotFoundError("x")))
}

func TestWrapError(t *testing.T) {
	assert.Nil(t, WrapError(nil, StageRead, "ignored"))

	plain := WrapError(errors.New("bad metric"), StageAssemble, "enable foo")
	assert.Equal(t, ErrorTypeExecution, plain.Type)
	assert.Equal(t, StageAssemble, plain.Stage)
	assert.Equal(t, "[execution] assemble: enable foo: bad metric", plain.Error())

	inner := NewNotFoundError("publish")
	wrapped := WrapError(inner, "", "disable publish")
	assert.Same(t, inner, wrapped)
	assert.Equal(t, "publish", wrapped.Stage)
	assert.Equal(t, "disable publish: stage not found", wrapped.Message)
}

func TestErrorList(t *testing.T) {
	var list ErrorList
	assert.False(t, list.HasErrors())
	assert.Equal(t, "no errors", list.Error())

	list.Add(nil)
	list.Add(NewValidationError(StageSelect, "a"))
	assert.Equal(t, "[validation] select: a", list.Error())

	list.Add(NewValidationError(StageValidate, "b"))
	list.Add(NewValidationError(StageSelect, "c"))
	require.True(t, list.HasErrors())
	assert.Equal(t, "multiple errors: 3 errors occurred", list.Error())
	assert.Len(t, list.GetByStage(StageSelect), 2)
}
