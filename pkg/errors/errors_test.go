package errors_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/agentstation/curator/pkg/errors"
)

func TestNew(t *testing.T) {
	err := pkgerrors.New("test error")
	assert.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestNotFoundError(t *testing.T) {
	t.Run("basic error", func(t *testing.T) {
		err := &pkgerrors.NotFoundError{
			Resource: "version",
			ID:       "e1_123_abcd",
		}
		assert.Equal(t, "version with ID e1_123_abcd not found", err.Error())
		assert.True(t, errors.Is(err, pkgerrors.ErrNotFound))
	})

	t.Run("constructor", func(t *testing.T) {
		err := pkgerrors.NewNotFoundError("branch", "e1_branch_draft")
		assert.Equal(t, "branch with ID e1_branch_draft not found", err.Error())
		assert.True(t, pkgerrors.IsNotFound(err))
	})

	t.Run("wrapped error", func(t *testing.T) {
		base := pkgerrors.NewNotFoundError("entity", "test")
		wrapped := errors.Join(errors.New("failed"), base)
		assert.True(t, pkgerrors.IsNotFound(wrapped))
	})
}

func TestSerializationError(t *testing.T) {
	cause := errors.New("json: unsupported value: NaN")

	err := pkgerrors.NewSerializationError("band-1", cause)
	assert.Equal(t, "cannot serialize entity band-1: json: unsupported value: NaN", err.Error())
	assert.True(t, pkgerrors.IsSerialization(err))
	assert.ErrorIs(t, err, cause)

	anonymous := pkgerrors.NewSerializationError("", cause)
	assert.Equal(t, "cannot serialize value: json: unsupported value: NaN", anonymous.Error())

	assert.Nil(t, pkgerrors.WrapSerialization("x", nil))
	assert.True(t, pkgerrors.IsSerialization(pkgerrors.WrapSerialization("x", cause)))
}

func TestValidationError(t *testing.T) {
	t.Run("with field", func(t *testing.T) {
		err := &pkgerrors.ValidationError{
			Field:   "selectedFields",
			Message: "cannot be empty",
		}
		assert.Equal(t, "validation failed for field selectedFields: cannot be empty", err.Error())
		assert.True(t, errors.Is(err, pkgerrors.ErrInvalidInput))
	})

	t.Run("without field", func(t *testing.T) {
		err := &pkgerrors.ValidationError{Message: "invalid configuration"}
		assert.Equal(t, "validation failed: invalid configuration", err.Error())
		assert.True(t, pkgerrors.IsValidationError(err))
	})
}

func TestMergeConflictError(t *testing.T) {
	err := pkgerrors.NewMergeConflictError("e1", "e1_branch_x", []string{"title", "year"})
	assert.Equal(t, "merge conflict between e1_branch_x and e1 on: title, year", err.Error())
	assert.True(t, pkgerrors.IsMergeConflict(err))
	assert.False(t, pkgerrors.IsNotFound(err))
}

func TestConflictsUnresolvedError(t *testing.T) {
	err := &pkgerrors.ConflictsUnresolvedError{EntityID: "venue-9", Properties: []string{"name"}}
	assert.Equal(t, "entity venue-9 has 1 unresolved conflicts: name", err.Error())
	assert.ErrorIs(t, err, pkgerrors.ErrConflictsUnresolved)
}

func TestStaleError(t *testing.T) {
	err := &pkgerrors.StaleError{EntityID: "e1", Expected: "a", Actual: "b"}
	assert.True(t, pkgerrors.IsStale(err))
	assert.Contains(t, err.Error(), `expected latest "a"`)
}

func TestWrappers(t *testing.T) {
	cause := errors.New("disk full")

	ioErr := pkgerrors.WrapIO("put", "entities/e1.yaml", cause)
	require.Error(t, ioErr)
	assert.Equal(t, "IO error during put of entities/e1.yaml: disk full", ioErr.Error())
	assert.ErrorIs(t, ioErr, cause)

	resErr := pkgerrors.WrapResource("restore", "version", "v1", cause)
	assert.Equal(t, "failed to restore version v1: disk full", resErr.Error())

	var target *pkgerrors.ResourceError
	require.True(t, errors.As(resErr, &target))
	assert.Equal(t, "restore", target.Operation)

	assert.Nil(t, pkgerrors.WrapIO("get", "", nil))
	assert.Nil(t, pkgerrors.WrapResource("get", "x", "", nil))
	assert.Nil(t, pkgerrors.WrapValidation("f", nil))

	cfgErr := pkgerrors.NewConfigError("store", "unknown backend", nil)
	assert.Equal(t, "configuration error in store: unknown backend", cfgErr.Error())
}
