package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(Validation("bad input")))
	assert.Equal(t, KindConflict, KindOf(Conflict("slot taken")))
	assert.Equal(t, KindPermission, KindOf(Permission("nope")))
	assert.Equal(t, KindNotFound, KindOf(NotFound("appointment")))
	assert.Equal(t, KindSessionClosed, KindOf(SessionClosed("ended")))
	assert.Equal(t, KindStorageUnavailable, KindOf(StorageUnavailable(stderrors.New("timeout"))))
	assert.Equal(t, KindInternal, KindOf(stderrors.New("anything else")))
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("booking failed: %w", Conflict("slot taken"))
	assert.Equal(t, KindConflict, KindOf(err))
	assert.True(t, IsKind(err, KindConflict))
	assert.False(t, IsKind(err, KindStorageUnavailable))
}

func TestStorageNeverConflatedWithConflict(t *testing.T) {
	storage := StorageUnavailable(stderrors.New("connection refused"))
	conflict := Conflict("overlap")
	assert.False(t, stderrors.Is(storage, conflict))
	assert.False(t, IsKind(storage, KindConflict))
	assert.False(t, IsKind(conflict, KindStorageUnavailable))
}

func TestNotFoundMessage(t *testing.T) {
	assert.Equal(t, "doctor not found", NotFound("doctor").Error())
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("underlying")
	err := StorageUnavailable(cause)
	assert.True(t, stderrors.Is(err, cause))
}
