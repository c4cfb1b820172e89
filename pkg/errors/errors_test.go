package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataFor_KnownCodes(t *testing.T) {
	meta := MetadataFor(CodeInsufficientAvailability)
	assert.Equal(t, http.StatusUnprocessableEntity, meta.HTTPStatus)
	assert.False(t, meta.Retryable)

	meta = MetadataFor(CodeTransientConflict)
	assert.Equal(t, http.StatusConflict, meta.HTTPStatus)
	assert.True(t, meta.Retryable)

	meta = MetadataFor(CodeProviderUnavailable)
	assert.Equal(t, http.StatusServiceUnavailable, meta.HTTPStatus)
	assert.True(t, meta.Retryable)
}

func TestMetadataFor_UnknownCodeFallsBackToInternal(t *testing.T) {
	meta := MetadataFor(Code("NOPE"))
	assert.Equal(t, http.StatusInternalServerError, meta.HTTPStatus)
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := stdErrors.New("boom")
	err := Wrap(CodeDependency, cause, "calling provider")

	require.NotNil(t, err)
	assert.Equal(t, CodeDependency, err.Code())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "DEPENDENCY_ERROR: calling provider", err.Error())
}

func TestAs_FindsTypedErrorThroughWrapping(t *testing.T) {
	base := New(CodeAlreadyFunded, "pool complete")
	wrapped := fmt.Errorf("outer: %w", base)

	typed := As(wrapped)
	require.NotNil(t, typed)
	assert.Equal(t, CodeAlreadyFunded, typed.Code())
}

func TestHasCode(t *testing.T) {
	err := New(CodeReconciliationGap, "item vanished")
	assert.True(t, HasCode(err, CodeReconciliationGap))
	assert.False(t, HasCode(err, CodeNotFound))
	assert.False(t, HasCode(nil, CodeNotFound))
}

func TestDump_CollectsChain(t *testing.T) {
	cause := stdErrors.New("root")
	err := Wrap(CodeInternal, cause, "wrapper")

	dump := Dump(err)
	assert.Equal(t, CodeInternal, dump.Code)
	assert.Len(t, dump.Chain, 2)
}
