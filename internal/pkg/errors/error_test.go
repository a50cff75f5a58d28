package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCarriesCodeAndMessage(t *testing.T) {
	err := New(ErrConversationBusy)

	assert.Equal(t, ErrConversationBusy, err.Code)
	assert.Equal(t, GetMessage(ErrConversationBusy), err.Message)
	assert.Equal(t, http.StatusConflict, GetHTTPStatus(err.Code))
}

func TestWrapPreservesExistingCode(t *testing.T) {
	inner := New(ErrInvalidBranchPoint, "sequence 99 beyond history")
	wrapped := Wrap(fmt.Errorf("branch: %w", inner), ErrInternalServer)

	assert.Equal(t, ErrInvalidBranchPoint, ExtractCode(wrapped))
	assert.Equal(t, "sequence 99 beyond history", GetDetails(wrapped))
}

func TestWrapCodesPlainError(t *testing.T) {
	cause := errors.New("connection refused")
	wrapped := Wrap(cause, ErrPersistenceFailed)

	require.NotNil(t, wrapped)
	assert.Equal(t, ErrPersistenceFailed, wrapped.Code)
	assert.True(t, errors.Is(wrapped, cause))
	assert.Equal(t, "connection refused", GetDetails(wrapped))
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrInternalServer))
}

func TestExtractCodeDefaultsToInternal(t *testing.T) {
	assert.Equal(t, ErrInternalServer, ExtractCode(errors.New("untyped")))
}
