package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsInnerCode(t *testing.T) {
	inner := InvalidInput("max hits must be at least 1")
	wrapped := Wrap(inner, "blast request rejected")

	assert.Equal(t, CodeInvalidInput, GetCode(wrapped))
	assert.Contains(t, wrapped.Error(), "max hits must be at least 1")
	assert.True(t, IsAppError(wrapped))
}

func TestWrapPlainErrorIsInternal(t *testing.T) {
	wrapped := Wrap(fmt.Errorf("boom"), "doing thing")
	assert.Equal(t, CodeInternalError, GetCode(wrapped))
	assert.Nil(t, Wrap(nil, "nothing"))
}

func TestGetCodeThroughFmtWrap(t *testing.T) {
	err := fmt.Errorf("poll status: %w", Timeout("clustalo job", nil))
	assert.Equal(t, CodeTimeout, GetCode(err))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[error]int{
		InvalidInput("bad"):                 http.StatusBadRequest,
		NotFound("run"):                     http.StatusNotFound,
		ExternalServiceError("ncbi", nil):   http.StatusBadGateway,
		Timeout("poll", nil):                http.StatusGatewayTimeout,
		Busy("too many searches in flight"): http.StatusTooManyRequests,
		fmt.Errorf("plain"):                 http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, HTTPStatus(err), err.Error())
	}
}

func TestWithCode(t *testing.T) {
	err := WithCode(CodeNotFound, fmt.Errorf("missing"))
	assert.Equal(t, CodeNotFound, GetCode(err))
	assert.Nil(t, WithCode(CodeNotFound, nil))
}
