package giterr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		marker error
		kind   Kind
	}{
		{"url", URL("parse", errors.New("bad")), ErrURL, KindURL},
		{"protocol", Protocol("read", ErrMissingLocation), ErrProtocol, KindProtocol},
		{"status", Status("read", 404), ErrProtocol, KindProtocol},
		{"network", Network("connect", errors.New("refused")), ErrNetwork, KindNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.marker)
			assert.Equal(t, tt.kind, KindOf(tt.err))
			assert.Equal(t, ClassNet, KindOf(tt.err).Class())

			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.marker)
			assert.Equal(t, tt.kind, KindOf(wrapped))
		})
	}
}

func TestErrorDoesNotMatchOtherKinds(t *testing.T) {
	err := Network("read", errors.New("reset"))
	assert.False(t, errors.Is(err, ErrURL))
	assert.False(t, errors.Is(err, ErrProtocol))
}

func TestErrorUnwrapsSentinel(t *testing.T) {
	err := Protocol("read", ErrTooManyRedirects)
	assert.ErrorIs(t, err, ErrTooManyRedirects)
	assert.Equal(t, "read: protocol error: too many redirects", err.Error())
}

func TestStatusError(t *testing.T) {
	err := Status("read", 500)

	var gerr *Error
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, 500, gerr.Status)
	assert.Contains(t, err.Error(), "status 500")
	assert.Contains(t, err.Error(), "unexpected status code: 500")
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Kind(0), KindOf(errors.New("plain")))
	assert.Equal(t, "kind(0)", Kind(0).String())
}
