package providers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		code      int
		want      error
		permanent bool
	}{
		{http.StatusOK, nil, false},
		{http.StatusTooManyRequests, errRateLimited, false},
		{http.StatusBadGateway, errServerError, false},
		{http.StatusNotFound, errUnexpected, true},
	}
	for _, tt := range tests {
		err := classify(tt.code)
		if tt.want == nil {
			assert.NoError(t, err)
			continue
		}
		assert.ErrorIs(t, err, tt.want)
		var p permanent
		assert.Equal(t, tt.permanent, errors.As(err, &p), "status %d", tt.code)
	}
}

func TestBackoffDelayIsCapped(t *testing.T) {
	b := BackoffConfig{MaxRetries: 5, InitialInterval: 100 * time.Millisecond, MaxInterval: 300 * time.Millisecond}
	assert.Equal(t, 100*time.Millisecond, b.delay(0))
	assert.Equal(t, 200*time.Millisecond, b.delay(1))
	assert.Equal(t, 300*time.Millisecond, b.delay(2))
}

func TestUpstreamRequiresClient(t *testing.T) {
	u := newUpstream("test", HTTPClientConfig{})
	_, err := u.get(context.Background(), "http://127.0.0.1:1")
	assert.ErrorIs(t, err, errNoHTTPClient)
}
