package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit transient", NewTransientError(errors.New("overloaded"), 503), true},
		{"wrapped transient", eris.Wrap(NewTransientError(errors.New("slow down"), 429), "fetch"), true},
		{"status 429", &StatusError{StatusCode: 429}, true},
		{"status 502", &StatusError{StatusCode: 502}, true},
		{"status 404", &StatusError{StatusCode: 404}, false},
		{"status 403 wrapped", fmt.Errorf("get: %w", &StatusError{StatusCode: 403}), false},
		{"conn reset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"dns timeout", &net.DNSError{IsTimeout: true, Err: "timeout"}, true},
		{"io timeout text", errors.New("dial tcp 1.2.3.4:443: i/o timeout"), true},
		{"plain", errors.New("invalid character '<' looking for beginning of value"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), code)
	}
	for _, code := range []int{200, 301, 400, 401, 403, 404, 501} {
		assert.False(t, IsTransientHTTPStatus(code), code)
	}
}

func TestStatusError(t *testing.T) {
	err := &StatusError{URL: "https://www.sec.gov/x", StatusCode: 404}
	assert.Equal(t, "http 404: https://www.sec.gov/x", err.Error())
	assert.False(t, err.Temporary())
	assert.Equal(t, 404, StatusCode(eris.Wrap(err, "fetch")))
	assert.Equal(t, 0, StatusCode(errors.New("x")))
}
