package apierr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromResponse(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{502, KindGateway},
		{504, KindGateway},
		{400, KindValidation},
		{404, KindValidation},
		{422, KindValidation},
		{500, KindUnknown},
		{503, KindUnknown},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			err := FromResponse("cdn.validate", tt.status, []byte("boom"))
			assert.Equal(t, tt.want, KindOf(err))
		})
	}

	assert.NoError(t, FromResponse("ok", 200, nil))
	assert.NoError(t, FromResponse("ok", 204, nil))
}

func TestFromTransport(t *testing.T) {
	dnsErr := &net.DNSError{Err: "no such host", Name: "cdn.invalid"}
	assert.Equal(t, KindNetwork, KindOf(FromTransport("fetch", dnsErr)))
	assert.Equal(t, KindNetwork, KindOf(FromTransport("fetch", context.DeadlineExceeded)))
	assert.Equal(t, KindUnknown, KindOf(FromTransport("fetch", context.Canceled)))
	assert.Equal(t, KindUnknown, KindOf(FromTransport("fetch", errors.New("weird"))))
	assert.NoError(t, FromTransport("fetch", nil))

	// 이미 분류된 에러는 그대로 유지
	v := Validation("fetch", "bad content type %s", "text/html")
	assert.Same(t, v, FromTransport("outer", v))
}

func TestIsRetryableThroughWrapping(t *testing.T) {
	gw := FromResponse("process", 504, nil)
	wrapped := fmt.Errorf("step resize: %w", gw)

	assert.True(t, IsRetryable(wrapped))
	assert.False(t, IsRetryable(fmt.Errorf("x: %w", Validation("process", "unknown operation"))))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.Contains(t, gw.Error(), "status 504")
}
