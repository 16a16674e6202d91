package camunda

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"command-pipeline/internal/common/config"
	"command-pipeline/internal/common/errors"
)

func TestIsRetryableZeebeError(t *testing.T) {
	tests := []struct {
		err  string
		want bool
	}{
		{"rpc error: code = Unavailable desc = connection refused", true},
		{"context deadline exceeded", true},
		{"broken pipe", true},
		{"rpc error: code = NotFound desc = job not found", false},
		{"rpc error: code = InvalidArgument", false},
	}
	for _, tt := range tests {
		t.Run(tt.err, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryableZeebeError(fmt.Errorf("%s", tt.err)))
		})
	}
}

func TestMapZeebeError(t *testing.T) {
	tests := []struct {
		err       string
		code      errors.ErrorCode
		retryable bool
	}{
		{"context deadline exceeded", errors.ErrCodeTimeout, true},
		{"rpc error: code = PermissionDenied desc = permission denied", errors.ErrCodeSecurityViolation, false},
		{"rpc error: code = NotFound desc = job not found", errors.ErrCodeExternalServiceFailure, false},
		{"rpc error: code = Unavailable", errors.ErrCodeExternalServiceFailure, true},
	}
	for _, tt := range tests {
		t.Run(tt.err, func(t *testing.T) {
			err := MapZeebeError(fmt.Errorf("%s", tt.err), "complete-job", 2)
			stdErr, ok := errors.AsStandard(err)
			assert.True(t, ok)
			assert.Equal(t, tt.code, stdErr.Code)
			assert.Equal(t, tt.retryable, stdErr.Retryable)
		})
	}
}

func TestClientConfigFrom(t *testing.T) {
	c := ClientConfigFrom(config.CamundaConfig{BrokerAddress: "zeebe:26500", Timeout: 2000, RequestTimeout: 500})
	assert.Equal(t, "zeebe:26500", c.GatewayAddress)
	assert.Equal(t, "2s", c.ConnectionTimeout.String())
	assert.Equal(t, "500ms", c.RequestTimeout.String())

	d := ClientConfigFrom(config.CamundaConfig{BrokerAddress: "x"})
	assert.Equal(t, DefaultClientConfig("x").RequestTimeout, d.RequestTimeout)
}
