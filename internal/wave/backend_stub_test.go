//go:build !opencl

package wave

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestNew_OpenCLUnavailableWithoutTag(t *testing.T) {
	_, err := New(zaptest.NewLogger(t), 16, DefaultParams(), Options{Backend: BackendOpenCL})
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = New(zaptest.NewLogger(t), 16, DefaultParams(), Options{Backend: "cuda"})
	assert.ErrorContains(t, err, "unknown wave backend")
}
