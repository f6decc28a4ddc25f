//go:build !opencl

package wave

import "errors"

func newOpenCLKernel() (kernel, error) {
	return nil, errors.New("OpenCL support is not enabled; rebuild with -tags opencl")
}
