//go:build opencl

package wave

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jgillich/go-opencl/cl"
)

const waveKernelSource = `__kernel void wave_step(
    const int size,
    const float lambda2,
    const float damp,
    __global const float* curr,
    __global float* prev,
    __global const float* force,
    __global const float* gain)
{
    int idx = get_global_id(0);
    if (idx >= size * size) {
        return;
    }
    int x = idx % size;
    int y = idx / size;
    if (x <= 0 || x >= size - 1 || y <= 0 || y >= size - 1) {
        return;
    }
    float g = gain[idx];
    if (g == 0.0f) {
        return;
    }
    float center = curr[idx];
    float laplacian = curr[idx + 1] + curr[idx - 1] + curr[idx - size] + curr[idx + size] - 4.0f * center;
    float next = (center + (center - prev[idx]) + lambda2 * laplacian) * damp;
    prev[idx] = (next + force[idx]) * g;
}`

// openCLKernel mirrors the host ping-pong arenas on the device. Device buffer
// i shadows host buffer i, so the host index flip needs no device copy.
type openCLKernel struct {
	context    *cl.Context
	queue      *cl.CommandQueue
	program    *cl.Program
	kernel     *cl.Kernel
	buffers    [2]*cl.MemObject
	forceBuf   *cl.MemObject
	gainBuf    *cl.MemObject
	size       int
	deviceName string
}

func newOpenCLKernel() (kernel, error) {
	platforms, err := cl.GetPlatforms()
	if err != nil {
		msg := "querying OpenCL platforms"
		if strings.Contains(err.Error(), "-1001") {
			msg += ": no ICD loader reported any platforms; install OpenCL drivers and verify with `clinfo`"
		}
		return nil, fmt.Errorf("%s: %w", msg, err)
	}
	if len(platforms) == 0 {
		return nil, errors.New("no OpenCL platforms available; ensure a vendor driver is installed and detected by `clinfo`")
	}
	var device *cl.Device
	for _, kind := range []cl.DeviceType{cl.DeviceTypeGPU, cl.DeviceTypeCPU} {
		for _, p := range platforms {
			devices, derr := p.GetDevices(kind)
			if derr != nil && derr != cl.ErrDeviceNotFound {
				continue
			}
			if len(devices) > 0 {
				device = devices[0]
				break
			}
		}
		if device != nil {
			break
		}
	}
	if device == nil {
		return nil, errors.New("no suitable OpenCL devices found")
	}

	context, err := cl.CreateContext([]*cl.Device{device})
	if err != nil {
		return nil, fmt.Errorf("creating OpenCL context: %w", err)
	}
	queue, err := context.CreateCommandQueue(device, 0)
	if err != nil {
		context.Release()
		return nil, fmt.Errorf("creating OpenCL command queue: %w", err)
	}
	program, err := context.CreateProgramWithSource([]string{waveKernelSource})
	if err != nil {
		queue.Release()
		context.Release()
		return nil, fmt.Errorf("creating OpenCL program: %w", err)
	}
	if err := program.BuildProgram([]*cl.Device{device}, ""); err != nil {
		program.Release()
		queue.Release()
		context.Release()
		if buildErr, ok := err.(cl.BuildError); ok {
			return nil, fmt.Errorf("building OpenCL program: %s", string(buildErr))
		}
		return nil, fmt.Errorf("building OpenCL program: %w", err)
	}
	k, err := program.CreateKernel("wave_step")
	if err != nil {
		program.Release()
		queue.Release()
		context.Release()
		return nil, fmt.Errorf("creating OpenCL kernel: %w", err)
	}
	return &openCLKernel{
		context:    context,
		queue:      queue,
		program:    program,
		kernel:     k,
		deviceName: device.Name(),
	}, nil
}

func (k *openCLKernel) name() string { return BackendOpenCL + ":" + k.deviceName }

func (k *openCLKernel) releaseBuffers() {
	for i, buf := range k.buffers {
		if buf != nil {
			buf.Release()
			k.buffers[i] = nil
		}
	}
	if k.forceBuf != nil {
		k.forceBuf.Release()
		k.forceBuf = nil
	}
	if k.gainBuf != nil {
		k.gainBuf.Release()
		k.gainBuf = nil
	}
}

// configure (re)allocates the device buffers when the resolution changes and
// uploads the boundary gain.
func (k *openCLKernel) configure(size int, gain []float32, _ []rowMask) error {
	if size != k.size || k.gainBuf == nil {
		k.releaseBuffers()
		byteSize := size * size * 4
		for i := range k.buffers {
			buf, err := k.context.CreateEmptyBuffer(cl.MemReadWrite, byteSize)
			if err != nil {
				k.releaseBuffers()
				return fmt.Errorf("allocating wave buffer %d: %w", i, err)
			}
			k.buffers[i] = buf
		}
		forceBuf, err := k.context.CreateEmptyBuffer(cl.MemReadOnly, byteSize)
		if err != nil {
			k.releaseBuffers()
			return fmt.Errorf("allocating force buffer: %w", err)
		}
		k.forceBuf = forceBuf
		gainBuf, err := k.context.CreateEmptyBuffer(cl.MemReadOnly, byteSize)
		if err != nil {
			k.releaseBuffers()
			return fmt.Errorf("allocating gain buffer: %w", err)
		}
		k.gainBuf = gainBuf
		k.size = size
	}
	if _, err := k.queue.EnqueueWriteBufferFloat32(k.gainBuf, true, 0, gain, nil); err != nil {
		return fmt.Errorf("writing gain buffer: %w", err)
	}
	return nil
}

func (k *openCLKernel) step(job stepJob) (stepStats, error) {
	if job.size != k.size {
		return stepStats{}, fmt.Errorf("unexpected field buffer size %d (device holds %d)", job.size, k.size)
	}
	if job.dirty {
		for i, host := range job.buffers {
			if _, err := k.queue.EnqueueWriteBufferFloat32(k.buffers[i], false, 0, host, nil); err != nil {
				return stepStats{}, fmt.Errorf("writing wave buffer %d: %w", i, err)
			}
		}
	}
	if _, err := k.queue.EnqueueWriteBufferFloat32(k.forceBuf, false, 0, job.force, nil); err != nil {
		return stepStats{}, fmt.Errorf("writing force buffer: %w", err)
	}
	if err := k.kernel.SetArgs(
		int32(job.size),
		job.coeffs.lambda2,
		job.coeffs.damp,
		k.buffers[job.cur],
		k.buffers[1-job.cur],
		k.forceBuf,
		k.gainBuf,
	); err != nil {
		return stepStats{}, fmt.Errorf("setting kernel arguments: %w", err)
	}
	if _, err := k.queue.EnqueueNDRangeKernel(k.kernel, nil, []int{job.size * job.size}, nil, nil); err != nil {
		return stepStats{}, fmt.Errorf("enqueueing kernel: %w", err)
	}
	next := job.previous()
	if _, err := k.queue.EnqueueReadBufferFloat32(k.buffers[1-job.cur], true, 0, next, nil); err != nil {
		return stepStats{}, fmt.Errorf("reading next buffer: %w", err)
	}
	var stats stepStats
	for _, v := range next {
		if v != v {
			stats.nan = true
			continue
		}
		if v < 0 {
			v = -v
		}
		if v > stats.peak {
			stats.peak = v
		}
	}
	return stats, nil
}

func (k *openCLKernel) close() {
	k.releaseBuffers()
	if k.kernel != nil {
		k.kernel.Release()
		k.kernel = nil
	}
	if k.program != nil {
		k.program.Release()
		k.program = nil
	}
	if k.queue != nil {
		k.queue.Release()
		k.queue = nil
	}
	if k.context != nil {
		k.context.Release()
		k.context = nil
	}
}
