package wave

import (
	"runtime"
	"sync"
)

// workerPool runs the CPU stencil on a fixed set of goroutines. A step bumps
// the generation counter and waits until every worker has processed its mask.
type workerPool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	count   int
	gen     int
	pending int
	closed  bool
	masks   []workerMask
	job     stepJob
	stats   []stepStats
	wg      sync.WaitGroup
}

// newWorkerPool launches the background goroutines that execute CPU wave steps.
func newWorkerPool(count int) *workerPool {
	if count < 1 {
		count = runtime.NumCPU()
	}
	p := &workerPool{
		count: count,
		stats: make([]stepStats, count),
	}
	p.cond = sync.NewCond(&p.mu)
	p.wg.Add(count)
	for i := 0; i < count; i++ {
		go p.loop(i)
	}
	return p
}

func (p *workerPool) name() string { return BackendCPU }

func (p *workerPool) configure(_ int, _ []float32, rows []rowMask) error {
	p.mu.Lock()
	p.masks = assignRowMasks(p.count, rows)
	p.mu.Unlock()
	return nil
}

// step publishes the job to every worker and blocks until all of them are done.
func (p *workerPool) step(job stepJob) (stepStats, error) {
	p.mu.Lock()
	p.job = job
	p.pending = p.count
	p.gen++
	p.cond.Broadcast()
	for p.pending > 0 {
		p.cond.Wait()
	}
	var total stepStats
	for _, s := range p.stats {
		total = total.merge(s)
	}
	p.job = stepJob{}
	p.mu.Unlock()
	return total, nil
}

// loop executes CPU wave updates for rows assigned to the worker.
func (p *workerPool) loop(index int) {
	defer p.wg.Done()
	lastGen := 0
	p.mu.Lock()
	for {
		for p.gen == lastGen && !p.closed {
			p.cond.Wait()
		}
		if p.closed {
			p.mu.Unlock()
			return
		}
		lastGen = p.gen
		var mask workerMask
		if index < len(p.masks) {
			mask = p.masks[index]
		}
		job := p.job
		p.mu.Unlock()

		stats := processMask(job, &mask)

		p.mu.Lock()
		p.stats[index] = stats
		p.pending--
		if p.pending == 0 {
			p.cond.Broadcast()
		}
	}
}

// close stops the workers and waits for them to exit.
func (p *workerPool) close() {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
	p.wg.Wait()
}

// processMask steps the finite difference solver over the provided worker
// mask. Reads come from the current buffer and the cell's own previous value;
// the result overwrites that previous value.
func processMask(job stepJob, mask *workerMask) stepStats {
	var stats stepStats
	width := job.size
	lambda2 := job.coeffs.lambda2
	damp := job.coeffs.damp
	curr := job.current()
	prev := job.previous()
	force := job.force
	gain := job.gain
	for _, row := range mask.rows {
		rowBase := row.y * width
		center := curr[rowBase : rowBase+width]
		top := curr[rowBase-width : rowBase]
		bottom := curr[rowBase+width : rowBase+2*width]
		prevRow := prev[rowBase : rowBase+width]
		forceRow := force[rowBase : rowBase+width]
		gainRow := gain[rowBase : rowBase+width]

		for _, sp := range row.spans {
			for x := sp.start; x <= sp.end; x++ {
				c := center[x]
				lap := center[x+1] + center[x-1] + top[x] + bottom[x] - 4*c
				next := (c + (c - prevRow[x]) + lambda2*lap) * damp
				next = (next + forceRow[x]) * gainRow[x]
				prevRow[x] = next

				if next != next {
					stats.nan = true
					continue
				}
				if next < 0 {
					next = -next
				}
				if next > stats.peak {
					stats.peak = next
				}
			}
		}
	}
	return stats
}
