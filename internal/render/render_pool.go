package render

import (
	"image/color"
	"runtime"
	"sync"

	"cryptopolis/internal/game"
)

// sequentialThreshold is the particle count below which chunking costs
// more than it saves.
const sequentialThreshold = 32

// RenderWorkerPool renders particle chunks in parallel. Jobs carry
// immutable snapshot values, so workers share the frame buffer without
// touching simulation state. Chunks may interleave blended writes to
// the same pixels; particles are translucent dabs, so ordering between
// chunks is not observable.
type RenderWorkerPool struct {
	numWorkers int
	jobChan    chan renderJob
	wg         sync.WaitGroup
	running    bool
	mu         sync.Mutex
}

// renderJob is one chunk of particles bound for a shared frame buffer
type renderJob struct {
	particles []game.ParticleSnapshot
	buffer    []byte
	width     int
	height    int
	done      chan<- struct{}
}

// NewRenderWorkerPool creates a pool with the given worker count.
// Zero or negative defaults to NumCPU, capped at 16.
func NewRenderWorkerPool(numWorkers int) *RenderWorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers > 16 {
		numWorkers = 16
	}

	return &RenderWorkerPool{
		numWorkers: numWorkers,
		jobChan:    make(chan renderJob, numWorkers*2),
	}
}

// Start launches the worker goroutines. Idempotent.
func (p *RenderWorkerPool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}

	p.running = true
	p.wg.Add(p.numWorkers)
	for i := 0; i < p.numWorkers; i++ {
		go p.worker()
	}
}

// Stop drains the job channel and waits for workers to exit
func (p *RenderWorkerPool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	close(p.jobChan)
	p.wg.Wait()
}

func (p *RenderWorkerPool) worker() {
	defer p.wg.Done()

	for job := range p.jobChan {
		fr := NewFastRenderer(job.width, job.height, job.buffer)
		for _, pt := range job.particles {
			drawParticle(fr, pt)
		}
		if job.done != nil {
			job.done <- struct{}{}
		}
	}
}

// RenderParticles blends a snapshot's particles into the frame buffer,
// in parallel when the count justifies it. Blocks until every chunk has
// been drawn, so the caller can composite the buffer immediately after.
func (p *RenderWorkerPool) RenderParticles(particles []game.ParticleSnapshot, buffer []byte, width, height int) {
	if len(particles) == 0 {
		return
	}

	p.mu.Lock()
	running := p.running
	p.mu.Unlock()

	if !running || len(particles) < sequentialThreshold {
		p.renderSequential(particles, buffer, width, height)
		return
	}

	chunkSize := (len(particles) + p.numWorkers - 1) / p.numWorkers
	inFlight := 0
	done := make(chan struct{}, p.numWorkers)

	for i := 0; i < len(particles); i += chunkSize {
		end := min(i+chunkSize, len(particles))
		chunk := particles[i:end]

		job := renderJob{
			particles: chunk,
			buffer:    buffer,
			width:     width,
			height:    height,
			done:      done,
		}

		select {
		case p.jobChan <- job:
			inFlight++
		default:
			// Channel full, draw this chunk on the caller's goroutine
			p.renderSequential(chunk, buffer, width, height)
		}
	}

	for ; inFlight > 0; inFlight-- {
		<-done
	}
}

// renderSequential is the single-goroutine fallback
func (p *RenderWorkerPool) renderSequential(particles []game.ParticleSnapshot, buffer []byte, width, height int) {
	fr := NewFastRenderer(width, height, buffer)
	for _, pt := range particles {
		drawParticle(fr, pt)
	}
}

// drawParticle rasterizes one particle. Coins, sparkles, and warnings
// are soft circles; confetti are small squares so bursts read as paper
// scraps rather than dots.
func drawParticle(r *FastRenderer, pt game.ParticleSnapshot) {
	c := parseHexColorFast(pt.Color)
	c.A = opacityToAlpha(pt.Opacity)
	if c.A == 0 {
		return
	}

	x := int(pt.X + 0.5)
	y := int(pt.Y + 0.5)

	switch pt.Type {
	case game.ParticleConfetti:
		side := int(pt.Size + 0.5)
		if side < 2 {
			side = 2
		}
		r.DrawFilledRectBlend(x-side/2, y-side/2, side, side, c)
	default:
		radius := pt.Size / 2
		if radius < 1.5 {
			radius = 1.5
		}
		r.DrawFilledCircleBlend(x, y, radius, c)
	}
}

func opacityToAlpha(opacity float64) uint8 {
	if opacity <= 0 {
		return 0
	}
	if opacity >= 1 {
		return 255
	}
	return uint8(opacity * 255)
}

// GetNumWorkers returns the configured worker count
func (p *RenderWorkerPool) GetNumWorkers() int {
	return p.numWorkers
}

// IsRunning reports whether workers are live
func (p *RenderWorkerPool) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// parseHexColorFast decodes a "#rrggbb" string without allocating.
// Malformed input falls back to white rather than failing a frame.
func parseHexColorFast(hex string) color.RGBA {
	if len(hex) != 7 || hex[0] != '#' {
		return color.RGBA{255, 255, 255, 255}
	}

	var n [6]uint8
	for i := range n {
		n[i] = hexNibble(hex[i+1])
	}
	return color.RGBA{
		R: n[0]<<4 | n[1],
		G: n[2]<<4 | n[3],
		B: n[4]<<4 | n[5],
		A: 255,
	}
}

func hexNibble(c byte) uint8 {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		return 0
	}
}
