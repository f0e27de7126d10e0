package render

import (
	"time"
)

// metricsHistorySize bounds the rolling frame-time window.
const metricsHistorySize = 60

// RenderMetrics is the published view of render performance. FPS and
// PeakFrameTime refresh once per wall-clock second; the other fields
// refresh every frame.
type RenderMetrics struct {
	FPS           int     `json:"fps"`
	TilesRendered int     `json:"tilesRendered"`
	DrawCalls     int     `json:"drawCalls"`
	FrameTime     float64 `json:"frameTime"`
	AvgFrameTime  float64 `json:"avgFrameTime"`
	PeakFrameTime float64 `json:"peakFrameTime"`
}

// MetricsAccumulator carries the rolling state behind RenderMetrics
// between frames: the frame-time history, the per-second update
// counter, and the last capture time. It is an explicit value owned by
// the renderer, so restarting a session resets it instead of leaking
// stale averages into the new one.
type MetricsAccumulator struct {
	history     []float64
	frameCount  int
	lastCapture time.Time
}

// NewMetricsAccumulator returns an empty accumulator.
func NewMetricsAccumulator() *MetricsAccumulator {
	return &MetricsAccumulator{
		history: make([]float64, 0, metricsHistorySize),
	}
}

// UpdateRenderMetrics folds one rendered frame into the accumulator
// and refreshes m in place. Call once per actual render. frameTime is
// in milliseconds.
func UpdateRenderMetrics(acc *MetricsAccumulator, m *RenderMetrics, frameTime float64, tilesRendered, drawCalls int) {
	if len(acc.history) == metricsHistorySize {
		copy(acc.history, acc.history[1:])
		acc.history = acc.history[:metricsHistorySize-1]
	}
	acc.history = append(acc.history, frameTime)

	m.FrameTime = frameTime
	m.TilesRendered = tilesRendered
	m.DrawCalls = drawCalls

	var sum float64
	for _, t := range acc.history {
		sum += t
	}
	m.AvgFrameTime = sum / float64(len(acc.history))

	acc.frameCount++

	now := time.Now()
	if acc.lastCapture.IsZero() {
		acc.lastCapture = now
		return
	}
	if now.Sub(acc.lastCapture) >= time.Second {
		var peak float64
		for _, t := range acc.history {
			if t > peak {
				peak = t
			}
		}
		m.PeakFrameTime = peak
		m.FPS = acc.frameCount
		acc.frameCount = 0
		acc.lastCapture = now
	}
}

// ResetRenderMetrics clears all rolling state. Call when a session
// restarts so the new session starts from clean counters.
func ResetRenderMetrics(acc *MetricsAccumulator, m *RenderMetrics) {
	acc.history = acc.history[:0]
	acc.frameCount = 0
	acc.lastCapture = time.Time{}
	*m = RenderMetrics{}
}
