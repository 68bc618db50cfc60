// Package capture produces the raw frames the server streams.
package capture

import (
	"context"
	"fmt"
	"time"

	"roi-stream-go/internal/types"
)

// Source yields frames at the source's own pace. Next blocks until a frame is
// ready or ctx is done.
type Source interface {
	Next(ctx context.Context) (types.Frame, error)
	Close() error
}

// CaptureError reports that the frame source failed. It ends the server.
type CaptureError struct {
	Source string
	Err    error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture %s: %v", e.Source, e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// pacer releases one tick per frame interval. A zero interval never waits.
type pacer struct {
	ticker *time.Ticker
}

func newPacer(fps float64) *pacer {
	if fps <= 0 {
		return &pacer{}
	}
	return &pacer{ticker: time.NewTicker(time.Duration(float64(time.Second) / fps))}
}

func (p *pacer) wait(ctx context.Context) error {
	if p.ticker == nil {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ticker.C:
		return nil
	}
}

func (p *pacer) stop() {
	if p.ticker != nil {
		p.ticker.Stop()
	}
}

func now() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
