package processing

import (
	"time"

	"roi-stream-go/internal/types"
)

type ChannelStats struct {
	Min  uint8   `json:"min"`
	Max  uint8   `json:"max"`
	Mean float64 `json:"mean"`
}

// Aggregator keeps the latest crop and running counters for the viewer UI.
// It is not safe for concurrent use.
type Aggregator struct {
	frameCount int
	latest     types.Frame
	hasLatest  bool
	stats      []ChannelStats
}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// AddFrame records crop as the latest one and recomputes its channel stats.
func (a *Aggregator) AddFrame(crop types.Frame) {
	a.frameCount++
	a.latest = crop
	a.hasLatest = true
	a.stats = channelStats(crop)
}

// FrameCount is the number of crops added so far.
func (a *Aggregator) FrameCount() int {
	return a.frameCount
}

// Latest returns the most recent crop, if any.
func (a *Aggregator) Latest() (types.Frame, bool) {
	return a.latest, a.hasLatest
}

func (a *Aggregator) StatsCopy() []ChannelStats {
	if a.stats == nil {
		return nil
	}
	out := make([]ChannelStats, len(a.stats))
	copy(out, a.stats)
	return out
}

func channelStats(f types.Frame) []ChannelStats {
	if !f.Valid() {
		return nil
	}
	ch := f.Channels
	stats := make([]ChannelStats, ch)
	sums := make([]float64, ch)
	for k := range stats {
		stats[k].Min = 255
	}
	for i, v := range f.Pix {
		k := i % ch
		if v < stats[k].Min {
			stats[k].Min = v
		}
		if v > stats[k].Max {
			stats[k].Max = v
		}
		sums[k] += float64(v)
	}
	pixels := float64(f.Rows * f.Cols)
	for k := range stats {
		stats[k].Mean = sums[k] / pixels
	}
	return stats
}

func Timestamp() string {
	return time.Now().Format("20060102_150405")
}
