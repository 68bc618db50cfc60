package config

import "time"

type AppConfig struct {
	Port           int
	Mode           string
	Endpoint       string
	ROIPath        string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxPayload     uint64
	UIRate         time.Duration
	OutputDir      string
	SaveEvery      int
	RawLogEnabled  bool
	RawLogDir      string
	IngestLogEvery int
}

const (
	ModeStream = "stream"
	ModePubSub = "pubsub"
)

// DefaultUIRate is the websocket push interval used when none is set.
const DefaultUIRate = 200 * time.Millisecond

// ApplyDefaults fills zero or negative settings that have a fallback. Call it
// once, before the config is shared between goroutines.
func (c *AppConfig) ApplyDefaults() {
	if c.UIRate <= 0 {
		c.UIRate = DefaultUIRate
	}
}
