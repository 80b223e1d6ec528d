package ports

import "time"

// Policy controls reader queue thresholds on in-process feeds.
type Policy struct {
	MaxQueueLen int `yaml:"max_queue_len"`
	// MaxBatchSize caps how many samples one Take drains; 0 drains everything queued.
	// A burst larger than the cap reaches the listener over several callbacks.
	MaxBatchSize int           `yaml:"max_batch_size"`
	IdleSleep    time.Duration `yaml:"idle_sleep"`

	OnQueueFull string `yaml:"on_queue_full"` // "block", "drop"
}
