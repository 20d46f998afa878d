package ports

import "time"

type Policy struct {
	QueueCapacity   int           `yaml:"queue_capacity"`
	BatchSize       int           `yaml:"batch_size"`
	SampleInterval  time.Duration `yaml:"sample_interval"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Measurement     string        `yaml:"measurement"`
	Field           string        `yaml:"field"`
}
