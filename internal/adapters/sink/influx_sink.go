package sink

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/ghalamif/raptorlink/internal/domain"
	"github.com/ghalamif/raptorlink/internal/ports"
)

type InfluxConfig struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
	// Tags are attached to every point, e.g. the device uuid.
	Tags map[string]string `yaml:"tags"`
}

func (c InfluxConfig) Validate() error {
	switch {
	case c.URL == "":
		return fmt.Errorf("%w: influx url is required", domain.ErrInvalidConfig)
	case c.Org == "":
		return fmt.Errorf("%w: influx org is required", domain.ErrInvalidConfig)
	case c.Bucket == "":
		return fmt.Errorf("%w: influx bucket is required", domain.ErrInvalidConfig)
	}
	return nil
}

type pointWriteAPI interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// InfluxSink writes through the blocking write API, so a call returns only
// once the server accepted or rejected the batch.
type InfluxSink struct {
	client influxdb2.Client
	api    pointWriteAPI
	tags   map[string]string
}

func NewInfluxSink(cfg InfluxConfig) (*InfluxSink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := influxdb2.DefaultOptions().SetPrecision(time.Nanosecond)
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)
	return &InfluxSink{
		client: client,
		api:    client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		tags:   cfg.Tags,
	}, nil
}

func (s *InfluxSink) Name() string { return "influxdb" }

func (s *InfluxSink) WritePoints(ctx context.Context, points []domain.Point) error {
	if len(points) == 0 {
		return nil
	}
	out := make([]*write.Point, 0, len(points))
	for _, p := range points {
		out = append(out, write.NewPoint(
			p.Measurement,
			s.tags,
			map[string]any{p.Field: p.Value},
			time.Unix(0, p.Timestamp),
		))
	}
	if err := s.api.WritePoint(ctx, out...); err != nil {
		return fmt.Errorf("influx write %d points: %w", len(points), err)
	}
	return nil
}

// Ping reports whether the server answers.
func (s *InfluxSink) Ping(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	ok, err := s.client.Ping(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("influx server not ready")
	}
	return nil
}

func (s *InfluxSink) Close() error {
	if s.client != nil {
		s.client.Close()
	}
	return nil
}

var _ ports.PointWriter = (*InfluxSink)(nil)
