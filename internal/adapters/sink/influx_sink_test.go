package sink

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/ghalamif/raptorlink/internal/domain"
)

type fakeWriteAPI struct {
	points []*write.Point
	err    error
}

func (f *fakeWriteAPI) WritePoint(_ context.Context, points ...*write.Point) error {
	if f.err != nil {
		return f.err
	}
	f.points = append(f.points, points...)
	return nil
}

func TestInfluxSinkWritePoints(t *testing.T) {
	api := &fakeWriteAPI{}
	sink := &InfluxSink{api: api, tags: map[string]string{"device": "42"}}

	err := sink.WritePoints(context.Background(), []domain.Point{
		{Measurement: "adc-dma", Field: "voltage", Value: 3.3, Timestamp: 1700000000000000005},
		{Measurement: "adc-dma", Field: "voltage", Value: 1.25, Timestamp: 1700000000001000005},
	})
	if err != nil {
		t.Fatalf("write points: %v", err)
	}
	if len(api.points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(api.points))
	}

	line := strings.TrimSpace(write.PointToLineProtocol(api.points[0], time.Nanosecond))
	want := "adc-dma,device=42 voltage=3.3 1700000000000000005"
	if line != want {
		t.Fatalf("expected %q, got %q", want, line)
	}
}

func TestInfluxSinkWriteError(t *testing.T) {
	apiErr := errors.New("401 unauthorized")
	sink := &InfluxSink{api: &fakeWriteAPI{err: apiErr}}

	err := sink.WritePoints(context.Background(), []domain.Point{{Measurement: "m", Field: "f", Value: 1, Timestamp: 1}})
	if !errors.Is(err, apiErr) {
		t.Fatalf("expected wrapped api error, got %v", err)
	}
}

func TestInfluxConfigValidate(t *testing.T) {
	if _, err := NewInfluxSink(InfluxConfig{URL: "http://localhost:8086", Org: "lab"}); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig without bucket, got %v", err)
	}

	sink, err := NewInfluxSink(InfluxConfig{URL: "http://localhost:8086", Org: "lab", Bucket: "raptor"})
	if err != nil {
		t.Fatalf("new influx sink: %v", err)
	}
	defer sink.Close()
	if sink.Name() != "influxdb" {
		t.Fatalf("unexpected name %s", sink.Name())
	}
}
