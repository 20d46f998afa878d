package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ghalamif/raptorlink/internal/adapters/observability"
	"github.com/ghalamif/raptorlink/internal/domain"
	"github.com/ghalamif/raptorlink/internal/ports"
)

const (
	DefaultSampleInterval = time.Millisecond
	// maxLineLength bounds the pending buffer when the link never sends a newline.
	maxLineLength = 64 * 1024
	idleBackoff   = time.Millisecond
)

// Source turns a line-oriented telemetry stream into samples and offers
// them to the queue. It is the only reader of its link and the only producer
// on the queue.
type Source struct {
	r        io.Reader
	q        ports.SampleQueue
	obs      ports.Observability
	interval time.Duration
	now      func() time.Time

	clock    int64
	overflow bool
	pending  []byte
}

func NewSource(r io.Reader, q ports.SampleQueue, pol ports.Policy, obs ports.Observability) *Source {
	interval := pol.SampleInterval
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	s := &Source{
		r:        r,
		q:        q,
		obs:      obs,
		interval: interval,
		now:      time.Now,
	}
	s.clock = s.now().UnixNano()
	return s
}

// Run reads until ctx ends or the link fails. A read of zero bytes means no
// input is available yet. EOF and read errors end the source. The synthetic
// clock restarts from the time Run is entered.
func (s *Source) Run(ctx context.Context) error {
	s.clock = s.now().UnixNano()
	if c, ok := s.r.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { _ = c.Close() })
		defer stop()
	}

	buf := make([]byte, 4096)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := s.r.Read(buf)
		if n > 0 {
			s.consume(buf[:n])
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("telemetry link closed: %w", err)
			}
			return fmt.Errorf("telemetry link read: %w", err)
		}
		if n == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(idleBackoff):
			}
		}
	}
}

func (s *Source) consume(chunk []byte) {
	s.pending = append(s.pending, chunk...)
	for {
		i := bytes.IndexByte(s.pending, '\n')
		if i < 0 {
			break
		}
		s.HandleLine(s.pending[:i])
		s.pending = s.pending[i+1:]
	}
	if len(s.pending) > maxLineLength {
		s.obs.LogWarn("telemetry line too long, discarding", ports.Field{Key: "bytes", Value: len(s.pending)})
		s.obs.IncCounter(observability.MetricLinesDiscarded, 1)
		s.pending = s.pending[:0]
	}
	if len(s.pending) == 0 {
		s.pending = nil
	}
}

// HandleLine parses one raw line and offers every value it carries. A line
// with any unparsable field is dropped whole.
func (s *Source) HandleLine(line []byte) {
	values, err := ParseLine(line)
	if err != nil {
		if len(bytes.TrimSpace(line)) > 0 {
			s.obs.IncCounter(observability.MetricLinesDiscarded, 1)
		}
		return
	}
	s.Emit(values)
}

// Emit stamps each value with the next synthetic timestamp and offers it to
// the queue. It returns how many values were accepted.
func (s *Source) Emit(values []float64) int {
	s.obs.IncCounter(observability.MetricSamplesParsed, float64(len(values)))

	accepted := 0
	for _, v := range values {
		s.clock += s.interval.Nanoseconds()
		if s.offer(domain.Sample{Timestamp: s.clock, Value: v}) {
			accepted++
		}
	}
	s.obs.SetGauge(observability.MetricQueueLength, float64(s.q.Len()))
	return accepted
}

func (s *Source) offer(sample domain.Sample) bool {
	if s.q.Offer(sample) {
		s.overflow = false
		return true
	}
	s.obs.IncCounter(observability.MetricQueueDropped, 1)
	if !s.overflow {
		s.overflow = true
		s.obs.LogWarn("telemetry queue full", ports.Field{Key: "capacity", Value: s.q.Cap()})
	}
	return false
}

// ParseLine decodes a UTF-8 line of comma separated floats.
func ParseLine(line []byte) ([]float64, error) {
	if !utf8.Valid(line) {
		return nil, fmt.Errorf("%w: invalid utf-8", domain.ErrParse)
	}
	text := strings.TrimSpace(string(line))
	if text == "" {
		return nil, fmt.Errorf("%w: empty line", domain.ErrParse)
	}
	fields := strings.Split(text, ",")
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", domain.ErrParse, f, err)
		}
		out = append(out, v)
	}
	return out, nil
}
