package sink

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/ghalamif/raptorlink/internal/domain"
	"github.com/ghalamif/raptorlink/internal/ports"
)

// TimescaleSink writes points into a hypertable shaped
// (ts, measurement, field, value).
type TimescaleSink struct {
	db        *sql.DB
	tableName string
}

func NewTimescaleSink(db *sql.DB, table string) *TimescaleSink {
	return &TimescaleSink{db: db, tableName: table}
}

func (t *TimescaleSink) Name() string { return "timescaledb" }

func (t *TimescaleSink) Close() error { return t.db.Close() }

// EnsureSchema creates the table when it does not exist yet.
func (t *TimescaleSink) EnsureSchema(ctx context.Context) error {
	stmt := "CREATE TABLE IF NOT EXISTS " + pq.QuoteIdentifier(t.tableName) +
		" (ts TIMESTAMPTZ NOT NULL, measurement TEXT NOT NULL, field TEXT NOT NULL, value DOUBLE PRECISION NOT NULL," +
		" UNIQUE (measurement, field, ts))"
	if _, err := t.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// WritePoints inserts the batch with one statement, so it lands whole or not at all.
func (t *TimescaleSink) WritePoints(ctx context.Context, points []domain.Point) error {
	if len(points) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pq.QuoteIdentifier(t.tableName))
	b.WriteString(" (ts, measurement, field, value) VALUES ")

	args := make([]any, 0, len(points)*4)
	for i, p := range points {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, "($%d,$%d,$%d,$%d)", len(args)+1, len(args)+2, len(args)+3, len(args)+4)
		args = append(args, time.Unix(0, p.Timestamp).UTC(), p.Measurement, p.Field, p.Value)
	}

	b.WriteString(" ON CONFLICT (measurement, field, ts) DO NOTHING")

	if _, err := t.db.ExecContext(ctx, b.String(), args...); err != nil {
		return fmt.Errorf("timescale insert %d points: %w", len(points), err)
	}
	return nil
}

var _ ports.PointWriter = (*TimescaleSink)(nil)
