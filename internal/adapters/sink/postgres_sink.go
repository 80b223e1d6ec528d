package sink

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/ajmhs/training-listeners-read-write/internal/domain"
	"github.com/ajmhs/training-listeners-read-write/internal/ports"
)

// PostgresSink records shapes into a Postgres table. Rows are keyed by (writer_id, seq) so
// redelivered samples are ignored.
type PostgresSink struct {
	db        *sql.DB
	tableName string
}

// OpenPostgres opens and pings a database handle using the lib/pq driver.
func OpenPostgres(ctx context.Context, connString string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

func NewPostgresSink(db *sql.DB, table string) *PostgresSink {
	return &PostgresSink{db: db, tableName: table}
}

func (p *PostgresSink) Name() string { return "postgres" }

// EnsureTable creates the shapes table when it does not exist yet.
func (p *PostgresSink) EnsureTable(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS "+p.tableName+` (
	color TEXT NOT NULL,
	x INTEGER NOT NULL,
	y INTEGER NOT NULL,
	shapesize INTEGER NOT NULL,
	fill_kind INTEGER NOT NULL,
	angle REAL NOT NULL,
	source_ts TIMESTAMPTZ NOT NULL,
	writer_id TEXT NOT NULL,
	seq BIGINT NOT NULL,
	PRIMARY KEY (writer_id, seq)
)`)
	return err
}

func (p *PostgresSink) WriteBatch(samples []*domain.Sample) error {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(p.tableName)
	b.WriteString(" (color, x, y, shapesize, fill_kind, angle, source_ts, writer_id, seq) VALUES ")

	args := make([]any, 0, len(samples)*9)
	for _, s := range samples {
		if s == nil || !s.Info.Valid {
			continue
		}
		if len(args) > 0 {
			b.WriteString(",")
		}
		n := len(args)
		b.WriteString(fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			n+1, n+2, n+3, n+4, n+5, n+6, n+7, n+8, n+9))

		args = append(args,
			s.Data.Color,
			s.Data.X,
			s.Data.Y,
			s.Data.ShapeSize,
			int32(s.Data.FillKind),
			s.Data.Angle,
			s.Info.SourceTimestamp,
			s.Info.PublicationHandle,
			s.Info.SequenceNumber,
		)
	}
	if len(args) == 0 {
		return nil
	}

	b.WriteString(" ON CONFLICT (writer_id, seq) DO NOTHING")

	_, err := p.db.Exec(b.String(), args...)
	return err
}

var _ ports.Sink = (*PostgresSink)(nil)
