package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/i474232898/pv-feature-pipeline/internal/telemetry"
)

// ClickHouseConfig holds connection settings for ClickHouseStore.
type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
}

// ClickHouseStore serves inverter readings from ClickHouse.
type ClickHouseStore struct {
	conn   driver.Conn
	logger *zap.Logger
}

// NewClickHouseStore connects, pings and makes sure the table exists.
func NewClickHouseStore(ctx context.Context, cfg ClickHouseConfig, logger *zap.Logger) (*ClickHouseStore, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connect to ClickHouse: %w", telemetry.ErrUpstream, err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: ping ClickHouse: %w", telemetry.ErrUpstream, err)
	}

	if err := conn.Exec(ctx, clickHouseInverterTable); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create inverter_data table: %w", err)
	}

	logger.Info("connected to ClickHouse", zap.String("addr", cfg.Addr), zap.String("database", cfg.Database))
	return &ClickHouseStore{conn: conn, logger: logger}, nil
}

// Query returns the readings of one inverter on the closed interval of q.
func (s *ClickHouseStore) Query(ctx context.Context, q telemetry.Query) ([]telemetry.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	rows, err := s.conn.Query(ctx, fmt.Sprintf(selectInverterRange, "?", "?", "?"),
		q.InverterID, q.From.UTC(), q.To.UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: query inverter_data: %w", telemetry.ErrUpstream, err)
	}
	defer rows.Close()

	var out []telemetry.Record
	for rows.Next() {
		var (
			row inverterRow
			has [telemetry.MaxLines]uint8
		)
		if err := rows.Scan(
			&row.Date,
			&row.InverterID,
			&row.TotalActivePower,
			&row.Temperature,
			&row.DCVoltage,
			&row.ACVoltage[0],
			&row.ACVoltage[1],
			&row.ACVoltage[2],
			&has[0],
			&has[1],
			&has[2],
		); err != nil {
			return nil, fmt.Errorf("%w: scan inverter_data: %w", telemetry.ErrUpstream, err)
		}
		for i, h := range has {
			row.HasLine[i] = h != 0
		}
		out = append(out, row.record())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate inverter_data: %w", telemetry.ErrUpstream, err)
	}

	s.logger.Debug("clickhouse query",
		zap.String("inverter", q.InverterID),
		zap.Time("from", q.From),
		zap.Time("to", q.To),
		zap.Int("rows", len(out)))
	return out, nil
}

// Insert writes readings in one batch.
func (s *ClickHouseStore) Insert(ctx context.Context, records []telemetry.Record) error {
	if len(records) == 0 {
		return nil
	}
	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO inverter_data")
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	if err := appendRows(batch, records); err != nil {
		return err
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// rowAppender is the part of driver.Batch appendRows needs.
type rowAppender interface {
	Append(v ...any) error
	Abort() error
}

// appendRows appends every record, aborting the batch on the first failure.
func appendRows(batch rowAppender, records []telemetry.Record) error {
	for _, r := range records {
		row := rowFromRecord(r)
		if err := batch.Append(
			row.Date,
			row.InverterID,
			row.TotalActivePower,
			row.Temperature,
			row.DCVoltage,
			row.ACVoltage[0],
			row.ACVoltage[1],
			row.ACVoltage[2],
			boolToUInt8(row.HasLine[0]),
			boolToUInt8(row.HasLine[1]),
			boolToUInt8(row.HasLine[2]),
		); err != nil {
			if abortErr := batch.Abort(); abortErr != nil {
				return fmt.Errorf("append reading: %w (abort: %v)", err, abortErr)
			}
			return fmt.Errorf("append reading: %w", err)
		}
	}
	return nil
}

// Close closes the connection.
func (s *ClickHouseStore) Close() error {
	return s.conn.Close()
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
