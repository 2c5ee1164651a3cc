package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/i474232898/pv-feature-pipeline/internal/telemetry"
)

const (
	defaultMaxOpenConns = 10
	defaultMaxIdleConns = 5
	defaultConnLifetime = time.Hour
	defaultPingTimeout  = 5 * time.Second
)

// PostgresStore serves inverter readings from PostgreSQL through pgx.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresStore opens a pgx/stdlib pool, validates it and makes sure the table exists.
func NewPostgresStore(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres: empty DSN")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", telemetry.ErrUpstream, err)
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping postgres: %w", telemetry.ErrUpstream, err)
	}

	if _, err := db.ExecContext(ctx, postgresInverterTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create inverter_data table: %w", err)
	}

	logger.Info("connected to postgres")
	return &PostgresStore{db: db, logger: logger}, nil
}

// Query returns the readings of one inverter on the closed interval of q.
func (s *PostgresStore) Query(ctx context.Context, q telemetry.Query) ([]telemetry.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(selectInverterRange, "$1", "$2", "$3"),
		q.InverterID, q.From.UTC(), q.To.UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: query inverter_data: %w", telemetry.ErrUpstream, err)
	}
	defer rows.Close()

	var out []telemetry.Record
	for rows.Next() {
		var (
			row         inverterRow
			power, temp sql.NullFloat64
			dc          sql.NullFloat64
			ac          [telemetry.MaxLines]sql.NullFloat64
		)
		if err := rows.Scan(
			&row.Date,
			&row.InverterID,
			&power,
			&temp,
			&dc,
			&ac[0],
			&ac[1],
			&ac[2],
			&row.HasLine[0],
			&row.HasLine[1],
			&row.HasLine[2],
		); err != nil {
			return nil, fmt.Errorf("%w: scan inverter_data: %w", telemetry.ErrUpstream, err)
		}
		row.TotalActivePower = nullable(power)
		row.Temperature = nullable(temp)
		row.DCVoltage = nullable(dc)
		for i := range ac {
			row.ACVoltage[i] = nullable(ac[i])
		}
		out = append(out, row.record())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate inverter_data: %w", telemetry.ErrUpstream, err)
	}

	s.logger.Debug("postgres query",
		zap.String("inverter", q.InverterID),
		zap.Int("rows", len(out)))
	return out, nil
}

// Insert writes readings in one transaction.
func (s *PostgresStore) Insert(ctx context.Context, records []telemetry.Record) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO inverter_data (date, inverter_id, total_active_power, temperature, dc_voltage,
			l1_ac_voltage, l2_ac_voltage, l3_ac_voltage, has_l1, has_l2, has_l3)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		row := rowFromRecord(r)
		if _, err := stmt.ExecContext(ctx,
			row.Date, row.InverterID, row.TotalActivePower, row.Temperature, row.DCVoltage,
			row.ACVoltage[0], row.ACVoltage[1], row.ACVoltage[2],
			row.HasLine[0], row.HasLine[1], row.HasLine[2],
		); err != nil {
			return fmt.Errorf("insert reading: %w", err)
		}
	}
	return tx.Commit()
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func nullable(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
