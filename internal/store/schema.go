package store

// ClickHouse table holding raw inverter readings. Line blocks L1..L3 are
// flattened into nullable columns.
const clickHouseInverterTable = `
CREATE TABLE IF NOT EXISTS inverter_data (
	date DateTime64(3, 'UTC'),
	inverter_id String,
	total_active_power Nullable(Float64),
	temperature Nullable(Float64),
	dc_voltage Nullable(Float64),
	l1_ac_voltage Nullable(Float64),
	l2_ac_voltage Nullable(Float64),
	l3_ac_voltage Nullable(Float64),
	has_l1 UInt8,
	has_l2 UInt8,
	has_l3 UInt8
) ENGINE = MergeTree()
ORDER BY (inverter_id, date)
`

const postgresInverterTable = `
CREATE TABLE IF NOT EXISTS inverter_data (
	date TIMESTAMPTZ NOT NULL,
	inverter_id TEXT NOT NULL,
	total_active_power DOUBLE PRECISION,
	temperature DOUBLE PRECISION,
	dc_voltage DOUBLE PRECISION,
	l1_ac_voltage DOUBLE PRECISION,
	l2_ac_voltage DOUBLE PRECISION,
	l3_ac_voltage DOUBLE PRECISION,
	has_l1 BOOLEAN NOT NULL DEFAULT FALSE,
	has_l2 BOOLEAN NOT NULL DEFAULT FALSE,
	has_l3 BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS inverter_data_inverter_date_idx ON inverter_data (inverter_id, date);
`

const selectInverterRange = `
	SELECT date, inverter_id, total_active_power, temperature, dc_voltage,
		l1_ac_voltage, l2_ac_voltage, l3_ac_voltage, has_l1, has_l2, has_l3
	FROM inverter_data
	WHERE inverter_id = %s AND date >= %s AND date <= %s
	ORDER BY date
`
