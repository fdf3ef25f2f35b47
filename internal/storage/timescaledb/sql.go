package timescaledb

const createTableSQL = `
CREATE TABLE IF NOT EXISTS predictions (
    time timestamp WITH TIME ZONE NOT NULL,
    run_id text NOT NULL,
    pipeline text NOT NULL,
    date date NOT NULL,
    latitude float8 NOT NULL,
    longitude float8 NOT NULL,
    altitude float8 NOT NULL,
    timezone text NOT NULL,
    cloud_type float4 NOT NULL,
    rh_percent float4 NOT NULL,
    temperature_c float4 NOT NULL,
    interval_minutes float4 NOT NULL,
    solar_energy_kwh_m2 float8 NOT NULL,
    predicted_liters_per_day float8 NOT NULL,
    coefficient_set text NOT NULL,
    sunrise timestamp WITH TIME ZONE NULL,
    sunset timestamp WITH TIME ZONE NULL,
    untrustworthy boolean NOT NULL DEFAULT false,
    model_path text NULL
);`

const createExtensionSQL = `CREATE EXTENSION IF NOT EXISTS timescaledb CASCADE;`

const createHypertableSQL = `SELECT create_hypertable('predictions', 'time', if_not_exists => true);`

const createRunIDIndexSQL = `CREATE INDEX IF NOT EXISTS predictions_run_id_idx ON predictions (run_id, time DESC);`

const createDailyViewSQL = `
CREATE MATERIALIZED VIEW IF NOT EXISTS predictions_1d
WITH (timescaledb.continuous) AS
SELECT
    time_bucket('1 day', time) AS bucket,
    pipeline,
    coefficient_set,
    count(*) AS runs,
    avg(solar_energy_kwh_m2) AS solar_energy_kwh_m2,
    avg(predicted_liters_per_day) AS predicted_liters_per_day,
    min(predicted_liters_per_day) AS min_predicted_liters_per_day,
    max(predicted_liters_per_day) AS max_predicted_liters_per_day
FROM predictions
GROUP BY bucket, pipeline, coefficient_set
WITH NO DATA;`

const addDailyAggregationPolicySQL = `
SELECT add_continuous_aggregate_policy('predictions_1d',
    start_offset => INTERVAL '7 days',
    end_offset => INTERVAL '1 hour',
    schedule_interval => INTERVAL '1 hour',
    if_not_exists => true);`

// schemaSteps are run in order when the backend starts
var schemaSteps = []struct {
	description string
	sql         string
}{
	{"creating predictions table", createTableSQL},
	{"creating TimescaleDB extension", createExtensionSQL},
	{"creating hypertable", createHypertableSQL},
	{"creating run ID index", createRunIDIndexSQL},
	{"creating 1d view", createDailyViewSQL},
	{"adding 1d aggregation policy", addDailyAggregationPolicySQL},
}
