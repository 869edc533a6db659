// Package metrics implements the read side of the pipeline: percentile
// summaries, time series, page rankings, and dimensional breakdowns
// over the raw samples written by the workers, plus the daily rollup
// job that condenses raw samples into per-page percentile rows.
//
// Aggregate reads go through the read-through cache; per-page and
// per-session detail reads hit Postgres directly.
package metrics
