// Package postgres provides the PostgreSQL connection pool and the
// website/page/metric/error repositories used by the processing
// pipeline and the query service.
package postgres
