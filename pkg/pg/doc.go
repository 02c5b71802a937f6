// Package pg wires the pgx/v5 connection pool and goose migrations
// behind a small API: Config populated from environment variables,
// Connect with retry, Migrate running embedded SQL migrations before
// the service starts serving, and error helpers for classifying
// constraint violations in business logic.
package pg
