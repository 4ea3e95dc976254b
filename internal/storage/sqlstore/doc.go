// Package sqlstore implements authsvc.UserStore on database/sql.
//
// Two dialects are supported: PostgreSQL through the pgx stdlib driver and
// SQLite through modernc.org/sqlite. Queries are written once with `?`
// placeholders and rebound for PostgreSQL. Schema changes are embedded goose
// migrations applied by [Open].
//
// Every state transition that must happen at most once (code consumption,
// TOTP enablement, counter advance) is a single conditional UPDATE whose
// affected-row count decides the outcome.
package sqlstore
