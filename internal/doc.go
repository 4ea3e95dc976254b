// Package internal contains helper utilities that are private to authsvc:
// one-time code generation and hashing, TOTP secrets and OAuth state values.
//
// # Sub-packages
//
//   - config: YAML and environment configuration
//   - federation: OAuth 2.0 identity providers and state storage
//   - flows: refresh and logout flow orchestration
//   - httpapi: gin routes and JSON envelopes
//   - logging: slog setup per environment
//   - mailer: outbound email collaborators
//   - rate: Redis fixed-window limiter
//   - storage/sqlstore: SQL user store and migrations
//   - telemetry: OpenTelemetry tracing setup
package internal
