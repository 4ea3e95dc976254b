// Package middleware exposes gin middleware that guards routes with
// authsvc.Engine access-token validation.
//
// # Handlers
//
//   - [Guard] requires a valid, unrevoked bearer access token and stores the
//     verified claims on the request.
//   - [RequireRoles] admits only callers whose role is in a fixed set. It must
//     run after Guard.
//   - [LoginRateLimit] applies the per-client login attempt budget.
//   - [ClientIP] copies the resolved client address into the request context
//     so the engine can attach it to spans and logs.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does not parse
// tokens or read Redis itself; every decision is delegated to the Engine, the
// rate limiter or the pure [permission.HasRole] check.
package middleware
