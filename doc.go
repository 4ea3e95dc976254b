// Package authsvc implements the token and session lifecycle of the auth
// service: registration with email verification, login with an optional TOTP
// second factor, rotating refresh tokens, logout by access-token blacklist,
// password change and reset by one-time code, and federated login.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authsvc is the public surface. It exposes [Engine], [Builder], [Config], the
// [UserStore] and [Mailer] ports, and value types ([TokenPair], [UserView],
// [AccessClaims]). Flow orchestration, grant encoding and rate limiting live
// in sub-packages and are never exported through Engine.
//
// # What this package must NOT do
//
//   - Expose Redis clients, SQL handles or encoding details in its public API.
//   - Import a sub-package that re-imports authsvc (no import cycles). The SQL
//     store imports this package, never the reverse.
//   - Serialise password hashes, TOTP secrets or plaintext one-time codes.
//
// # Error contract
//
// Every error returned by an Engine method is classified by [KindOf]. Transport
// layers map the kind to a status and must not inspect error strings.
package authsvc
