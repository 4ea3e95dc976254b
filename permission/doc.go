// Package permission defines the closed set of user roles and the checks
// used by role-restricted routes.
//
// # Architecture boundaries
//
// This package is a pure in-memory value package with no I/O.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import authsvc, jwt, or session.
package permission
