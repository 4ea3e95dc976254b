// Package session persists refresh-token grants and the access-token
// blacklist in Redis.
//
// # Key layout
//
//	<prefix>:rt:<sha256(refresh token)>  encoded Grant, PX = refresh lifetime
//	<prefix>:ru:<userID>                 set of grant digests for bulk revocation
//	<prefix>:bl:<sha256(access token)>   blacklist marker, PX = token's remaining lifetime
//
// Raw tokens are never written to Redis. Blacklist entries expire on their own;
// nothing in this package sweeps them.
//
// # Atomicity
//
// Rotation, single-grant deletion and bulk deletion each run as one Lua
// script, so two concurrent rotations of the same token cannot both succeed.
//
// # Architecture boundaries
//
// This package does not parse JWTs or make authentication decisions. It does
// not import authsvc, jwt or permission.
package session
