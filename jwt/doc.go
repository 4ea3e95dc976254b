// Package jwt mints and verifies the service's access and refresh tokens.
//
// Both classes are HS256-signed with their own secret. Verification is
// stateless; revocation is layered on top by the session package.
package jwt
