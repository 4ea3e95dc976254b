// Package federation implements the external identity providers behind the
// /google routes.
//
// A login starts with [Google.AuthCodeURL], which mints a random state and a
// PKCE verifier and parks the verifier in Redis under the state for a short
// TTL. The callback hands code and state to [Google.Exchange], which consumes
// the state exactly once, redeems the code with the verifier and fetches the
// OpenID userinfo document. The result is an [authsvc.Identity] for
// [authsvc.Engine.FederatedLogin].
//
//	Key layout: <prefix>:oauth:<state> -> PKCE verifier
package federation
