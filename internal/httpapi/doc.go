// Package httpapi is the JSON transport over authsvc.Engine.
//
// Every route lives under a configurable prefix (default /api/auth) and
// answers with the envelope {"success": bool, "message": string, ...}.
// Engine errors are classified with authsvc.KindOf and mapped to a status per
// route; dependency and internal failures are logged and answered with a
// generic 500.
package httpapi
