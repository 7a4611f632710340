// Package auth issues and validates operator tokens for the node's
// diagnostics server.
//
// Tokens are HS256-signed JWTs carrying a subject and a scope. Validation
// checks the signature, expiry, and required fields only; there is no
// database of issued tokens on a node.
package auth
