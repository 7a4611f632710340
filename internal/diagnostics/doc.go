// Package diagnostics serves a small read-mostly HTTP API on the node.
//
// Routes (all under /api/v1):
//
//	GET  /health         component health and session state
//	GET  /session        identity, buffer sizes and control topic
//	GET  /subscriptions  topics held in the dispatch table
//	GET  /stats          session counters
//	POST /reconfigure    re-announce the device identity
//	GET  /gpio/{pin}     last journalled pin state (journal driver only)
//	GET  /ota            pending journalled update requests (journal only)
//
// The server is intended for a loopback or management interface. When
// diagnostics.auth.secret is set, POST routes require an operator bearer
// token issued by "graynode token".
package diagnostics
