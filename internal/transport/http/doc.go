// Package http implements the read-only status API of the panel builder.
//
// Handlers stay thin: they read the latest run from a RunService and render
// it as JSON, turning every failure into an RFC 7807 problem through the
// shared error handler.
//
//	GET /healthz                 liveness and version
//	GET /api/v1/run              manifest of the latest completed run
//	GET /api/v1/run/selection    selection ledger of the latest run
//	GET /api/v1/run/stages       stage executions, in execution order
//
// Before any run has been recorded the run endpoints answer 404 with type
// /errors/run/not-found. A failed run answers 422 with the failure detail.
package http
