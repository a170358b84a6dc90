// Package api implements the HTTP server for the question-answering
// service.
//
// One business endpoint, POST /generate, runs the retrieval workflow and
// returns the raw answer text. Health probes live outside the middleware
// stack so container orchestrators are never rate limited or logged per
// request.
package api
