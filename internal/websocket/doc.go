// Package websocket streams run and stage events to connected clients.
//
// Every event is a JSON object {"type", "data", "timestamp"} where type is
// "run" or "stage". Clients are listen-only.
package websocket

import "errors"

var errNotUpgrade = errors.New("websocket upgrade required")
