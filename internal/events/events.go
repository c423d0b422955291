// Package events fans PostCreated notifications out of the ledger to
// external sinks: WebSocket subscribers, Kafka and Redis.
//
// Every sink that does network I/O sits behind a Queue so that CreatePost
// never waits on it.
package events

import (
	"encoding/json"

	"github.com/jmerrifield20/postledger/internal/postledger"
)

// TypePostCreated is the envelope type of a creation notification.
const TypePostCreated = "post.created"

// Envelope is the wire form of a notification, shared by every sink.
type Envelope struct {
	Type string                 `json:"type"`
	Data postledger.PostCreated `json:"data"`
}

// Encode returns the JSON envelope for ev.
func Encode(ev postledger.PostCreated) ([]byte, error) {
	return json.Marshal(Envelope{Type: TypePostCreated, Data: ev})
}
