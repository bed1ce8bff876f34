// This file defines the durable projection of relayed envelopes.
// Messages are immutable once written; the relay only ever appends.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message is the durable record of one relayed envelope, with a
// server-assigned id and timestamp. The blob stays opaque ciphertext.
type Message struct {
	ID        uuid.UUID
	SenderID  int64
	Target    TargetKind
	TargetID  int64
	Blob      string
	Nonce     string
	Algorithm string
	IsFile    bool
	CreatedAt time.Time
}
