// Package domain contains core concepts of the relay.
// An Envelope carries routing metadata and an opaque ciphertext payload;
// the relay routes and stores blobs without ever holding a decryption key.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"secure-chat/errors"
)

type TargetKind string

const (
	TargetUser  TargetKind = "user"
	TargetGroup TargetKind = "group"
)

type ContentKind string

const (
	ContentText ContentKind = "text"
	ContentFile ContentKind = "file"
)

// Algorithm tags are informational, recorded as agreed with clients.
const (
	AlgorithmChaCha20 = "ChaCha20"
	AlgorithmAES      = "AES"
)

// Envelope is the decoded form of one inbound frame.
// SenderID always comes from the authenticated connection, never from the frame.
type Envelope struct {
	SenderID  int64
	Target    TargetKind
	TargetID  int64
	Content   ContentKind
	Blob      string
	Nonce     string
	Algorithm string
}

// Valid reports whether the envelope carries a routable target.
func (e Envelope) Valid() bool {
	if e.Target != TargetUser && e.Target != TargetGroup {
		return false
	}
	return e.TargetID > 0
}

// wireFrame mirrors the client JSON schema. Unknown extra fields are ignored
// so the relay keeps routing frames whose schema it only partially understands.
type wireFrame struct {
	Target           string      `json:"target"`
	TargetID         flexID      `json:"target_id"`
	Type             string      `json:"type"`
	Data             *cipherData `json:"data"`
	EncryptedContent string      `json:"encryptedContent"`
	IV               flexScalar  `json:"iv"`
}

type cipherData struct {
	Cipher string `json:"cipher"`
	Nonce  string `json:"nonce"`
}

// flexID accepts both 42 and "42" on the wire. Anything unparsable decodes
// to zero, which the target id validation then rejects.
type flexID int64

func (f *flexID) UnmarshalJSON(data []byte) error {
	s := string(bytes.Trim(data, `"`))
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexID(n)
	return nil
}

// flexScalar keeps whatever scalar the client sent in its textual form.
// File IVs have been observed as both strings and raw numbers.
type flexScalar string

func (f *flexScalar) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexScalar(s)
		return nil
	}
	if string(data) == "null" {
		*f = ""
		return nil
	}
	*f = flexScalar(data)
	return nil
}

// DecodeEnvelope parses one inbound text frame into a tagged variant:
// a text envelope ({data:{cipher,nonce}}, ChaCha20) or a file envelope
// ({encryptedContent,iv}, AES). A decode error means the frame must be
// dropped; it never justifies closing the sender's connection.
func DecodeEnvelope(senderID int64, frame []byte) (Envelope, error) {
	var wire wireFrame
	if err := json.Unmarshal(frame, &wire); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", errors.ErrMalformedFrame, err)
	}

	target := TargetKind(wire.Target)
	if target != TargetUser && target != TargetGroup {
		return Envelope{}, fmt.Errorf("%w: %q", errors.ErrUnknownTarget, wire.Target)
	}
	if wire.TargetID <= 0 {
		return Envelope{}, fmt.Errorf("%w: %d", errors.ErrInvalidTargetID, wire.TargetID)
	}

	content := ContentKind(wire.Type)
	if content == "" {
		content = ContentText
	}

	switch content {
	case ContentText:
		return textEnvelope(senderID, target, int64(wire.TargetID), wire.Data), nil
	case ContentFile:
		return fileEnvelope(senderID, target, int64(wire.TargetID), wire.EncryptedContent, string(wire.IV)), nil
	default:
		return Envelope{}, fmt.Errorf("%w: content kind %q", errors.ErrMalformedFrame, wire.Type)
	}
}

func textEnvelope(senderID int64, target TargetKind, targetID int64, data *cipherData) Envelope {
	e := Envelope{
		SenderID:  senderID,
		Target:    target,
		TargetID:  targetID,
		Content:   ContentText,
		Algorithm: AlgorithmChaCha20,
	}
	if data != nil {
		e.Blob = data.Cipher
		e.Nonce = data.Nonce
	}
	return e
}

func fileEnvelope(senderID int64, target TargetKind, targetID int64, encryptedContent, iv string) Envelope {
	return Envelope{
		SenderID:  senderID,
		Target:    target,
		TargetID:  targetID,
		Content:   ContentFile,
		Blob:      encryptedContent,
		Nonce:     iv,
		Algorithm: AlgorithmAES,
	}
}
