package ops

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/possync/internal/canonical"
)

// Entry is one queued operation.
//
// ID is the idempotency key sent to the back-office. Digest is the
// content address of (kind, payload); the back-office rejects a reused ID
// whose digest differs. Seq is assigned by the queue and orders replay.
type Entry struct {
	Seq        int64
	ID         string
	Kind       Kind
	Payload    Payload
	Digest     string
	EnqueuedAt time.Time
}

// Meta is the per-request metadata passed to remote mutations.
type Meta struct {
	ID         string
	Digest     string
	EnqueuedAt time.Time
}

// Meta returns the entry's request metadata.
func (e Entry) Meta() Meta {
	return Meta{ID: e.ID, Digest: e.Digest, EnqueuedAt: e.EnqueuedAt}
}

// NewEntry validates p and builds an unqueued entry (Seq 0).
func NewEntry(id string, p Payload, at time.Time) (Entry, error) {
	if err := Validate(p); err != nil {
		return Entry{}, err
	}
	digest, err := Digest(p)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		ID:         id,
		Kind:       p.Kind(),
		Payload:    p,
		Digest:     digest,
		EnqueuedAt: at.UTC(),
	}, nil
}

// Digest computes the content address of a payload.
func Digest(p Payload) (string, error) {
	h, err := canonical.Hash(canonical.DomainOperation, struct {
		Kind    Kind    `json:"kind"`
		Payload Payload `json:"payload"`
	}{p.Kind(), p})
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", p.Kind(), err)
	}
	return h, nil
}

// Envelope is the JSON form of an entry, used on the wire and in the queue
// table.
type Envelope struct {
	ID         string          `json:"id"`
	Kind       Kind            `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	Digest     string          `json:"digest"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// EnvelopeOf encodes a payload with its metadata.
func EnvelopeOf(meta Meta, p Payload) (Envelope, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", p.Kind(), err)
	}
	return Envelope{
		ID:         meta.ID,
		Kind:       p.Kind(),
		Payload:    raw,
		Digest:     meta.Digest,
		EnqueuedAt: meta.EnqueuedAt,
	}, nil
}

// Entry decodes the envelope and verifies its digest.
func (env Envelope) Entry() (Entry, error) {
	if env.ID == "" {
		return Entry{}, fmt.Errorf("envelope has no id")
	}
	p, err := DecodePayload(env.Kind, env.Payload)
	if err != nil {
		return Entry{}, err
	}
	if err := Validate(p); err != nil {
		return Entry{}, err
	}
	digest, err := Digest(p)
	if err != nil {
		return Entry{}, err
	}
	if env.Digest != "" && env.Digest != digest {
		return Entry{}, fmt.Errorf("operation %s: digest mismatch", env.ID)
	}
	return Entry{
		ID:         env.ID,
		Kind:       env.Kind,
		Payload:    p,
		Digest:     digest,
		EnqueuedAt: env.EnqueuedAt,
	}, nil
}

// DecodePayload decodes raw JSON into the payload type of kind.
// Unknown fields are rejected.
func DecodePayload(kind Kind, raw []byte) (Payload, error) {
	switch kind {
	case KindStartSelling:
		return decodeInto[StartSelling](kind, raw)
	case KindEndSelling:
		return decodeInto[EndSelling](kind, raw)
	case KindUpdateStockItem:
		return decodeInto[UpdateStockItem](kind, raw)
	case KindCreateTransaction:
		return decodeInto[CreateTransaction](kind, raw)
	case KindUpdateStock:
		return decodeInto[UpdateStock](kind, raw)
	case KindUpdateMenuItem:
		return decodeInto[UpdateMenuItem](kind, raw)
	case KindUpdateCategory:
		return decodeInto[UpdateCategory](kind, raw)
	case KindUpdateBranch:
		return decodeInto[UpdateBranch](kind, raw)
	case KindUpdateStore:
		return decodeInto[UpdateStore](kind, raw)
	case KindUpdateUser:
		return decodeInto[UpdateUser](kind, raw)
	default:
		return nil, fmt.Errorf("unknown operation kind %q", kind)
	}
}

func decodeInto[T Payload](kind Kind, raw []byte) (Payload, error) {
	var p T
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", kind, err)
	}
	return p, nil
}

// Ack is the back-office reply to an accepted envelope.
type Ack struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// Ack statuses.
const (
	AckApplied   = "applied"
	AckDuplicate = "duplicate"
)

// WireError is the back-office reply to a rejected request.
type WireError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}
