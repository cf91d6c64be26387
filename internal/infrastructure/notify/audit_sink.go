package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/fractalvote/deliberation/internal/application/fingerprint"
	"github.com/fractalvote/deliberation/internal/domain"
)

// AuditRecord is a single tagged payload fed to an external chain
// recorder: one of INIT/IDEA/CELL/VOTE/TIER/PHASE/CHAMPION. Building the
// chain recorder itself is out of scope here — only this interface shape.
type AuditRecord struct {
	Kind           domain.AuditKind
	DeliberationID uuid.UUID
	Payload        map[string]any
	RecordedAt     time.Time
}

// AuditSink receives AuditRecords for external, tamper-evident storage.
type AuditSink interface {
	Record(ctx context.Context, rec AuditRecord) error
}

// EncodedRecord is the wire shape appended to an append-only audit log:
// a msgpack-encoded payload plus a content-hash fingerprint over it, so
// downstream consumers can verify a record wasn't altered in transit
// without needing the original payload.
type EncodedRecord struct {
	Kind           domain.AuditKind `msgpack:"kind"`
	DeliberationID string           `msgpack:"deliberationId"`
	RecordedAt     time.Time        `msgpack:"recordedAt"`
	Payload        map[string]any   `msgpack:"payload"`
	Fingerprint    string           `msgpack:"fingerprint"`
}

// Appender is the minimal contract an external chain recorder must
// satisfy: append one already-encoded record, in order.
type Appender interface {
	Append(ctx context.Context, encoded []byte) error
}

// MsgpackAuditSink encodes AuditRecords with msgpack and hands each one
// to an Appender, compact enough for high-frequency tier/cell events.
type MsgpackAuditSink struct {
	appender Appender
}

func NewMsgpackAuditSink(appender Appender) *MsgpackAuditSink {
	return &MsgpackAuditSink{appender: appender}
}

func (s *MsgpackAuditSink) Record(ctx context.Context, rec AuditRecord) error {
	recordedAt := rec.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}

	payloadBytes, err := msgpack.Marshal(rec.Payload)
	if err != nil {
		return err
	}

	encoded := EncodedRecord{
		Kind:           rec.Kind,
		DeliberationID: rec.DeliberationID.String(),
		RecordedAt:     recordedAt,
		Payload:        rec.Payload,
		Fingerprint:    fingerprint.ContentHash(payloadBytes),
	}

	out, err := msgpack.Marshal(encoded)
	if err != nil {
		return err
	}
	return s.appender.Append(ctx, out)
}
