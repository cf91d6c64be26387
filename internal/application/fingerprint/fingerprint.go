// Package fingerprint provides deterministic, sortable identifiers and
// content hashes used for audit linkage. None of this is a security
// primitive — the hash is truncated SHA-256 used purely for dedup and
// cross-referencing audit records, not for authentication.
package fingerprint

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/tmthrgd/go-hex"
)

// HashLength is the number of hex characters kept from the SHA-256 digest.
const HashLength = 16

// ContentHash returns a 16-character hex-truncated SHA-256 digest of data,
// used to tag cells/batches for external audit linkage.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:HashLength]
}

// Generator produces monotonic, sortable string IDs derived from wall
// clock time plus an in-process counter, in the spirit of a Snowflake ID:
// a millisecond timestamp, a per-generator worker tag, and a rolling
// sequence number that resets each millisecond.
type Generator struct {
	mu        sync.Mutex
	worker    uint16
	lastMilli int64
	seq       uint16
}

// NewGenerator creates a Generator tagged with a worker ID (e.g. a
// scheduler shard index), keeping IDs distinguishable across processes.
func NewGenerator(worker uint16) *Generator {
	return &Generator{worker: worker}
}

// Next returns the next monotonic ID as "<millis>-<worker>-<seq>".
func (g *Generator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now().UnixMilli()
	if now == g.lastMilli {
		g.seq++
	} else {
		g.lastMilli = now
		g.seq = 0
	}
	return fmt.Sprintf("%d-%04x-%04x", now, g.worker, g.seq)
}

// CellTag derives a short audit tag for a (deliberationID, tier, batch)
// triple, used to label cells/batches in audit records without leaking
// full UUIDs.
func CellTag(deliberationID string, tier, batch int) string {
	return ContentHash([]byte(fmt.Sprintf("%s:%d:%d", deliberationID, tier, batch)))
}
