package shared

import (
	"encoding/base32"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var suffixEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NumberGenerator issues human-readable document numbers such as
// BILL-20250101093000-0042-K3F9Q. Numbers from one generator never repeat;
// across processes the random suffix makes collisions unlikely and the
// database unique index rejects the rest.
type NumberGenerator struct {
	prefix string
	seq    atomic.Uint64
	clock  func() time.Time
}

// NewNumberGenerator constructs a generator for the given prefix.
func NewNumberGenerator(prefix string) *NumberGenerator {
	return &NumberGenerator{prefix: prefix, clock: time.Now}
}

// Next returns a fresh document number.
func (g *NumberGenerator) Next() string {
	n := g.seq.Add(1) % 10000
	id := uuid.New()
	suffix := suffixEncoding.EncodeToString(id[:4])[:5]
	return fmt.Sprintf("%s-%s-%04d-%s", g.prefix, g.clock().UTC().Format("20060102150405"), n, suffix)
}
