// Package id issues ULIDs for orders, fills and audit events. The
// millisecond timestamp prefix means IDs sort in creation order, so
// journal rows keyed by ID stay time-ordered without a secondary
// index.
package id

import (
	crand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var gen = newGenerator()

type generator struct {
	mu      sync.Mutex
	entropy io.Reader
}

func newGenerator() *generator {
	var b [8]byte
	if _, err := io.ReadFull(crand.Reader, b[:]); err != nil {
		binary.LittleEndian.PutUint64(b[:], uint64(time.Now().UnixNano()))
	}
	src := rand.NewSource(int64(binary.LittleEndian.Uint64(b[:])))
	return &generator{entropy: ulid.Monotonic(rand.New(src), 0)}
}

// New returns a fresh ULID string. IDs issued within the same
// millisecond are still strictly increasing.
func New() string {
	gen.mu.Lock()
	defer gen.mu.Unlock()
	return ulid.MustNew(ulid.Now(), gen.entropy).String()
}
