// Package bufpool provides a tiered buffer pool for envelope I/O.
//
// The fabric encodes every hop into short-lived byte slices: enveloped
// client chunks on the load balancer, framed responses and pushes on the
// application server. Pooling those slices keeps the per-message allocation
// count flat under fan-out load.
//
// Three size tiers balance reuse against resident memory:
//   - Small buffers (8 KiB): an enveloped default client chunk (4 KiB
//     payload plus header and client id) and all control messages
//   - Medium buffers (64 KiB): raised chunk sizes and screen payloads
//   - Large buffers (1 MiB): bulk frames near the top of common configs
//
// Requests above the large tier are allocated directly and never pooled, so
// an occasional oversized frame cannot pin megabytes in the pool.
//
// All operations are safe for concurrent use; the tiers are built on
// sync.Pool.
package bufpool

import (
	"sync"
)

// Default tier sizes. NewPool accepts overrides.
const (
	// DefaultSmallSize fits an enveloped default client chunk (8 KiB).
	DefaultSmallSize = 8 << 10

	// DefaultMediumSize fits raised chunk sizes and screen payloads (64 KiB).
	DefaultMediumSize = 64 << 10

	// DefaultLargeSize fits bulk frames (1 MiB). Anything larger is
	// allocated directly.
	DefaultLargeSize = 1 << 20
)

// Pool hands out byte slices from per-tier sync.Pools, picking the tier by
// requested size and falling back to direct allocation above the large tier.
type Pool struct {
	small      sync.Pool
	medium     sync.Pool
	large      sync.Pool
	smallSize  int
	mediumSize int
	largeSize  int
}

// Config overrides the tier sizes of a Pool. Zero values keep the defaults.
type Config struct {
	SmallSize  int
	MediumSize int
	LargeSize  int
}

// NewPool creates a buffer pool. A nil config selects the default tiers.
func NewPool(cfg *Config) *Pool {
	p := &Pool{
		smallSize:  DefaultSmallSize,
		mediumSize: DefaultMediumSize,
		largeSize:  DefaultLargeSize,
	}
	if cfg != nil {
		if cfg.SmallSize > 0 {
			p.smallSize = cfg.SmallSize
		}
		if cfg.MediumSize > 0 {
			p.mediumSize = cfg.MediumSize
		}
		if cfg.LargeSize > 0 {
			p.largeSize = cfg.LargeSize
		}
	}

	p.small = sync.Pool{
		New: func() any {
			buf := make([]byte, p.smallSize)
			return &buf
		},
	}
	p.medium = sync.Pool{
		New: func() any {
			buf := make([]byte, p.mediumSize)
			return &buf
		},
	}
	p.large = sync.Pool{
		New: func() any {
			buf := make([]byte, p.largeSize)
			return &buf
		},
	}

	return p
}

// Get returns a byte slice of exactly the requested length, backed by a
// pooled buffer whose capacity is the tier size. The caller must hand the
// slice back with Put once it is done; a dropped slice is only a lost reuse,
// never a leak beyond normal GC.
//
// Sizes above the large tier are allocated directly and will not be pooled.
func (p *Pool) Get(size int) []byte {
	var bufPtr *[]byte

	switch {
	case size <= p.smallSize:
		bufPtr = p.small.Get().(*[]byte)
	case size <= p.mediumSize:
		bufPtr = p.medium.Get().(*[]byte)
	case size <= p.largeSize:
		bufPtr = p.large.Get().(*[]byte)
	default:
		return make([]byte, size)
	}

	return (*bufPtr)[:size]
}

// Put returns a buffer obtained from Get to its tier. The slice must not be
// used afterwards. Buffers whose capacity matches no tier (oversized direct
// allocations, or slices resliced below their backing array) are left to the
// garbage collector.
func (p *Pool) Put(buf []byte) {
	if buf == nil {
		return
	}

	// The tier is identified by capacity: Get always returns the full
	// backing array resliced to the requested length.
	full := buf[:cap(buf)]
	switch cap(buf) {
	case p.smallSize:
		p.small.Put(&full)
	case p.mediumSize:
		p.medium.Put(&full)
	case p.largeSize:
		p.large.Put(&full)
	}
}

// globalPool serves the package-level Get and Put used by the framer and
// the load balancer's chunk reader.
var globalPool = NewPool(nil)

// Get returns a byte slice of the requested length from the global pool.
// Pair it with Put, typically via defer.
func Get(size int) []byte {
	return globalPool.Get(size)
}

// Put returns a buffer to the global pool.
func Put(buf []byte) {
	globalPool.Put(buf)
}
