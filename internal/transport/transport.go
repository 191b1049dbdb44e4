// Package transport defines the point-to-point tagged transport the
// partitioner treats as a borrowed collaborator (spec §6), along with the
// phase-counter discipline that serializes collectives in time. Two
// implementations satisfy Transport: local.go (in-process, used by every
// test in this repository) and mpi.go (a real adapter over
// github.com/sbromberger/gompi for multi-process runs).
package transport

import (
	"sync/atomic"

	"github.com/pkg/errors"
)

// CoalesceThresholdBytes is the outbound-buffer size, in estimated encoded
// bytes, at which a caller batching several payloads to the same peer
// should stop accumulating and send what it has (spec §5's suspension
// point (a), "network send when an outbound buffer exceeds the
// threshold"). internal/distribute's outbox is the caller that applies it;
// Transport itself sends every payload immediately.
const CoalesceThresholdBytes = 1400

// Transport is a peer-to-peer message service. Send transmits one tagged
// payload as its own message; Recv is non-blocking and returns ok=false if
// nothing tagged t has arrived yet from any sender; Flush forces any
// implementation-buffered sends out immediately.
type Transport interface {
	Rank() int
	Size() int
	Send(dest int, tag uint64, payload []byte) error
	Recv(tag uint64) (sender int, payload []byte, ok bool, err error)
	Flush() error
	Barrier() error
	Close() error
}

// PhaseCounter is the process-wide monotonically increasing tag that
// demarcates collective operations (spec's "evilPhase"). Bumping it is
// itself collective: every participant must call Bump exactly once per
// exchange so stale messages from a previous collective are never
// mistaken for current ones.
type PhaseCounter struct {
	value uint64
}

// NewPhaseCounter starts the counter at a non-zero value, matching the
// original's convention of never using phase 0 as a real tag.
func NewPhaseCounter() *PhaseCounter {
	return &PhaseCounter{value: 1}
}

// Current returns the tag current collectives should use.
func (p *PhaseCounter) Current() uint64 {
	return atomic.LoadUint64(&p.value)
}

// Bump is the synchronizing barrier at the end of a collective: every
// rank blocks until all have arrived, then the counter advances. A rank
// that calls this out of step with its peers waits in the barrier;
// nothing here detects it (spec §7: "leftover messages after phase
// bump" is a fatal assertion elsewhere in the pipeline).
func (p *PhaseCounter) Bump(t Transport) (uint64, error) {
	if err := t.Barrier(); err != nil {
		return 0, errors.Wrap(err, "transport: phase bump barrier")
	}
	return atomic.AddUint64(&p.value, 1), nil
}
