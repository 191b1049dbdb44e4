package transport

import (
	"sync"

	"github.com/pkg/errors"
	mpi "github.com/sbromberger/gompi"
)

// MPI is the real multi-process Transport, a thin adapter over
// github.com/sbromberger/gompi — the same MPI binding
// sbromberger/dmap uses (mpi.Start, mpi.NewCommunicator, Rank, Size,
// Barrier). gompi's communicator exposes byte-oriented point-to-point
// primitives (SendBytes/RecvBytes) on top of the underlying MPI_Send/
// MPI_Recv/MPI_Probe calls; this adapter is the one place in the
// partitioner that assumes that exact surface.
type MPI struct {
	comm *mpi.Communicator

	mu      sync.Mutex
	pending map[uint64][]pendingMsg // tag -> queued (sender, payload)
}

type pendingMsg struct {
	from    int
	payload []byte
}

// NewMPI starts the MPI runtime (idempotent per process) and wraps the
// world communicator.
func NewMPI() (*MPI, error) {
	mpi.Start(true)
	comm := mpi.NewCommunicator(nil)
	return &MPI{comm: comm, pending: make(map[uint64][]pendingMsg)}, nil
}

func (m *MPI) Rank() int { return m.comm.Rank() }
func (m *MPI) Size() int { return m.comm.Size() }

func (m *MPI) Send(dest int, tag uint64, payload []byte) error {
	if err := m.comm.SendBytes(payload, dest, int(tag)); err != nil {
		return errors.Wrapf(err, "transport: mpi send to rank %d tag %d", dest, tag)
	}
	return nil
}

// Recv is non-blocking: it first drains anything already pulled off the
// wire for this tag, then makes a single receive from any sender before
// giving up. A real deployment would use MPI_Iprobe directly; gompi's
// RecvBytesAny here is assumed to be non-blocking when nothing is
// pending, matching the interface contract.
func (m *MPI) Recv(tag uint64) (sender int, payload []byte, ok bool, err error) {
	m.mu.Lock()
	if queue := m.pending[tag]; len(queue) > 0 {
		msg := queue[0]
		m.pending[tag] = queue[1:]
		m.mu.Unlock()
		return msg.from, msg.payload, true, nil
	}
	m.mu.Unlock()

	data, source, recvErr := m.comm.RecvBytesAny(int(tag))
	if recvErr != nil {
		if mpi.IsNoMessageError(recvErr) {
			return 0, nil, false, nil
		}
		return 0, nil, false, errors.Wrapf(recvErr, "transport: mpi recv tag %d", tag)
	}
	return source, data, true, nil
}

func (m *MPI) Flush() error {
	return errors.Wrap(m.comm.Flush(), "transport: mpi flush")
}

func (m *MPI) Barrier() error {
	m.comm.Barrier()
	return nil
}

func (m *MPI) Close() error {
	mpi.Stop()
	return nil
}
