// Package commpred answers, for a fixed pair of real ranks, whether a
// synchronization round has anything to send or receive between them
// (spec §4.H): the predicate a downstream bulk-synchronous runtime
// consults before opening a communication channel it would otherwise
// leave idle.
package commpred

import (
	"github.com/pkg/errors"

	"github.com/7mh/vcut/internal/grid"
)

// SyncType names which half of a sync round is being planned: reducing
// mirror contributions into their master, or broadcasting a master's
// value out to its mirrors.
type SyncType int

const (
	SyncReduce SyncType = iota
	SyncBroadcast
)

// WriteLocation names where a reduce round's writes originate.
type WriteLocation int

const (
	WriteSource WriteLocation = iota
	WriteDestination
	WriteAny
)

// ReadLocation names where a broadcast round's reads originate.
type ReadLocation int

const (
	ReadSource ReadLocation = iota
	ReadDestination
	ReadAny
)

// BVFlag receives notice of which endpoint a broadcast consult leaves
// stale. A broadcast round only ever reads one side of an edge (its
// source or its destination); the other side's cached value is not
// touched by this round, and downstream synchronization code needs to
// know that before it trusts a bitvector it didn't just refresh. Marking
// that is this flag's whole job — the bitvector itself belongs to the
// synchronization runtime this package treats as a borrowed collaborator,
// so BVFlag is an interface a caller supplies rather than a concrete type
// this package owns.
type BVFlag interface {
	MakeSrcInvalid()
	MakeDstInvalid()
}

// BVStatus is the four-state lattice a bitvector's staleness can occupy:
// neither side invalid, one side invalid, or both. SimpleBVFlag is the
// smallest BVFlag that can represent it; a real synchronization runtime
// would instead mark the corresponding bits of its own live bitvector.
type BVStatus int

const (
	BothValid BVStatus = iota
	SrcInvalid
	DstInvalid
	BothInvalid
)

// SimpleBVFlag is a minimal BVFlag: it just remembers which side(s) have
// been marked invalid, idempotently folding repeated marks into
// BothInvalid rather than losing the earlier one.
type SimpleBVFlag struct {
	Status BVStatus
}

func (f *SimpleBVFlag) MakeSrcInvalid() {
	if f.Status == DstInvalid || f.Status == BothInvalid {
		f.Status = BothInvalid
	} else {
		f.Status = SrcInvalid
	}
}

func (f *SimpleBVFlag) MakeDstInvalid() {
	if f.Status == SrcInvalid || f.Status == BothInvalid {
		f.Status = BothInvalid
	} else {
		f.Status = DstInvalid
	}
}

// IsNotCommunicationPartner reports whether id and host can skip a
// round entirely on grid-locality grounds alone, ignoring whether either
// side actually holds any shared nodes for the other. transposed swaps
// the row/column roles: a transposed graph's edges run the opposite way
// through the grid, so source-writes/reads become column-aligned instead
// of row-aligned and vice versa. flag may be nil; when non-nil and
// syncType is SyncBroadcast, the endpoint this consult does not read is
// marked invalid on it.
func IsNotCommunicationPartner(geo *grid.Geometry, id, host int, transposed bool, syncType SyncType, writeLoc WriteLocation, readLoc ReadLocation, flag BVFlag) (bool, error) {
	sameRow := geo.GridRow(id) == geo.GridRow(host)
	sameCol := geo.GridCol(id) == geo.GridCol(host)

	// writeSource/readSource align with rows in the untransposed layout
	// and columns once transposed; writeDestination/readDestination is
	// the mirror image. writeAny/readAny require id and host to share a
	// row or a column (an error otherwise), and then always report a
	// partnership.
	rowAligned := sameRow
	colAligned := sameCol
	if transposed {
		rowAligned, colAligned = colAligned, rowAligned
	}

	switch syncType {
	case SyncReduce:
		switch writeLoc {
		case WriteSource:
			return !rowAligned, nil
		case WriteDestination:
			return !colAligned, nil
		case WriteAny:
			if !(sameRow || sameCol) {
				return false, errors.New("commpred: writeAny requires id and host to share a row or column")
			}
			return !rowAligned && !colAligned, nil
		default:
			return false, errors.Errorf("commpred: unknown write location %d", writeLoc)
		}
	case SyncBroadcast:
		switch readLoc {
		case ReadSource:
			// Untransposed: reading the source leaves the destination
			// stale. Transposed swaps which physical side that is.
			if flag != nil {
				if transposed {
					flag.MakeSrcInvalid()
				} else {
					flag.MakeDstInvalid()
				}
			}
			return !rowAligned, nil
		case ReadDestination:
			if flag != nil {
				if transposed {
					flag.MakeDstInvalid()
				} else {
					flag.MakeSrcInvalid()
				}
			}
			return !colAligned, nil
		case ReadAny:
			if !(sameRow || sameCol) {
				return false, errors.New("commpred: readAny requires id and host to share a row or column")
			}
			return !rowAligned && !colAligned, nil
		default:
			return false, errors.Errorf("commpred: unknown read location %d", readLoc)
		}
	default:
		return false, errors.Errorf("commpred: unknown sync type %d", syncType)
	}
}

// NothingToSend reports whether id has nothing to send to host for the
// given round. sharedCount is len(mirrorNodes[host]) for a reduce round
// (id sends its mirror contributions) or len(masterNodes[host]) for a
// broadcast round (id sends its masters' values). flag may be nil; see
// IsNotCommunicationPartner.
func NothingToSend(geo *grid.Geometry, id, host int, transposed bool, syncType SyncType, writeLoc WriteLocation, readLoc ReadLocation, sharedCount int, flag BVFlag) (bool, error) {
	return nothingTo(geo, id, host, transposed, syncType, writeLoc, readLoc, sharedCount, flag)
}

// NothingToRecv reports whether id has nothing to receive from host for
// the given round. sharedCount is len(masterNodes[host]) for a reduce
// round (id receives contributions toward its masters) or
// len(mirrorNodes[host]) for a broadcast round (id receives updates for
// its mirrors). flag may be nil; see IsNotCommunicationPartner.
func NothingToRecv(geo *grid.Geometry, id, host int, transposed bool, syncType SyncType, writeLoc WriteLocation, readLoc ReadLocation, sharedCount int, flag BVFlag) (bool, error) {
	return nothingTo(geo, id, host, transposed, syncType, writeLoc, readLoc, sharedCount, flag)
}

func nothingTo(geo *grid.Geometry, id, host int, transposed bool, syncType SyncType, writeLoc WriteLocation, readLoc ReadLocation, sharedCount int, flag BVFlag) (bool, error) {
	if sharedCount == 0 {
		return true, nil
	}
	if geo.ColumnBlocked {
		// Checkerboard cuts route blocks by contiguous column stripes
		// rather than round-robin, so grid row/column position no longer
		// predicts which real hosts share nodes; only the shared-node
		// count is a reliable signal.
		return false, nil
	}
	return IsNotCommunicationPartner(geo, id, host, transposed, syncType, writeLoc, readLoc, flag)
}
