// Package partitioner wires the grid/locator/inspect/exchange/localgraph/
// distribute/mirror/commpred components behind a single construction
// entry point and exposes the resulting per-process state as read-only
// queries — the same "construct once, query forever" shape the teacher's
// CreateCUBE plus its slave-side finalization step gives CUBE, minus the
// downstream Push/Pull collective compute that is out of scope here.
package partitioner

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/7mh/vcut/internal/commpred"
	"github.com/7mh/vcut/internal/distribute"
	"github.com/7mh/vcut/internal/exchange"
	"github.com/7mh/vcut/internal/grid"
	"github.com/7mh/vcut/internal/inspect"
	"github.com/7mh/vcut/internal/localgraph"
	"github.com/7mh/vcut/internal/locator"
	"github.com/7mh/vcut/internal/mirror"
	"github.com/7mh/vcut/internal/transport"
)

// Partitioner is the fixed, read-only per-process state produced by one
// call to Build: the local id space, the local CSR, and the two mirror
// bookkeeping tables invariant #2 and #5 of spec.md are checked against.
type Partitioner[T any] struct {
	Geo        *grid.Geometry
	Loc        *locator.Locator
	ID         int
	Transposed bool
	OwnRanges  []locator.Range

	Graph *localgraph.Graph
	CSR   *distribute.CSR[T]

	// MirrorNodes[h] is the ascending-gid list of vertices this rank
	// mirrors that h masters; MasterNodes[h] is the reverse — vertices
	// this rank masters that h mirrors.
	MirrorNodes map[int][]uint64
	MasterNodes map[int][]uint64

	log zerolog.Logger
}

// Build runs the full two-pass ingest and communication-setup pipeline
// described by spec.md §4: inspection, row exchange, local-id assembly,
// edge distribution, mirror enumeration, and the master-node exchange
// that lets commpred answer symmetric send/recv queries. Every rank must
// call Build concurrently with the others over a shared Transport.
// countSrc need only enumerate destinations (inspect.EdgeSource);
// dataSrc must also produce edge data (distribute.EdgeSource[T]). A
// single FileSource[T] satisfies dataSrc directly and countSrc via its
// CountOnly view, since Go cannot let one type answer to two OutEdges
// signatures at once.
func Build[T any](geo *grid.Geometry, loc *locator.Locator, id int, ownRanges []locator.Range, countSrc inspect.EdgeSource, dataSrc distribute.EdgeSource[T], t transport.Transport, transposed bool, log zerolog.Logger) (*Partitioner[T], error) {
	rankLog := log.With().Int("rank", id).Logger()
	phase := transport.NewPhaseCounter()

	rankLog.Debug().Msg("partitioner: inspection pass")
	insp, err := inspect.Run(geo, loc, ownRanges, countSrc)
	if err != nil {
		return nil, errors.Wrap(err, "partitioner: inspection pass")
	}

	rankLog.Debug().Msg("partitioner: row exchange")
	ex, err := exchange.Run(geo, id, loc, insp, t, phase)
	if err != nil {
		return nil, errors.Wrap(err, "partitioner: row exchange")
	}

	rankLog.Debug().Msg("partitioner: local id assembly")
	lg, err := localgraph.Build(geo, loc, id, ownRanges, ex)
	if err != nil {
		return nil, errors.Wrap(err, "partitioner: local id assembly")
	}

	rankLog.Debug().Msg("partitioner: edge distribution pass")
	csr, err := distribute.Run[T](geo, loc, id, ownRanges, lg, dataSrc, t, phase)
	if err != nil {
		return nil, errors.Wrap(err, "partitioner: edge distribution pass")
	}

	rankLog.Debug().Msg("partitioner: mirror set")
	mirrorNodes, err := mirror.Build(geo, loc, id, lg)
	if err != nil {
		return nil, errors.Wrap(err, "partitioner: mirror set")
	}

	rankLog.Debug().Msg("partitioner: master node exchange")
	masterNodes, err := exchangeMasterNodes(t, phase, id, geo.P, mirrorNodes)
	if err != nil {
		return nil, errors.Wrap(err, "partitioner: master node exchange")
	}

	rankLog.Info().
		Int("numOwned", lg.NumOwned).
		Int("numNodes", lg.NumNodes()).
		Uint64("numEdges", lg.NumEdges).
		Int("dummyOutgoingNodes", lg.DummyOutgoingNodes).
		Msg("partitioner: construction complete")

	return &Partitioner[T]{
		Geo:         geo,
		Loc:         loc,
		ID:          id,
		Transposed:  transposed,
		OwnRanges:   ownRanges,
		Graph:       lg,
		CSR:         csr,
		MirrorNodes: mirrorNodes,
		MasterNodes: masterNodes,
		log:         rankLog,
	}, nil
}

func (p *Partitioner[T]) NumOwned() int           { return p.Graph.NumOwned }
func (p *Partitioner[T]) NumNodes() int           { return p.Graph.NumNodes() }
func (p *Partitioner[T]) NumEdges() uint64        { return p.Graph.NumEdges }
func (p *Partitioner[T]) BeginMaster() uint32     { return p.Graph.BeginMaster }
func (p *Partitioner[T]) DummyOutgoingNodes() int { return p.Graph.DummyOutgoingNodes }
func (p *Partitioner[T]) IsVertexCut() bool       { return p.Geo.IsVertexCut() }
func (p *Partitioner[T]) L2G(lid uint32) uint64   { return p.Graph.L2Gid(lid) }

func (p *Partitioner[T]) G2L(gid uint64) (uint32, bool) { return p.Graph.G2Lid(gid) }

// IsLocal reports whether gid has a local slot on this rank, mastered or
// mirrored.
func (p *Partitioner[T]) IsLocal(gid uint64) bool {
	_, ok := p.Graph.G2Lid(gid)
	return ok
}

// GetMirrorRanges returns the local-id sub-ranges that hold mirrors:
// everything before beginMaster and everything from endMaster onward,
// since band 1 packs all masters into one contiguous run.
func (p *Partitioner[T]) GetMirrorRanges() []locator.Range {
	begin := uint64(p.Graph.BeginMaster)
	end := begin + uint64(p.Graph.NumOwned)
	n := uint64(p.Graph.NumNodes())

	var ranges []locator.Range
	if begin > 0 {
		ranges = append(ranges, locator.Range{Begin: 0, End: begin})
	}
	if end < n {
		ranges = append(ranges, locator.Range{Begin: end, End: n})
	}
	return ranges
}

// ResetBitsetRange reports which local-id sub-range a downstream sync
// bitset should clear ahead of a round of the given type: reduce clears
// masters (the accumulation targets), broadcast clears mirrors (the
// values about to be overwritten).
func (p *Partitioner[T]) ResetBitsetRange(syncType commpred.SyncType) []locator.Range {
	begin := uint64(p.Graph.BeginMaster)
	end := begin + uint64(p.Graph.NumOwned)
	if syncType == commpred.SyncReduce {
		return []locator.Range{{Begin: begin, End: end}}
	}
	return p.GetMirrorRanges()
}

// NothingToSend answers spec.md §4.H for this rank sending to host. flag
// may be nil; when non-nil and syncType is SyncBroadcast, the endpoint
// this consult doesn't read is marked invalid on it, the way a
// downstream synchronization runtime tracks which side of its bitvector
// this round left stale.
func (p *Partitioner[T]) NothingToSend(host int, syncType commpred.SyncType, writeLoc commpred.WriteLocation, readLoc commpred.ReadLocation, flag commpred.BVFlag) (bool, error) {
	shared := p.MirrorNodes[host]
	if syncType == commpred.SyncBroadcast {
		shared = p.masterNodesFor(host)
	}
	return commpred.NothingToSend(p.Geo, p.ID, host, p.Transposed, syncType, writeLoc, readLoc, len(shared), flag)
}

// NothingToRecv answers spec.md §4.H for this rank receiving from host.
// flag may be nil; see NothingToSend.
func (p *Partitioner[T]) NothingToRecv(host int, syncType commpred.SyncType, writeLoc commpred.WriteLocation, readLoc commpred.ReadLocation, flag commpred.BVFlag) (bool, error) {
	shared := p.masterNodesFor(host)
	if syncType == commpred.SyncBroadcast {
		shared = p.MirrorNodes[host]
	}
	return commpred.NothingToRecv(p.Geo, p.ID, host, p.Transposed, syncType, writeLoc, readLoc, len(shared), flag)
}

func (p *Partitioner[T]) masterNodesFor(host int) []uint64 { return p.MasterNodes[host] }
