// Package localgraph assembles a rank's local id space (spec §4.E) once
// row exchange has finished: owned masters first, then outgoing-edge
// mirrors pulled from row peers, then incoming-edge mirrors pulled from
// the rest of this rank's own grid column.
package localgraph

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/7mh/vcut/internal/exchange"
	"github.com/7mh/vcut/internal/grid"
	"github.com/7mh/vcut/internal/locator"
)

// Graph is the local id space: which global ids this rank has a local
// slot for, in what order, and the per-node edge-count prefix sum
// (inclusive: PrefixSumOfEdges[lid] counts the edges of lids 0..lid)
// that internal/distribute sizes and indexes its CSR store by.
type Graph struct {
	L2G              []uint64
	G2L              map[uint64]uint32
	PrefixSumOfEdges []uint64

	NumOwned           int
	BeginMaster        uint32
	NumNodesWithEdges  int
	DummyOutgoingNodes int
	NumEdges           uint64
}

func (g *Graph) NumNodes() int { return len(g.L2G) }

func (g *Graph) L2Gid(lid uint32) uint64 { return g.L2G[lid] }

func (g *Graph) G2Lid(gid uint64) (uint32, bool) {
	lid, ok := g.G2L[gid]
	return lid, ok
}

// Build runs the three-band allocation. ownRanges is this rank's D owned
// source ranges (one per decompose slot, in slot order), the same slice
// passed to inspect.Run.
func Build(geo *grid.Geometry, loc *locator.Locator, id int, ownRanges []locator.Range, ex *exchange.Result) (*Graph, error) {
	if len(ownRanges) != geo.D {
		return nil, errors.Errorf("localgraph: expected %d owned ranges, got %d", geo.D, len(ownRanges))
	}

	myColumn := geo.GridCol(id)

	maxNodes := ex.Witnessed.Size()
	for _, perD := range ex.OutgoingToMyColumn {
		for _, vec := range perD {
			maxNodes += uint64(len(vec))
		}
	}

	g := &Graph{
		L2G:              make([]uint64, 0, maxNodes),
		G2L:              make(map[uint64]uint32, maxNodes),
		PrefixSumOfEdges: make([]uint64, 0, maxNodes),
	}

	var numOwned int
	for _, r := range ownRanges {
		numOwned += int(r.Len())
	}
	g.NumOwned = numOwned

	push := func(gid uint64) {
		g.L2G = append(g.L2G, gid)
		g.G2L[gid] = uint32(len(g.L2G) - 1)
		g.PrefixSumOfEdges = append(g.PrefixSumOfEdges, g.NumEdges)
	}

	// Band 1: owned masters, one contiguous run per decompose slot.
	for d, r := range ownRanges {
		vec := ex.OutgoingToMyColumn[d][myColumn]
		if uint64(len(vec)) != r.Len() {
			return nil, errors.Errorf("localgraph: owned range %d has %d entries, outgoing vector has %d", d, r.Len(), len(vec))
		}
		for j, count := range vec {
			g.NumEdges += count
			push(r.Begin + uint64(j))
		}
	}

	// Band 2: outgoing-edge mirrors — every other column peer's d-th
	// source range, restricted to sources that actually have an edge
	// into this column, plus zero-count sources the row-wide witness
	// bitmap marks as a destination in this column. Under checkerboard
	// cuts such a source is counted as a dummy node; under cartesian cuts
	// it is logged as a partitioning inconsistency and still gets a node.
	for d := 0; d < geo.D; d++ {
		leaderHost := geo.GridRow(id+d*geo.P) * geo.C
		for i := 0; i < geo.C; i++ {
			hostID := leaderHost + i
			if geo.Virtual2Real(hostID) == id {
				continue
			}
			r := loc.Range(hostID)
			vec := ex.OutgoingToMyColumn[d][i]
			if uint64(len(vec)) != r.Len() {
				return nil, errors.Errorf("localgraph: peer block %d has %d entries, outgoing vector has %d", hostID, r.Len(), len(vec))
			}
			for j, count := range vec {
				src := r.Begin + uint64(j)
				createNode := false
				if count > 0 {
					createNode = true
					g.NumEdges += count
				} else {
					col, err := loc.GetColumnHostID(src)
					if err != nil {
						return nil, errors.Wrap(err, "localgraph: band 2")
					}
					if col == myColumn {
						idx, err := loc.GetColumnIndex(src)
						if err != nil {
							return nil, errors.Wrap(err, "localgraph: band 2")
						}
						if ex.Witnessed.Test(idx) {
							if geo.ColumnBlocked {
								g.DummyOutgoingNodes++
							} else {
								log.Warn().Uint64("gid", src).Msg("localgraph: partitioning resulted in an inconsistency, source should have been owned")
							}
							createNode = true
						}
					}
				}
				if createNode {
					push(src)
				}
			}
		}
	}
	g.NumNodesWithEdges = g.NumNodes()

	// Band 3: incoming-edge mirrors — walk this rank's own grid column
	// across every virtual row and pull in any destination witnessed as
	// having an incoming edge, skipping blocks this rank already owns
	// and, under checkerboard cuts, blocks already covered by band 2's
	// row-leader scan.
	for i := 0; i < geo.R; i++ {
		var hostID int
		if geo.ColumnBlocked {
			hostID = myColumn*geo.R + i
		} else {
			hostID = i*geo.C + myColumn
		}
		if geo.Virtual2Real(hostID) == id {
			continue
		}
		if geo.ColumnBlocked {
			skip := false
			for d := 0; d < geo.D; d++ {
				leaderHost := geo.GridRow(id+d*geo.P) * geo.C
				if hostID >= leaderHost && hostID < leaderHost+geo.C {
					skip = true
					break
				}
			}
			if skip {
				continue
			}
		}

		r := loc.Range(hostID)
		for dst := r.Begin; dst < r.End; dst++ {
			idx, err := loc.GetColumnIndex(dst)
			if err != nil {
				return nil, errors.Wrap(err, "localgraph: band 3")
			}
			if ex.Witnessed.Test(idx) {
				push(dst)
			}
		}
	}

	if g.NumOwned != 0 {
		lid, ok := g.G2Lid(ownRanges[0].Begin)
		if !ok {
			return nil, errors.New("localgraph: owned range start missing from local id space")
		}
		g.BeginMaster = lid
	}

	return g, nil
}
