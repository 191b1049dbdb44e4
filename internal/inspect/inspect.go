// Package inspect implements the first pass over the graph file (spec
// §4.C): for each of this rank's D owned source ranges, count outgoing
// edges per column peer and mark which column-indexed destinations have
// at least one incoming edge.
package inspect

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/7mh/vcut/internal/bitset"
	"github.com/7mh/vcut/internal/grid"
	"github.com/7mh/vcut/internal/locator"
	"github.com/7mh/vcut/internal/parallel"
)

// EdgeSource abstracts the offline+buffered reader pair down to what the
// inspection pass needs: enumerate the destinations of one source
// vertex's out-edges. Concrete graph-file access lives in
// internal/graphio and is wired in by internal/partitioner.
type EdgeSource interface {
	// OutEdges returns the destination gids of src's out-edges. src must
	// lie in the d-th owned source range this EdgeSource was built for.
	OutEdges(d int, src uint64) ([]uint64, error)
}

// Result is the per-rank inspection output: for each d and column peer,
// a dense per-source-vertex out-degree vector, and per column peer a
// bitset over that column's dense index space marking witnessed
// destinations.
type Result struct {
	// OutgoingEdges[d][col][src-rangeBegin] is the count of edges from
	// src, in owned range d, to column peer col.
	OutgoingEdges [][][]uint64
	// HasIncomingEdge[col] is sized to locator.ColumnBlockSpan(col).
	HasIncomingEdge []*bitset.Bitset
}

// Run executes the inspection pass over sourceRanges (this rank's D
// owned ranges) using loc/geo for placement decisions and edges for edge
// enumeration.
//
// Failure model per spec §4.C: read-only against the file, purely
// additive against accumulators; parallel workers race only on disjoint
// output slots (per-(d,col,src) counters) and a thread-safe bitset with
// atomic bit-set. Any I/O fault fails the whole pass.
func Run(geo *grid.Geometry, loc *locator.Locator, sourceRanges []locator.Range, edges EdgeSource) (*Result, error) {
	if len(sourceRanges) != geo.D {
		return nil, errors.Errorf("inspect: expected %d owned ranges, got %d", geo.D, len(sourceRanges))
	}

	hasIncomingEdge := make([]*bitset.Bitset, geo.C)
	for col := 0; col < geo.C; col++ {
		hasIncomingEdge[col] = bitset.New(loc.ColumnBlockSpan(col))
	}

	outgoingEdges := make([][][]uint64, geo.D)
	for d, r := range sourceRanges {
		outgoingEdges[d] = make([][]uint64, geo.C)
		for col := range outgoingEdges[d] {
			outgoingEdges[d][col] = make([]uint64, r.Len())
		}
	}

	for d, r := range sourceRanges {
		d, r := d, r
		n := int(r.Len())
		var mu sync.Mutex
		var firstErr error
		recordErr := func(err error) {
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
		}
		parallel.Range(n, func(offset int) {
			src := r.Begin + uint64(offset)
			dsts, err := edges.OutEdges(d, src)
			if err != nil {
				recordErr(err)
				return
			}
			for _, dst := range dsts {
				col, err := loc.GetColumnHostID(dst)
				if err != nil {
					recordErr(err)
					return
				}
				outgoingEdges[d][col][offset]++

				idx, err := loc.GetColumnIndex(dst)
				if err != nil {
					recordErr(err)
					return
				}
				hasIncomingEdge[col].Set(idx)
			}
		})
		if firstErr != nil {
			return nil, errors.Wrapf(firstErr, "inspect: owned range %d", d)
		}
	}

	return &Result{OutgoingEdges: outgoingEdges, HasIncomingEdge: hasIncomingEdge}, nil
}
