// Package locator resolves global vertex ids to the virtual host that
// masters them and to dense column-local indices, and builds the
// gid2host range table the rest of the partitioner is built on.
package locator

import (
	"github.com/pkg/errors"

	"github.com/7mh/vcut/internal/grid"
)

// Range is a half-open [Begin, End) global-id range assigned to one
// virtual host.
type Range struct {
	Begin uint64
	End   uint64
}

func (r Range) Len() uint64 { return r.End - r.Begin }

// BuildGid2Host partitions [0, n) into len(scaleFactor) contiguous,
// non-overlapping ranges — one per virtual host, in virtual-host order —
// weighted by scaleFactor. A nil or empty scaleFactor weights every host
// equally. scaleFactor must have exactly V entries.
func BuildGid2Host(n uint64, v int, scaleFactor []uint64) ([]Range, error) {
	if v <= 0 {
		return nil, errors.Errorf("locator: virtual host count must be positive, got %d", v)
	}
	weights := scaleFactor
	if len(weights) == 0 {
		weights = make([]uint64, v)
		for i := range weights {
			weights[i] = 1
		}
	}
	if len(weights) != v {
		return nil, errors.Errorf("locator: scalefactor has %d entries, want %d", len(weights), v)
	}

	var totalWeight uint64
	for _, w := range weights {
		totalWeight += w
	}
	if totalWeight == 0 {
		return nil, errors.New("locator: scalefactor sums to zero")
	}

	ranges := make([]Range, v)
	var assigned uint64
	var weightSoFar uint64
	for i, w := range weights {
		weightSoFar += w
		// Cumulative rounding: each host's end is floor(n * weightSoFar /
		// totalWeight), so ranges are contiguous and the last host's end
		// is exactly n regardless of rounding.
		var end uint64
		if i == v-1 {
			end = n
		} else {
			end = n * weightSoFar / totalWeight
		}
		if end < assigned {
			end = assigned
		}
		ranges[i] = Range{Begin: assigned, End: end}
		assigned = end
	}
	return ranges, nil
}

// Locator answers global-id placement queries against a fixed gid2host
// table and grid geometry.
type Locator struct {
	geometry *grid.Geometry
	ranges   []Range // len == geometry.V, sorted, contiguous, covering [0,N)
	n        uint64
}

func New(g *grid.Geometry, ranges []Range) (*Locator, error) {
	if len(ranges) != g.V {
		return nil, errors.Errorf("locator: expected %d ranges, got %d", g.V, len(ranges))
	}
	var n uint64
	if len(ranges) > 0 {
		n = ranges[len(ranges)-1].End
	}
	for i, r := range ranges {
		if r.Begin > r.End {
			return nil, errors.Errorf("locator: range %d has begin > end", i)
		}
		if i > 0 && ranges[i-1].End != r.Begin {
			return nil, errors.Errorf("locator: ranges %d and %d are not contiguous", i-1, i)
		}
	}
	return &Locator{geometry: g, ranges: ranges, n: n}, nil
}

func (l *Locator) N() uint64        { return l.n }
func (l *Locator) Ranges() []Range  { return l.ranges }
func (l *Locator) Range(v int) Range { return l.ranges[v] }

// GetHostID returns the virtual host that masters gid. Linear probe: V is
// the number of hosts, small and cold after construction, so this need
// not be a binary search.
func (l *Locator) GetHostID(gid uint64) (int, error) {
	for h, r := range l.ranges {
		if gid >= r.Begin && gid < r.End {
			return h, nil
		}
	}
	return 0, errors.Errorf("locator: gid %d not covered by any host range", gid)
}

// GetColumnHostID returns the grid column that masters gid's block.
func (l *Locator) GetColumnHostID(gid uint64) (int, error) {
	h, err := l.GetHostID(gid)
	if err != nil {
		return 0, err
	}
	return l.geometry.ColumnOfBlock(h), nil
}

// GetColumnIndex returns the dense column-local index of gid: its offset
// within the ascending-block-order concatenation of every block routed to
// its column.
func (l *Locator) GetColumnIndex(gid uint64) (uint64, error) {
	blockID, err := l.GetHostID(gid)
	if err != nil {
		return 0, err
	}
	col := l.geometry.ColumnOfBlock(blockID)

	var idx uint64
	for b := 0; b <= blockID; b++ {
		if l.geometry.ColumnOfBlock(b) != col {
			continue
		}
		r := l.ranges[b]
		if gid < r.End {
			idx += gid - r.Begin
			break
		}
		idx += r.Len()
	}
	return idx, nil
}

// ColumnBlockSpan returns the total length of every block routed to
// column col — the size a per-column bitset must be allocated to.
func (l *Locator) ColumnBlockSpan(col int) uint64 {
	var span uint64
	for b, r := range l.ranges {
		if l.geometry.ColumnOfBlock(b) == col {
			span += r.Len()
		}
	}
	return span
}
