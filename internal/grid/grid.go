// Package grid computes the virtual process grid a cartesian vertex cut is
// laid out on: factoring the real process count into rows and columns,
// scaling by the decomposition factor, and mapping virtual grid positions
// back to real ranks.
package grid

import (
	"github.com/pkg/errors"
)

// Geometry is the fixed grid shape derived from a process count P, a
// decomposition factor D, and the two regime flags. It never changes after
// construction.
type Geometry struct {
	P int // real process count
	D int // decomposition factor
	V int // virtual process count, P*D

	R int // virtual grid rows
	C int // virtual grid columns

	ColumnBlocked   bool
	MoreColumnHosts bool
}

// New factors P into R rows by C columns minimizing |R-C|, applies the
// moreColumnHosts swap, then scales R by D to produce the virtual grid.
func New(p, d int, columnBlocked, moreColumnHosts bool) (*Geometry, error) {
	if p <= 0 {
		return nil, errors.Errorf("grid: process count must be positive, got %d", p)
	}
	if d <= 0 {
		return nil, errors.Errorf("grid: decompose factor must be positive, got %d", d)
	}

	c := largestDivisorAtMostSqrt(p)
	r := p / c

	if moreColumnHosts {
		r, c = c, r
	}

	r *= d

	return &Geometry{
		P:               p,
		D:               d,
		V:               p * d,
		R:               r,
		C:               c,
		ColumnBlocked:   columnBlocked,
		MoreColumnHosts: moreColumnHosts,
	}, nil
}

// largestDivisorAtMostSqrt returns the largest divisor of p that does not
// exceed floor(sqrt(p)); starting from the square root and counting down
// guarantees termination at 1.
func largestDivisorAtMostSqrt(p int) int {
	c := isqrt(p)
	for c > 1 && p%c != 0 {
		c--
	}
	return c
}

func isqrt(n int) int {
	if n < 2 {
		return n
	}
	x := n
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + n/x) / 2
	}
	return x
}

// GridRow returns the grid row of a real or virtual rank.
func (g *Geometry) GridRow(rank int) int { return rank / g.C }

// GridCol returns the grid column of a real or virtual rank.
func (g *Geometry) GridCol(rank int) int { return rank % g.C }

// Virtual2Real maps a virtual host id to the real rank that hosts it.
func (g *Geometry) Virtual2Real(virtual int) int { return virtual % g.P }

// IsVertexCut reports whether this grid genuinely splits vertices across
// ranks rather than degenerating into an edge cut. Under moreColumnHosts
// the row/column roles are already swapped, so only the fully-degenerate
// 1x1 case counts as an edge cut; otherwise either dimension collapsing
// to 1 does.
func (g *Geometry) IsVertexCut() bool {
	if g.MoreColumnHosts {
		return !(g.R == 1 && g.C == 1)
	}
	return g.R != 1 && g.C != 1
}

// ColumnOfBlock returns which grid column a master-assignment block index
// is routed to. Contiguous stripes under checkerboard partitioning,
// round-robin otherwise — this is the single knob that switches cartesian
// vs. checkerboard cuts.
func (g *Geometry) ColumnOfBlock(block int) int {
	if g.ColumnBlocked {
		return block / g.R
	}
	return block % g.C
}
