package grid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFactorize2x2(t *testing.T) {
	g, err := New(4, 1, false, false)
	require.NoError(t, err)
	if g.R != 2 || g.C != 2 {
		t.Fatalf("expected 2x2, got %dx%d", g.R, g.C)
	}
}

func TestFactorizeSwap(t *testing.T) {
	// P=6 -> C=2, R=3 by default; with moreColumnHosts, roles swap to R=2,C=3.
	g, err := New(6, 1, false, false)
	require.NoError(t, err)
	if g.R != 3 || g.C != 2 {
		t.Fatalf("expected 3x2, got %dx%d", g.R, g.C)
	}

	gs, err := New(6, 1, false, true)
	require.NoError(t, err)
	if gs.R != 2 || gs.C != 3 {
		t.Fatalf("expected swapped 2x3, got %dx%d", gs.R, gs.C)
	}
}

func TestDecomposeFactorScalesRows(t *testing.T) {
	g, err := New(4, 2, false, false)
	require.NoError(t, err)
	if g.V != 8 {
		t.Fatalf("expected V=8, got %d", g.V)
	}
	if g.R != 4 || g.C != 2 {
		t.Fatalf("expected 4x2 after D=2 scale, got %dx%d", g.R, g.C)
	}
}

func TestGridRowCol(t *testing.T) {
	g, err := New(4, 1, false, false)
	require.NoError(t, err)
	cases := []struct {
		rank, row, col int
	}{
		{0, 0, 0}, {1, 0, 1}, {2, 1, 0}, {3, 1, 1},
	}
	for _, c := range cases {
		if got := g.GridRow(c.rank); got != c.row {
			t.Errorf("rank %d: row = %d, want %d", c.rank, got, c.row)
		}
		if got := g.GridCol(c.rank); got != c.col {
			t.Errorf("rank %d: col = %d, want %d", c.rank, got, c.col)
		}
	}
}

func TestVirtual2Real(t *testing.T) {
	g, err := New(4, 2, false, false)
	require.NoError(t, err)
	for v := 0; v < g.V; v++ {
		want := v % 4
		if got := g.Virtual2Real(v); got != want {
			t.Errorf("virtual2Real(%d) = %d, want %d", v, got, want)
		}
	}
}

func TestColumnOfBlockRoundRobinVsBlocked(t *testing.T) {
	rr, _ := New(4, 1, false, false)
	for b := 0; b < rr.V; b++ {
		if got := rr.ColumnOfBlock(b); got != b%rr.C {
			t.Errorf("round-robin block %d: got %d", b, got)
		}
	}

	cb, _ := New(4, 1, true, false)
	for b := 0; b < cb.V; b++ {
		if got := cb.ColumnOfBlock(b); got != b/cb.R {
			t.Errorf("blocked block %d: got %d", b, got)
		}
	}
}

func TestInvalidConfig(t *testing.T) {
	if _, err := New(0, 1, false, false); err == nil {
		t.Fatal("expected error for P=0")
	}
	if _, err := New(4, 0, false, false); err == nil {
		t.Fatal("expected error for D=0")
	}
}

func TestIsVertexCut(t *testing.T) {
	single, _ := New(1, 1, false, false)
	if single.IsVertexCut() {
		t.Fatal("P=1 grid is a 1x1 edge cut, not a vertex cut")
	}

	square, _ := New(4, 1, false, false)
	if !square.IsVertexCut() {
		t.Fatal("2x2 grid should be a genuine vertex cut")
	}

	// P=2 factors to 2x1: a degenerate edge cut without the swap...
	edge, _ := New(2, 1, false, false)
	if edge.IsVertexCut() {
		t.Fatal("2x1 grid should be an edge cut")
	}
	// ...but moreColumnHosts swaps it to 1x2, which is still non-square,
	// and is_vertex_cut only degenerates on the fully-collapsed 1x1 case.
	swapped, _ := New(2, 1, false, true)
	if !swapped.IsVertexCut() {
		t.Fatal("moreColumnHosts should keep a 1x2 grid a vertex cut")
	}
}

func TestSingleProcessGrid(t *testing.T) {
	g, err := New(1, 1, false, false)
	require.NoError(t, err)
	if g.R != 1 || g.C != 1 {
		t.Fatalf("expected 1x1, got %dx%d", g.R, g.C)
	}
}
