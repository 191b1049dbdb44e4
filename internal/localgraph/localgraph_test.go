package localgraph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/7mh/vcut/internal/bitset"
	"github.com/7mh/vcut/internal/exchange"
	"github.com/7mh/vcut/internal/grid"
	"github.com/7mh/vcut/internal/locator"
)

// TestBuildS1Rank0 hand-assembles the row-exchange result rank 0 would
// see in spec.md's S1 scenario (see internal/exchange's own test for how
// these numbers are derived) and checks the resulting local id space.
func TestBuildS1Rank0(t *testing.T) {
	geo, err := grid.New(4, 1, false, false)
	require.NoError(t, err)
	ranges, err := locator.BuildGid2Host(8, geo.V, nil)
	require.NoError(t, err)
	loc, err := locator.New(geo, ranges)
	require.NoError(t, err)

	// Rank 0's own edges are 0->1, 0->4 and 1->5, all landing in column 0,
	// and rank 1's land in column 1, so vertices 1, 4 and 5 (column-local
	// indices 1, 2, 3) are witnessed; vertex 0's only in-edge, 4->0, is
	// inspected in row 1, so it is not witnessed here.
	witnessed := bitset.New(4)
	witnessed.Set(1)
	witnessed.Set(2)
	witnessed.Set(3)

	ex := &exchange.Result{
		OutgoingToMyColumn: [][][]uint64{
			{{2, 1}, {0, 0}},
		},
		Witnessed: witnessed,
	}

	g, err := Build(geo, loc, 0, []locator.Range{ranges[0]}, ex)
	require.NoError(t, err)

	wantL2G := []uint64{0, 1, 4, 5}
	if len(g.L2G) != len(wantL2G) {
		t.Fatalf("L2G = %v, want %v", g.L2G, wantL2G)
	}
	for i, gid := range wantL2G {
		if g.L2G[i] != gid {
			t.Fatalf("L2G[%d] = %d, want %d", i, g.L2G[i], gid)
		}
	}
	if g.NumOwned != 2 {
		t.Fatalf("NumOwned = %d, want 2", g.NumOwned)
	}
	if g.BeginMaster != 0 {
		t.Fatalf("BeginMaster = %d, want 0", g.BeginMaster)
	}
	if g.NumEdges != 3 {
		t.Fatalf("NumEdges = %d, want 3", g.NumEdges)
	}
	if lid, ok := g.G2Lid(4); !ok || lid != 2 {
		t.Fatalf("G2L[4] = (%d,%v), want (2,true)", lid, ok)
	}
	if lid, ok := g.G2Lid(5); !ok || lid != 3 {
		t.Fatalf("G2L[5] = (%d,%v), want (3,true)", lid, ok)
	}
}

func TestBuildRejectsWrongRangeCount(t *testing.T) {
	geo, _ := grid.New(4, 2, false, false)
	ranges, _ := locator.BuildGid2Host(16, geo.V, nil)
	loc, _ := locator.New(geo, ranges)
	ex := &exchange.Result{Witnessed: bitset.New(1)}
	if _, err := Build(geo, loc, 0, []locator.Range{ranges[0]}, ex); err == nil {
		t.Fatal("expected error when owned ranges count mismatches D")
	}
}
