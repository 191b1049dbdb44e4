package mirror

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/7mh/vcut/internal/bitset"
	"github.com/7mh/vcut/internal/exchange"
	"github.com/7mh/vcut/internal/grid"
	"github.com/7mh/vcut/internal/localgraph"
	"github.com/7mh/vcut/internal/locator"
)

// TestBuildS1Rank0 reuses localgraph's hand-assembled S1 rank-0 fixture:
// rank 0 masters {0,1} and mirrors {4,5}, both owned by rank 2, so the
// only expected peer entry is mirrorNodes[2] = [4,5].
func TestBuildS1Rank0(t *testing.T) {
	geo, err := grid.New(4, 1, false, false)
	require.NoError(t, err)
	ranges, err := locator.BuildGid2Host(8, geo.V, nil)
	require.NoError(t, err)
	loc, err := locator.New(geo, ranges)
	require.NoError(t, err)

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

	lg, err := localgraph.Build(geo, loc, 0, []locator.Range{ranges[0]}, ex)
	require.NoError(t, err)

	mirrors, err := Build(geo, loc, 0, lg)
	require.NoError(t, err)

	if len(mirrors) != 1 {
		t.Fatalf("mirrors has %d peers, want 1: %v", len(mirrors), mirrors)
	}
	got, ok := mirrors[2]
	if !ok {
		t.Fatalf("expected a mirror entry for rank 2, got %v", mirrors)
	}
	want := []uint64{4, 5}
	if len(got) != len(want) {
		t.Fatalf("mirrors[2] = %v, want %v", got, want)
	}
	for i, gid := range want {
		if got[i] != gid {
			t.Fatalf("mirrors[2][%d] = %d, want %d", i, got[i], gid)
		}
	}
}

func TestBuildNoSelfEntry(t *testing.T) {
	geo, err := grid.New(4, 1, false, false)
	require.NoError(t, err)
	ranges, err := locator.BuildGid2Host(8, geo.V, nil)
	require.NoError(t, err)
	loc, err := locator.New(geo, ranges)
	require.NoError(t, err)
	witnessed := bitset.New(4)
	ex := &exchange.Result{
		OutgoingToMyColumn: [][][]uint64{
			{{0, 0}, {0, 0}},
		},
		Witnessed: witnessed,
	}
	lg, err := localgraph.Build(geo, loc, 0, []locator.Range{ranges[0]}, ex)
	require.NoError(t, err)
	mirrors, err := Build(geo, loc, 0, lg)
	require.NoError(t, err)
	if _, ok := mirrors[0]; ok {
		t.Fatal("mirror set must never contain an entry for the rank's own id")
	}
}
