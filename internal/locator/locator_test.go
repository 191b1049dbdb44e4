package locator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/7mh/vcut/internal/grid"
)

func TestBuildGid2HostEvenSplit(t *testing.T) {
	ranges, err := BuildGid2Host(8, 4, nil)
	require.NoError(t, err)
	want := []Range{{0, 2}, {2, 4}, {4, 6}, {6, 8}}
	for i, r := range want {
		if ranges[i] != r {
			t.Errorf("range %d = %+v, want %+v", i, ranges[i], r)
		}
	}
}

func TestBuildGid2HostCoversWholeSpace(t *testing.T) {
	ranges, err := BuildGid2Host(17, 4, nil)
	require.NoError(t, err)
	if ranges[0].Begin != 0 {
		t.Fatalf("first range should start at 0, got %d", ranges[0].Begin)
	}
	if ranges[len(ranges)-1].End != 17 {
		t.Fatalf("last range should end at 17, got %d", ranges[len(ranges)-1].End)
	}
	for i := 1; i < len(ranges); i++ {
		if ranges[i-1].End != ranges[i].Begin {
			t.Fatalf("ranges %d,%d not contiguous", i-1, i)
		}
	}
}

func TestBuildGid2HostWeighted(t *testing.T) {
	// host 0 gets triple weight
	ranges, err := BuildGid2Host(8, 4, []uint64{3, 1, 1, 1})
	require.NoError(t, err)
	if ranges[0].Len() <= ranges[1].Len() {
		t.Fatalf("expected weighted host 0 to get a larger share, got %+v", ranges)
	}
}

func TestGetHostIDAndColumnIndex(t *testing.T) {
	g, err := grid.New(4, 1, false, false)
	require.NoError(t, err)
	ranges, err := BuildGid2Host(8, g.V, nil)
	require.NoError(t, err)
	loc, err := New(g, ranges)
	require.NoError(t, err)

	for gid := uint64(0); gid < 8; gid++ {
		h, err := loc.GetHostID(gid)
		require.NoError(t, err)
		if gid < ranges[h].Begin || gid >= ranges[h].End {
			t.Errorf("gid %d resolved to host %d whose range is %+v", gid, h, ranges[h])
		}
	}

	// Column indices within a column must be contiguous and start at 0.
	seen := map[uint64]bool{}
	for gid := uint64(0); gid < 8; gid++ {
		col, err := loc.GetColumnHostID(gid)
		require.NoError(t, err)
		idx, err := loc.GetColumnIndex(gid)
		require.NoError(t, err)
		if idx >= loc.ColumnBlockSpan(col) {
			t.Errorf("column index %d out of bounds for column span %d", idx, loc.ColumnBlockSpan(col))
		}
		seen[idx] = true
	}
	for idx := uint64(0); idx < uint64(len(seen)); idx++ {
		if !seen[idx] {
			t.Errorf("column indices are not contiguous from 0: %d missing from %v", idx, seen)
		}
	}
}

func TestGetHostIDOutOfRange(t *testing.T) {
	g, _ := grid.New(2, 1, false, false)
	ranges, _ := BuildGid2Host(4, g.V, nil)
	loc, _ := New(g, ranges)
	if _, err := loc.GetHostID(100); err == nil {
		t.Fatal("expected error for out-of-range gid")
	}
}

func TestNewRejectsNonContiguousRanges(t *testing.T) {
	g, _ := grid.New(2, 1, false, false)
	bad := []Range{{0, 2}, {3, 4}}
	if _, err := New(g, bad); err == nil {
		t.Fatal("expected error for non-contiguous ranges")
	}
}
