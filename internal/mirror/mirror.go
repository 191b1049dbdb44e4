// Package mirror enumerates, for every other real rank, the global ids of
// mirror vertices this rank holds on that rank's behalf (spec §4.G): the
// per-peer bookkeeping a later synchronization runtime needs to know who
// to reduce-from and broadcast-to.
package mirror

import (
	"github.com/pkg/errors"

	"github.com/7mh/vcut/internal/grid"
	"github.com/7mh/vcut/internal/localgraph"
	"github.com/7mh/vcut/internal/locator"
)

// Build walks the same candidate blocks localgraph.Build's bands 2 and 3
// walked, but instead of allocating local ids it asks lg which of those
// gids this rank already has a local slot for, and files each hit under
// the real rank that masters it.
func Build(geo *grid.Geometry, loc *locator.Locator, id int, lg *localgraph.Graph) (map[int][]uint64, error) {
	myColumn := geo.GridCol(id)
	mirrorNodes := make(map[int][]uint64)

	// Outgoing-edge mirrors: every other column peer in this rank's own
	// row, per decompose slot. Self-skip is by exact virtual id: C divides
	// P, so id+d*P is the only host in this virtual row whose
	// virtual2Real is id, and this skips the same host localgraph's
	// band 2 skips.
	for d := 0; d < geo.D; d++ {
		leaderHost := geo.GridRow(id+d*geo.P) * geo.C
		for i := 0; i < geo.C; i++ {
			hostID := leaderHost + i
			if hostID == id+d*geo.P {
				continue
			}
			real := geo.Virtual2Real(hostID)
			r := loc.Range(hostID)
			for gid := r.Begin; gid < r.End; gid++ {
				if _, ok := lg.G2Lid(gid); ok {
					mirrorNodes[real] = append(mirrorNodes[real], gid)
				}
			}
		}
	}

	// Incoming-edge mirrors: the rest of this rank's own grid column,
	// across every virtual row, with the same checkerboard row-leader
	// exclusion localgraph's band 3 applies.
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

		real := geo.Virtual2Real(hostID)
		r := loc.Range(hostID)
		for gid := r.Begin; gid < r.End; gid++ {
			if _, ok := lg.G2Lid(gid); ok {
				mirrorNodes[real] = append(mirrorNodes[real], gid)
			}
		}
	}

	if _, ok := mirrorNodes[id]; ok {
		return nil, errors.Errorf("mirror: rank %d produced a mirror entry for itself", id)
	}

	return mirrorNodes, nil
}
