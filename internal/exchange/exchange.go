// Package exchange implements the row exchange (spec §4.D): within each
// grid row, every column peer trades its inspection summary — for the
// receiver's own column — with every other column peer, then the
// received incoming-edge witnesses are OR-folded into one combined
// bitmap.
package exchange

import (
	"bytes"
	"encoding/gob"
	"runtime"

	"github.com/pkg/errors"

	"github.com/7mh/vcut/internal/bitset"
	"github.com/7mh/vcut/internal/grid"
	"github.com/7mh/vcut/internal/inspect"
	"github.com/7mh/vcut/internal/locator"
	"github.com/7mh/vcut/internal/transport"
)

// Result is what a rank knows after row exchange, indexed by row-peer
// column identity h: for each h, that peer's own d-th source range's
// out-degree vector aimed at this rank's column (h==myColumn is this
// rank's own data, since it never leaves the process).
type Result struct {
	OutgoingToMyColumn [][][]uint64 // [d][h][offset]
	// Witnessed is the OR-fold, across every row peer, of "does this
	// column-index destination in my column have an incoming edge".
	Witnessed *bitset.Bitset
}

type wireBundle struct {
	Outgoing     [][]uint64 // per d
	WitnessWords []uint64
	WitnessSize  uint64
}

// Run executes the row exchange: geo.GridRow(id) picks out the C row
// peers of id, and id's own column within that row is geo.GridCol(id).
func Run(geo *grid.Geometry, id int, loc *locator.Locator, insp *inspect.Result, t transport.Transport, phase *transport.PhaseCounter) (*Result, error) {
	myColumn := geo.GridCol(id)
	tag := phase.Current()
	rowBase := geo.GridRow(id) * geo.C

	for i := 0; i < geo.C; i++ {
		if i == myColumn {
			continue
		}
		peer := rowBase + i
		bundle := wireBundle{Outgoing: make([][]uint64, len(insp.OutgoingEdges))}
		for d := range insp.OutgoingEdges {
			bundle.Outgoing[d] = insp.OutgoingEdges[d][i]
		}
		bundle.WitnessWords = insp.HasIncomingEdge[i].Words()
		bundle.WitnessSize = insp.HasIncomingEdge[i].Size()

		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(bundle); err != nil {
			return nil, errors.Wrapf(err, "exchange: encoding bundle for peer %d", peer)
		}
		if err := t.Send(peer, tag, buf.Bytes()); err != nil {
			return nil, errors.Wrapf(err, "exchange: sending to peer %d", peer)
		}
	}
	if err := t.Flush(); err != nil {
		return nil, errors.Wrap(err, "exchange: flush")
	}

	numRowPeers := geo.C - 1

	numDecompose := len(insp.OutgoingEdges)
	outgoing := make([][][]uint64, numDecompose)
	for d := 0; d < numDecompose; d++ {
		outgoing[d] = make([][]uint64, geo.C)
		outgoing[d][myColumn] = insp.OutgoingEdges[d][myColumn]
	}

	witnessed := bitset.New(loc.ColumnBlockSpan(myColumn))
	witnessed.Or(insp.HasIncomingEdge[myColumn])

	received := 0
	for received < numRowPeers {
		sender, payload, ok, err := t.Recv(tag)
		if err != nil {
			return nil, errors.Wrap(err, "exchange: recv")
		}
		if !ok {
			runtime.Gosched()
			continue
		}
		if geo.GridRow(sender) != geo.GridRow(id) {
			return nil, errors.Errorf("exchange: protocol error, unexpected sender %d not in row %d", sender, geo.GridRow(id))
		}
		h := geo.GridCol(sender)

		var bundle wireBundle
		if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&bundle); err != nil {
			return nil, errors.Wrapf(err, "exchange: decoding bundle from %d", sender)
		}
		if len(bundle.Outgoing) != numDecompose {
			return nil, errors.Errorf("exchange: bundle from %d has %d decompose slices, want %d", sender, len(bundle.Outgoing), numDecompose)
		}
		for d := 0; d < numDecompose; d++ {
			outgoing[d][h] = bundle.Outgoing[d]
		}
		witnessed.Or(bitset.FromWords(bundle.WitnessSize, bundle.WitnessWords))
		received++
	}

	if _, _, ok, _ := t.Recv(tag); ok {
		return nil, errors.New("exchange: protocol error, leftover message after row exchange completed")
	}

	if _, err := phase.Bump(t); err != nil {
		return nil, errors.Wrap(err, "exchange: phase bump")
	}

	return &Result{OutgoingToMyColumn: outgoing, Witnessed: witnessed}, nil
}
