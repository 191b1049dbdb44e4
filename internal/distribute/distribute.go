// Package distribute implements the second pass over the graph file
// (spec §4.F): every owned source's out-edges are read once more, this
// time installed directly if they land in this rank's own column or
// shipped to the column peer that owns them otherwise, while inbound
// buffers from other ranks are drained opportunistically until every
// mirror this rank expects edges for has them.
package distribute

import (
	"bytes"
	"encoding/gob"
	"runtime"

	"github.com/pkg/errors"

	"github.com/7mh/vcut/internal/grid"
	"github.com/7mh/vcut/internal/localgraph"
	"github.com/7mh/vcut/internal/locator"
	"github.com/7mh/vcut/internal/transport"
)

// EdgeSource is the second-pass file access surface: unlike inspect's
// EdgeSource, it returns edge payload data alongside destinations. T is
// the edge-data type; use struct{} for edgeless graphs.
type EdgeSource[T any] interface {
	OutEdges(d int, src uint64) (dsts []uint64, data []T, err error)
}

// CSR is the local compressed adjacency store this pass fills in. Node
// lid's out-edges occupy Dst[begin:end] and Data[begin:end], where
// [begin,end) is given by localgraph.Graph's prefix-sum-of-edges.
type CSR[T any] struct {
	Dst  []uint32
	Data []T
}

func newCSR[T any](numEdges uint64) *CSR[T] {
	return &CSR[T]{Dst: make([]uint32, numEdges), Data: make([]T, numEdges)}
}

func edgeRange(lg *localgraph.Graph, lid uint32) (begin, end uint64) {
	if lid == 0 {
		return 0, lg.PrefixSumOfEdges[0]
	}
	return lg.PrefixSumOfEdges[lid-1], lg.PrefixSumOfEdges[lid]
}

// wireEdges is one source vertex's out-edges destined for a single
// remote column peer.
type wireEdges[T any] struct {
	Src  uint64
	Dst  []uint64
	Data []T
}

type wireBatch[T any] struct {
	Items []wireEdges[T]
}

// outbox accumulates wireEdges triples for one destination column peer
// until their estimated encoded size crosses the coalescing threshold,
// matching the original's edgePartitionSendBufSize flush trigger.
type outbox[T any] struct {
	items []wireEdges[T]
	bytes int
}

func (o *outbox[T]) add(src uint64, dst []uint64, data []T) {
	o.items = append(o.items, wireEdges[T]{Src: src, Dst: dst, Data: data})
	o.bytes += len(dst) * 8
}

func flushOutbox[T any](t transport.Transport, dest int, tag uint64, o *outbox[T]) error {
	if len(o.items) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(wireBatch[T]{Items: o.items}); err != nil {
		return errors.Wrapf(err, "distribute: encoding batch for peer %d", dest)
	}
	if err := t.Send(dest, tag, buf.Bytes()); err != nil {
		return errors.Wrapf(err, "distribute: sending to peer %d", dest)
	}
	o.items = o.items[:0]
	o.bytes = 0
	return nil
}

// drainOne processes at most one inbound message, installing every
// triple it carries into csr, and returns how many mirror nodes were
// completed by it.
func drainOne[T any](t transport.Transport, tag uint64, lg *localgraph.Graph, csr *CSR[T]) (int, error) {
	_, payload, ok, err := t.Recv(tag)
	if err != nil {
		return 0, errors.Wrap(err, "distribute: recv")
	}
	if !ok {
		return 0, nil
	}
	var batch wireBatch[T]
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&batch); err != nil {
		return 0, errors.Wrap(err, "distribute: decoding batch")
	}
	for _, item := range batch.Items {
		lid, ok := lg.G2Lid(item.Src)
		if !ok {
			return 0, errors.Errorf("distribute: received edges for gid %d, which has no local mirror", item.Src)
		}
		begin, end := edgeRange(lg, lid)
		if uint64(len(item.Dst)) != end-begin {
			return 0, errors.Errorf("distribute: gid %d expects %d edges, received %d", item.Src, end-begin, len(item.Dst))
		}
		for k, dst := range item.Dst {
			ldst, ok := lg.G2Lid(dst)
			if !ok {
				return 0, errors.Errorf("distribute: destination gid %d has no local id", dst)
			}
			csr.Dst[begin+uint64(k)] = ldst
			csr.Data[begin+uint64(k)] = item.Data[k]
		}
	}
	return len(batch.Items), nil
}

// Run executes the second pass across ownRanges (this rank's D owned
// source ranges) and blocks until every mirror node listed in lg has its
// out-edges installed.
func Run[T any](geo *grid.Geometry, loc *locator.Locator, id int, ownRanges []locator.Range, lg *localgraph.Graph, edges EdgeSource[T], t transport.Transport, phase *transport.PhaseCounter) (*CSR[T], error) {
	if len(ownRanges) != geo.D {
		return nil, errors.Errorf("distribute: expected %d owned ranges, got %d", geo.D, len(ownRanges))
	}
	tag := phase.Current()
	csr := newCSR[T](lg.NumEdges)
	installed := lg.NumOwned + lg.DummyOutgoingNodes
	cursor := make(map[uint32]uint64, lg.NumOwned)

	for d, r := range ownRanges {
		hOffset := geo.GridRow(id) * geo.C
		outboxes := make(map[int]*outbox[T])

		for src := r.Begin; src < r.End; src++ {
			dsts, data, err := edges.OutEdges(d, src)
			if err != nil {
				return nil, errors.Wrapf(err, "distribute: reading source %d", src)
			}

			lsrc, isLocal := lg.G2Lid(src)
			var cur uint64
			if isLocal {
				begin, ok := cursor[lsrc]
				if !ok {
					begin, _ = edgeRange(lg, lsrc)
				}
				cur = begin
			}

			byCol := make(map[int][]int)
			for j, dst := range dsts {
				col, err := loc.GetColumnHostID(dst)
				if err != nil {
					return nil, errors.Wrap(err, "distribute")
				}
				if hOffset+col == id {
					ldst, ok := lg.G2Lid(dst)
					if !ok {
						return nil, errors.Errorf("distribute: destination gid %d not in local id space", dst)
					}
					csr.Dst[cur] = ldst
					csr.Data[cur] = data[j]
					cur++
				} else {
					byCol[col] = append(byCol[col], j)
				}
			}
			if isLocal {
				cursor[lsrc] = cur
			}

			for col, idxs := range byCol {
				gdst := make([]uint64, len(idxs))
				gdata := make([]T, len(idxs))
				for k, j := range idxs {
					gdst[k] = dsts[j]
					gdata[k] = data[j]
				}
				ob := outboxes[col]
				if ob == nil {
					ob = &outbox[T]{}
					outboxes[col] = ob
				}
				ob.add(src, gdst, gdata)
				if ob.bytes > transport.CoalesceThresholdBytes {
					if err := flushOutbox(t, hOffset+col, tag, ob); err != nil {
						return nil, err
					}
				}
			}

			n, err := drainOne(t, tag, lg, csr)
			if err != nil {
				return nil, err
			}
			installed += n
		}

		for col, ob := range outboxes {
			if err := flushOutbox(t, hOffset+col, tag, ob); err != nil {
				return nil, err
			}
		}
	}
	if err := t.Flush(); err != nil {
		return nil, errors.Wrap(err, "distribute: flush")
	}

	for installed < lg.NumNodesWithEdges {
		n, err := drainOne(t, tag, lg, csr)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			runtime.Gosched()
			continue
		}
		installed += n
	}

	if _, _, ok, _ := t.Recv(tag); ok {
		return nil, errors.New("distribute: protocol error, leftover message after edge distribution completed")
	}
	if _, err := phase.Bump(t); err != nil {
		return nil, errors.Wrap(err, "distribute: phase bump")
	}

	return csr, nil
}
