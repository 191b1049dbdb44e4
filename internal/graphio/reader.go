// Package graphio implements the two external graph-file adapter
// capabilities the partitioner treats as borrowed collaborators (spec §6):
// a random-access offline reader that yields vertex/edge counts and
// per-vertex edge cursors, and a buffered partial-loader that pre-faults a
// closed range of the file and serves per-edge destination/data lookups.
//
// The on-disk format is a fixed-width, CSR-indexed edge list: a header
// with the vertex and edge counts, an (N+1)-entry row-pointer table giving
// each vertex's absolute edge-index range, and a fixed-width record per
// edge so any edge index can be seeked to directly. This plays the same
// role the teacher's loadWiki/loadMtx readers do (src/main/load.go),
// generalized from "push straight into the running graph" to "answer
// range queries against a byte range of the file", which the two-pass
// ingest of spec §4.C/§4.F requires.
package graphio

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
)

const (
	dataFieldWidth = 32
	edgeRecordSize = 8 + dataFieldWidth // 8-byte little-endian dst + fixed data field
)

// EdgeIndex is an absolute index into the global edge array, in the order
// edges were written (grouped by ascending source vertex).
type EdgeIndex uint64

// OfflineReader is the random-access adapter used during grid geometry
// and master-assignment: total counts, and per-vertex edge cursors.
type OfflineReader interface {
	NumVertices() uint64
	NumEdges() uint64
	EdgeBegin(vertex uint64) EdgeIndex
	EdgeEnd(vertex uint64) EdgeIndex
	Close() error
}

// OfflineFile is a file-backed OfflineReader over the fixed-width edge
// list format.
type OfflineFile struct {
	f            *os.File
	numVertices  uint64
	numEdges     uint64
	rowPtr       []uint64 // len numVertices+1
	edgeSectionAt int64
}

// Open reads the header and row-pointer table into memory (O(N), small)
// and keeps the file open for later partial loads.
func Open(path string) (*OfflineFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "graphio: opening %s", path)
	}
	r := bufio.NewReader(f)

	var numVertices, numEdges uint64
	if err := binary.Read(r, binary.LittleEndian, &numVertices); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "graphio: reading vertex count")
	}
	if err := binary.Read(r, binary.LittleEndian, &numEdges); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "graphio: reading edge count")
	}

	rowPtr := make([]uint64, numVertices+1)
	for i := range rowPtr {
		if err := binary.Read(r, binary.LittleEndian, &rowPtr[i]); err != nil {
			f.Close()
			return nil, errors.Wrapf(err, "graphio: reading row pointer %d", i)
		}
	}

	headerSize := int64(8 + 8 + 8*(len(rowPtr)))
	return &OfflineFile{
		f:             f,
		numVertices:   numVertices,
		numEdges:      numEdges,
		rowPtr:        rowPtr,
		edgeSectionAt: headerSize,
	}, nil
}

func (o *OfflineFile) NumVertices() uint64 { return o.numVertices }
func (o *OfflineFile) NumEdges() uint64    { return o.numEdges }

func (o *OfflineFile) EdgeBegin(vertex uint64) EdgeIndex { return EdgeIndex(o.rowPtr[vertex]) }
func (o *OfflineFile) EdgeEnd(vertex uint64) EdgeIndex   { return EdgeIndex(o.rowPtr[vertex+1]) }

func (o *OfflineFile) Close() error { return o.f.Close() }

// BufferedReader serves per-edge destination and data lookups against a
// pre-faulted, closed range of edge indices.
type BufferedReader[T any] interface {
	Destination(e EdgeIndex) uint64
	Data(e EdgeIndex) T
	BytesRead() uint64
}

// bufferedGraph is the in-memory materialization of one [ebegin, eend)
// edge range.
type bufferedGraph[T any] struct {
	ebegin       EdgeIndex
	destinations []uint64
	data         []T
	bytesRead    uint64
}

func (b *bufferedGraph[T]) Destination(e EdgeIndex) uint64 { return b.destinations[e-b.ebegin] }
func (b *bufferedGraph[T]) Data(e EdgeIndex) T              { return b.data[e-b.ebegin] }
func (b *bufferedGraph[T]) BytesRead() uint64                { return b.bytesRead }

// Decode converts an edge's fixed-width data field into T. Pass a decoder
// that ignores its input and returns the zero value of T for edgeless
// graphs.
type Decode[T any] func(field [dataFieldWidth]byte) T

// LoadPartialGraph pre-faults the edge records in [ebegin, eend) — the
// vertex range [vbegin, vend) is accepted for parity with the spec's
// interface and only checked for not being inverted, and the
// byte range read is driven entirely by the edge-index range since edge
// records are contiguous and fixed-width.
func LoadPartialGraph[T any](o *OfflineFile, vbegin, vend uint64, ebegin, eend EdgeIndex, decode Decode[T]) (BufferedReader[T], error) {
	if vend < vbegin || eend < ebegin {
		return nil, errors.New("graphio: invalid range")
	}
	n := int(eend - ebegin)
	out := &bufferedGraph[T]{ebegin: ebegin, destinations: make([]uint64, n), data: make([]T, n)}
	if n == 0 {
		return out, nil
	}

	if _, err := o.f.Seek(o.edgeSectionAt+int64(ebegin)*edgeRecordSize, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "graphio: seeking to edge range")
	}
	buf := make([]byte, n*edgeRecordSize)
	if _, err := io.ReadFull(o.f, buf); err != nil {
		return nil, errors.Wrap(err, "graphio: reading edge records")
	}
	out.bytesRead = uint64(len(buf))

	for i := 0; i < n; i++ {
		rec := buf[i*edgeRecordSize : (i+1)*edgeRecordSize]
		out.destinations[i] = binary.LittleEndian.Uint64(rec[:8])
		var field [dataFieldWidth]byte
		copy(field[:], rec[8:])
		out.data[i] = decode(field)
	}
	return out, nil
}

// Edge is one input edge used when writing an edge-list file.
type Edge struct {
	Src, Dst uint64
	Data     [dataFieldWidth]byte
}

// Write serializes numVertices and edges (which must be sorted ascending
// by Src) into the fixed-width format Open/LoadPartialGraph read.
func Write(path string, numVertices uint64, edges []Edge) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "graphio: creating %s", path)
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	if err := binary.Write(w, binary.LittleEndian, numVertices); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(edges))); err != nil {
		return err
	}

	rowPtr := make([]uint64, numVertices+1)
	for _, e := range edges {
		rowPtr[e.Src+1]++
	}
	for i := uint64(1); i <= numVertices; i++ {
		rowPtr[i] += rowPtr[i-1]
	}
	for _, v := range rowPtr {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}

	for _, e := range edges {
		var rec [edgeRecordSize]byte
		binary.LittleEndian.PutUint64(rec[:8], e.Dst)
		copy(rec[8:], e.Data[:])
		if _, err := w.Write(rec[:]); err != nil {
			return err
		}
	}
	return w.Flush()
}
