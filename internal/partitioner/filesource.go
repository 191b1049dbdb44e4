package partitioner

import (
	"github.com/pkg/errors"

	"github.com/7mh/vcut/internal/graphio"
	"github.com/7mh/vcut/internal/locator"
)

// FileSource adapts a graphio.OfflineFile into the two edge-enumeration
// shapes inspect.Run and distribute.Run need, pre-faulting each owned
// source range once into memory rather than reading a vertex at a time.
type FileSource[T any] struct {
	offline *graphio.OfflineFile
	ranges  []locator.Range
	buffers []graphio.BufferedReader[T]
}

// NewFileSource pre-loads every owned range's edge records via a single
// buffered read per range, matching the "pre-fault a closed range" access
// pattern spec §6 describes for the buffered adapter.
func NewFileSource[T any](offline *graphio.OfflineFile, ranges []locator.Range, decode graphio.Decode[T]) (*FileSource[T], error) {
	buffers := make([]graphio.BufferedReader[T], len(ranges))
	for d, r := range ranges {
		if r.Len() == 0 {
			buffers[d] = emptyBuffer[T]{}
			continue
		}
		ebegin := offline.EdgeBegin(r.Begin)
		eend := offline.EdgeEnd(r.End - 1)
		buf, err := graphio.LoadPartialGraph(offline, r.Begin, r.End, ebegin, eend, decode)
		if err != nil {
			return nil, errors.Wrapf(err, "partitioner: loading owned range %d", d)
		}
		buffers[d] = buf
	}
	return &FileSource[T]{offline: offline, ranges: ranges, buffers: buffers}, nil
}

// OutEdges satisfies distribute.EdgeSource[T].
func (f *FileSource[T]) OutEdges(d int, src uint64) ([]uint64, []T, error) {
	if d < 0 || d >= len(f.ranges) {
		return nil, nil, errors.Errorf("partitioner: decompose slot %d out of range", d)
	}
	begin := f.offline.EdgeBegin(src)
	end := f.offline.EdgeEnd(src)
	n := int(end - begin)
	dsts := make([]uint64, n)
	data := make([]T, n)
	buf := f.buffers[d]
	for i := 0; i < n; i++ {
		e := begin + graphio.EdgeIndex(i)
		dsts[i] = buf.Destination(e)
		data[i] = buf.Data(e)
	}
	return dsts, data, nil
}

// CountOnly returns an inspect.EdgeSource view over the same buffers,
// discarding edge data — inspect.Run only needs destinations.
func (f *FileSource[T]) CountOnly() *countOnlySource[T] {
	return &countOnlySource[T]{inner: f}
}

type countOnlySource[T any] struct {
	inner *FileSource[T]
}

func (c *countOnlySource[T]) OutEdges(d int, src uint64) ([]uint64, error) {
	dsts, _, err := c.inner.OutEdges(d, src)
	return dsts, err
}

// emptyBuffer serves a zero-length owned range without touching the file.
type emptyBuffer[T any] struct{}

func (emptyBuffer[T]) Destination(graphio.EdgeIndex) uint64 { return 0 }
func (emptyBuffer[T]) Data(graphio.EdgeIndex) T             { var zero T; return zero }
func (emptyBuffer[T]) BytesRead() uint64                    { return 0 }
