package partitioner

import (
	"bufio"
	"encoding/gob"
	"os"

	"github.com/pkg/errors"

	"github.com/7mh/vcut/internal/localgraph"
)

// sidecar is the on-disk shape of a serialized local graph: everything
// localgraph.Graph needs to be reconstructed except globalToLocal, which
// is a pure function of localToGlobal and is rebuilt on load rather than
// carried twice — the original's Boost archive stores both because
// std::unordered_map isn't otherwise reconstructible from a vector, but
// a Go map built in one pass over L2G costs nothing to redo.
type sidecar struct {
	NumRowHosts    int
	NumColumnHosts int

	L2G                []uint64
	PrefixSumOfEdges   []uint64
	NumOwned           int
	BeginMaster        uint32
	NumNodesWithEdges  int
	DummyOutgoingNodes int
	NumEdges           uint64
}

// SerializeLocalGraph writes p's local graph and grid shape to path,
// playing the role boostSerializeLocalGraph plays for the readFromFile
// short-circuit of spec.md §6.
func SerializeLocalGraph[T any](p *Partitioner[T], path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "partitioner: creating %s", path)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	sc := sidecar{
		NumRowHosts:        p.Geo.R,
		NumColumnHosts:     p.Geo.C,
		L2G:                p.Graph.L2G,
		PrefixSumOfEdges:   p.Graph.PrefixSumOfEdges,
		NumOwned:           p.Graph.NumOwned,
		BeginMaster:        p.Graph.BeginMaster,
		NumNodesWithEdges:  p.Graph.NumNodesWithEdges,
		DummyOutgoingNodes: p.Graph.DummyOutgoingNodes,
		NumEdges:           p.Graph.NumEdges,
	}
	if err := gob.NewEncoder(w).Encode(sc); err != nil {
		return errors.Wrap(err, "partitioner: encoding local graph")
	}
	return w.Flush()
}

// DeserializeLocalGraph reads back a sidecar written by
// SerializeLocalGraph, rebuilding globalToLocal from localToGlobal.
func DeserializeLocalGraph(path string) (g *localgraph.Graph, numRowHosts, numColumnHosts int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, errors.Wrapf(err, "partitioner: opening %s", path)
	}
	defer f.Close()

	var sc sidecar
	if err := gob.NewDecoder(bufio.NewReader(f)).Decode(&sc); err != nil {
		return nil, 0, 0, errors.Wrap(err, "partitioner: decoding local graph")
	}

	g2l := make(map[uint64]uint32, len(sc.L2G))
	for lid, gid := range sc.L2G {
		g2l[gid] = uint32(lid)
	}

	graph := &localgraph.Graph{
		L2G:                sc.L2G,
		G2L:                g2l,
		PrefixSumOfEdges:   sc.PrefixSumOfEdges,
		NumOwned:           sc.NumOwned,
		BeginMaster:        sc.BeginMaster,
		NumNodesWithEdges:  sc.NumNodesWithEdges,
		DummyOutgoingNodes: sc.DummyOutgoingNodes,
		NumEdges:           sc.NumEdges,
	}
	return graph, sc.NumRowHosts, sc.NumColumnHosts, nil
}
