package partitioner

import (
	"bytes"
	"encoding/gob"
	"runtime"

	"github.com/pkg/errors"

	"github.com/7mh/vcut/internal/transport"
)

// exchangeMasterNodes turns each rank's locally-computed mirrorNodes (who
// I mirror from) into masterNodes (who mirrors my masters) by having
// every rank tell every other rank exactly what it mirrors from them.
// Every rank always sends and expects exactly P-1 messages, empty ones
// included, so completion needs no separate quiescence count — the same
// discipline internal/exchange uses for its row peers.
func exchangeMasterNodes(t transport.Transport, phase *transport.PhaseCounter, id, p int, mirrorNodes map[int][]uint64) (map[int][]uint64, error) {
	tag := phase.Current()

	for h := 0; h < p; h++ {
		if h == id {
			continue
		}
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(mirrorNodes[h]); err != nil {
			return nil, errors.Wrapf(err, "partitioner: encoding mirror list for host %d", h)
		}
		if err := t.Send(h, tag, buf.Bytes()); err != nil {
			return nil, errors.Wrapf(err, "partitioner: sending mirror list to host %d", h)
		}
	}
	if err := t.Flush(); err != nil {
		return nil, errors.Wrap(err, "partitioner: flush")
	}

	masterNodes := make(map[int][]uint64)
	for received := 0; received < p-1; {
		sender, payload, ok, err := t.Recv(tag)
		if err != nil {
			return nil, errors.Wrap(err, "partitioner: recv")
		}
		if !ok {
			runtime.Gosched()
			continue
		}
		var gids []uint64
		if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&gids); err != nil {
			return nil, errors.Wrapf(err, "partitioner: decoding mirror list from host %d", sender)
		}
		if len(gids) > 0 {
			masterNodes[sender] = gids
		}
		received++
	}

	if _, _, ok, _ := t.Recv(tag); ok {
		return nil, errors.New("partitioner: protocol error, leftover message after master-node exchange")
	}
	if _, err := phase.Bump(t); err != nil {
		return nil, errors.Wrap(err, "partitioner: phase bump")
	}

	return masterNodes, nil
}
