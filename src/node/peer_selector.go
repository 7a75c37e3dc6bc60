package node

import (
	"math/rand"
	"sync"
	"time"

	"github.com/fluxnet/fluxnet/src/peers"
)

//PeerSelector defines an interface for Peer Selectors
type PeerSelector interface {
	Next(records []peers.NodeRecord) (peers.NodeRecord, bool)
}

//+++++++++++++++++++++++++++++++++++++++
//RANDOM

//RandomPeerSelector picks a record at a uniformly random index. It does not
//filter the list; callers decide whether the pick is usable.
type RandomPeerSelector struct {
	l   sync.Mutex
	rnd *rand.Rand
}

//NewRandomPeerSelector is a factory method that returns a new instance of
//RandomPeerSelector
func NewRandomPeerSelector() *RandomPeerSelector {
	return NewSeededPeerSelector(time.Now().UnixNano())
}

//NewSeededPeerSelector returns a RandomPeerSelector with a deterministic
//sequence
func NewSeededPeerSelector(seed int64) *RandomPeerSelector {
	return &RandomPeerSelector{
		rnd: rand.New(rand.NewSource(seed)),
	}
}

//Next returns the next candidate
func (ps *RandomPeerSelector) Next(records []peers.NodeRecord) (peers.NodeRecord, bool) {
	if len(records) == 0 {
		return peers.NodeRecord{}, false
	}

	ps.l.Lock()
	i := ps.rnd.Intn(len(records))
	ps.l.Unlock()

	return records[i], true
}
