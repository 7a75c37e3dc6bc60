package node

import (
	"testing"

	"github.com/fluxnet/fluxnet/src/peers"
	"github.com/stretchr/testify/assert"
)

func selectorRecords() []peers.NodeRecord {
	return []peers.NodeRecord{
		peers.NewNodeRecord("a", "10.0.0.1"),
		peers.NewNodeRecord("b", "10.0.0.2"),
		peers.NewNodeRecord("c", "10.0.0.3"),
	}
}

func TestRandomPeerSelector(t *testing.T) {
	ps := NewSeededPeerSelector(1)

	_, ok := ps.Next(nil)
	assert.False(t, ok)

	records := selectorRecords()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		r, ok := ps.Next(records)
		assert.True(t, ok)
		seen[r.IPAddress] = true
	}
	assert.Len(t, seen, len(records))
}

func TestSequenceSelectorWraps(t *testing.T) {
	ps := newSequenceSelector(1, -1, 4, -5)
	records := selectorRecords()

	var ips []string
	for i := 0; i < 4; i++ {
		r, ok := ps.Next(records)
		assert.True(t, ok)
		ips = append(ips, r.IPAddress)
	}
	assert.Equal(t, []string{"10.0.0.2", "10.0.0.3", "10.0.0.2", "10.0.0.2"}, ips)
}
