package peers

import (
	"context"
	"strings"
)

// StatusEnabled is the registry status of trusted nodes.
const StatusEnabled = "ENABLED"

// NodeRecord is one entry of the network registry.
type NodeRecord struct {
	PubKey    string `json:"pubkey" codec:"pubkey"`
	IPAddress string `json:"ipaddress" codec:"ipaddress"`
	Status    string `json:"status" codec:"status"`
}

// NewNodeRecord creates an ENABLED record.
func NewNodeRecord(pubKey, ipAddress string) NodeRecord {
	return NodeRecord{
		PubKey:    pubKey,
		IPAddress: ipAddress,
		Status:    StatusEnabled,
	}
}

// Enabled reports whether the record is trusted.
func (r NodeRecord) Enabled() bool {
	return r.Status == StatusEnabled
}

// Registry looks up node records. An empty pubKeyFilter returns the whole
// list; otherwise the implementation returns the records matching the filter,
// which may be an approximate match.
type Registry interface {
	Query(ctx context.Context, pubKeyFilter string) ([]NodeRecord, error)
}

// FindByPubKey returns the first record whose public key equals pubKey.
func FindByPubKey(records []NodeRecord, pubKey string) (NodeRecord, bool) {
	for _, r := range records {
		if r.PubKey == pubKey {
			return r, true
		}
	}
	return NodeRecord{}, false
}

// filterRecords keeps the records whose public key contains filter.
func filterRecords(records []NodeRecord, filter string) []NodeRecord {
	if filter == "" {
		return records
	}
	res := []NodeRecord{}
	for _, r := range records {
		if strings.Contains(r.PubKey, filter) {
			res = append(res, r)
		}
	}
	return res
}
