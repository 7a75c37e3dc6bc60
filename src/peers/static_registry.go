package peers

import (
	"context"
	"sync"
)

// StaticRegistry is used to provide an in-memory list of node records. The
// list can be replaced or edited at runtime.
type StaticRegistry struct {
	l       sync.Mutex
	records []NodeRecord
}

// NewStaticRegistry creates a StaticRegistry holding a copy of records.
func NewStaticRegistry(records ...NodeRecord) *StaticRegistry {
	s := &StaticRegistry{}
	s.SetRecords(records)
	return s
}

// Query implements the Registry interface.
func (s *StaticRegistry) Query(ctx context.Context, pubKeyFilter string) ([]NodeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.l.Lock()
	defer s.l.Unlock()

	return copyRecords(filterRecords(s.records, pubKeyFilter)), nil
}

// SetRecords replaces the whole list.
func (s *StaticRegistry) SetRecords(records []NodeRecord) {
	s.l.Lock()
	s.records = copyRecords(records)
	s.l.Unlock()
}

// SetStatus changes the status of every record with the given public key. It
// returns the number of records changed.
func (s *StaticRegistry) SetStatus(pubKey, status string) int {
	s.l.Lock()
	defer s.l.Unlock()

	n := 0
	for i := range s.records {
		if s.records[i].PubKey == pubKey {
			s.records[i].Status = status
			n++
		}
	}
	return n
}

func copyRecords(records []NodeRecord) []NodeRecord {
	res := make([]NodeRecord, len(records))
	copy(res, records)
	return res
}
