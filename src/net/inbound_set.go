package net

import "sync"

// InboundSet keeps track of the connections accepted by the listener, in the
// order they were accepted.
type InboundSet struct {
	sync.RWMutex
	conns []Conn
}

// NewInboundSet creates an empty InboundSet.
func NewInboundSet() *InboundSet {
	return &InboundSet{}
}

// Add registers an accepted connection.
func (s *InboundSet) Add(conn Conn) {
	s.Lock()
	s.conns = append(s.conns, conn)
	s.Unlock()
}

// Remove forgets conn. It does not close it.
func (s *InboundSet) Remove(conn Conn) {
	s.Lock()
	defer s.Unlock()

	for i, c := range s.conns {
		if c == conn {
			s.conns = append(s.conns[:i], s.conns[i+1:]...)
			return
		}
	}
}

// IPs returns the remote ip of every inbound connection. An ip connected
// twice appears twice.
func (s *InboundSet) IPs() []string {
	s.RLock()
	defer s.RUnlock()

	res := make([]string, 0, len(s.conns))
	for _, c := range s.conns {
		res = append(res, c.RemoteIP())
	}
	return res
}

// Close closes and forgets every inbound connection from ip. It returns false
// when there was none.
func (s *InboundSet) Close(ip string, code StatusCode, reason string) bool {
	s.Lock()
	var matched []Conn
	kept := s.conns[:0]
	for _, c := range s.conns {
		if c.RemoteIP() == ip {
			matched = append(matched, c)
		} else {
			kept = append(kept, c)
		}
	}
	s.conns = kept
	s.Unlock()

	for _, c := range matched {
		c.Close(code, reason)
	}

	return len(matched) > 0
}

// CloseAll closes and forgets every inbound connection.
func (s *InboundSet) CloseAll(code StatusCode, reason string) {
	s.Lock()
	conns := s.conns
	s.conns = nil
	s.Unlock()

	for _, c := range conns {
		c.Close(code, reason)
	}
}

// Len returns the number of inbound connections.
func (s *InboundSet) Len() int {
	s.RLock()
	defer s.RUnlock()
	return len(s.conns)
}
