package domain

import "sync"

// IDSequence hands out ticket ids. It only ever moves forward: Advance raises
// the high-water mark to an id seen elsewhere (such as in the log) and never
// lowers it, so ids are not reissued after a delete or a restart.
type IDSequence struct {
	mu   sync.Mutex
	last int64
}

// NewIDSequence starts a sequence whose next id is last+1.
func NewIDSequence(last int64) *IDSequence {
	if last < 0 {
		last = 0
	}
	return &IDSequence{last: last}
}

// Next reserves and returns the next id.
func (s *IDSequence) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last++
	return s.last
}

// Advance raises the high-water mark to seen if it is larger.
func (s *IDSequence) Advance(seen int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seen > s.last {
		s.last = seen
	}
}

// Current returns the last id handed out or observed.
func (s *IDSequence) Current() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// NewTicket assigns the next id to in and applies request type defaults.
func (s *IDSequence) NewTicket(in TicketInput) Ticket {
	rt := in.Type
	if rt == "" {
		rt = RequestTypeOther
	}
	priority := rt.DefaultPriority()
	if in.Priority != nil {
		priority = *in.Priority
	}
	level := rt.DefaultSecurityLevel()
	if in.SecurityLevel != nil {
		level = *in.SecurityLevel
	}
	return Ticket{
		ID:            s.Next(),
		Title:         in.Title,
		Creator:       in.Creator,
		Priority:      priority,
		SecurityLevel: level,
		Status:        TicketStatusOpen,
		Type:          rt,
	}
}
