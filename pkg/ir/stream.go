package ir

// Handle is a stable reference to an instruction in a Stream.
// Handles survive insertions; they are never reused.
type Handle int32

// NoHandle is the nil handle
const NoHandle Handle = -1

type slot struct {
	instr      Instr
	prev, next Handle
}

// Stream is an arena of instructions linked in program order.
type Stream struct {
	slots      []slot
	head, tail Handle
	count      int
}

// NewStream creates an empty instruction stream
func NewStream() *Stream {
	return &Stream{head: NoHandle, tail: NoHandle}
}

// Len returns the number of instructions in the stream
func (s *Stream) Len() int {
	return s.count
}

func (s *Stream) alloc(in Instr) Handle {
	h := Handle(len(s.slots))
	s.slots = append(s.slots, slot{instr: in, prev: NoHandle, next: NoHandle})
	s.count++
	return h
}

// Append adds an instruction at the end of the stream.
func (s *Stream) Append(in Instr) Handle {
	h := s.alloc(in)
	if s.tail == NoHandle {
		s.head, s.tail = h, h
		return h
	}
	s.slots[h].prev = s.tail
	s.slots[s.tail].next = h
	s.tail = h
	return h
}

// InsertBefore links a new instruction immediately before at.
func (s *Stream) InsertBefore(at Handle, in Instr) Handle {
	h := s.alloc(in)
	prev := s.slots[at].prev
	s.slots[h].prev = prev
	s.slots[h].next = at
	s.slots[at].prev = h
	if prev == NoHandle {
		s.head = h
	} else {
		s.slots[prev].next = h
	}
	return h
}

// InsertAfter links a new instruction immediately after at.
func (s *Stream) InsertAfter(at Handle, in Instr) Handle {
	h := s.alloc(in)
	next := s.slots[at].next
	s.slots[h].prev = at
	s.slots[h].next = next
	s.slots[at].next = h
	if next == NoHandle {
		s.tail = h
	} else {
		s.slots[next].prev = h
	}
	return h
}

// At returns the instruction for h. The pointer is only valid until the
// next insertion; hold on to the handle instead.
func (s *Stream) At(h Handle) *Instr {
	return &s.slots[h].instr
}

// Handles returns every handle in program order.
func (s *Stream) Handles() []Handle {
	order := make([]Handle, 0, s.count)
	for h := s.head; h != NoHandle; h = s.slots[h].next {
		order = append(order, h)
	}
	return order
}

// Instrs returns a copy of the instructions in program order
func (s *Stream) Instrs() []Instr {
	out := make([]Instr, 0, s.count)
	for h := s.head; h != NoHandle; h = s.slots[h].next {
		out = append(out, s.slots[h].instr)
	}
	return out
}
