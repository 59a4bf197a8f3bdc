package device

import (
	"sync"

	"github.com/pthm-cable/touchfield/history"
)

// CallKind identifies an output call made to a Simulated device.
type CallKind int

const (
	CallSetForce CallKind = iota
	CallEnable
	CallDisable
	CallClose
)

func (k CallKind) String() string {
	switch k {
	case CallSetForce:
		return "set_force"
	case CallEnable:
		return "enable"
	case CallDisable:
		return "disable"
	case CallClose:
		return "close"
	}
	return "unknown"
}

// Call is one recorded output call.
type Call struct {
	Kind  CallKind
	Force Vec3f
}

// callLog is the number of recent calls a Simulated device remembers.
const callLog = 256

// Simulated is an in-memory probe driven by the keyboard, the mouse or a
// test. It records the forces it is asked to render.
type Simulated struct {
	mu       sync.Mutex
	open     bool
	pos      Vec3f
	buttons  uint32
	enabled  bool
	force    Vec3f
	setCalls int
	calls    *history.Sized[Call]

	// Failures injected by tests and tools.
	openErr  error
	readErr  error
	writeErr error
}

// NewSimulated creates a closed simulated device resting at the origin.
func NewSimulated() *Simulated {
	return &Simulated{calls: history.New[Call](callLog)}
}

// FailOpen makes the next Open calls fail with err (nil clears).
func (s *Simulated) FailOpen(err error) {
	s.mu.Lock()
	s.openErr = err
	s.mu.Unlock()
}

// FailReads makes Position and Button fail with err (nil clears).
func (s *Simulated) FailReads(err error) {
	s.mu.Lock()
	s.readErr = err
	s.mu.Unlock()
}

// FailWrites makes SetForce fail with err (nil clears).
func (s *Simulated) FailWrites(err error) {
	s.mu.Lock()
	s.writeErr = err
	s.mu.Unlock()
}

func (s *Simulated) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return s.openErr
	}
	s.open = true
	return nil
}

func (s *Simulated) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil
	}
	s.open = false
	s.enabled = false
	s.calls.Push(Call{Kind: CallClose})
	return nil
}

func (s *Simulated) Position() (Vec3f, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return Vec3f{}, ErrNotOpen
	}
	if s.readErr != nil {
		return Vec3f{}, s.readErr
	}
	return s.pos, nil
}

func (s *Simulated) Button(id int) (bool, error) {
	if err := checkButton(id); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return false, ErrNotOpen
	}
	if s.readErr != nil {
		return false, s.readErr
	}
	return s.buttons&(1<<id) != 0, nil
}

func (s *Simulated) SetForce(f Vec3f) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrNotOpen
	}
	if s.writeErr != nil {
		return s.writeErr
	}
	s.force = f
	s.setCalls++
	s.calls.Push(Call{Kind: CallSetForce, Force: f})
	return nil
}

func (s *Simulated) EnableForce(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrNotOpen
	}
	s.enabled = on
	kind := CallDisable
	if on {
		kind = CallEnable
	}
	s.calls.Push(Call{Kind: kind})
	return nil
}

// SetPosition moves the probe.
func (s *Simulated) SetPosition(p Vec3f) {
	s.mu.Lock()
	s.pos = p
	s.mu.Unlock()
}

// Nudge moves the probe by d.
func (s *Simulated) Nudge(d Vec3f) {
	s.mu.Lock()
	for i := range s.pos {
		s.pos[i] += d[i]
	}
	s.mu.Unlock()
}

// SetButton presses or releases a button. Out-of-range ids are ignored.
func (s *Simulated) SetButton(id int, down bool) {
	if checkButton(id) != nil {
		return
	}
	s.mu.Lock()
	if down {
		s.buttons |= 1 << id
	} else {
		s.buttons &^= 1 << id
	}
	s.mu.Unlock()
}

// IsOpen reports whether the device is open.
func (s *Simulated) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Enabled reports whether force output is armed.
func (s *Simulated) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// LastForce returns the most recent force written.
func (s *Simulated) LastForce() Vec3f {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.force
}

// SetForceCalls returns how many times SetForce succeeded.
func (s *Simulated) SetForceCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setCalls
}

// Calls returns the remembered output calls, oldest first.
func (s *Simulated) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.calls.Len()
	out := make([]Call, 0, n)
	for i := n - 1; i >= 0; i-- {
		c, _ := s.calls.Back(i)
		out = append(out, c)
	}
	return out
}
