package haptics

import "fmt"

// State is the loop's connection state.
type State int32

const (
	Disconnected State = iota
	Connected
	ForceActive
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case ForceActive:
		return "force_active"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(text []byte) error {
	for _, c := range []State{Disconnected, Connected, ForceActive} {
		if c.String() == string(text) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}
