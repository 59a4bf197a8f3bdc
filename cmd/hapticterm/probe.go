package main

import (
	"github.com/gdamore/tcell/v2"
)

const (
	lateralStep = 0.01
	heightStep  = 0.002
)

// probe is the keyboard-driven probe state in surface coordinates.
type probe struct {
	U, V, Z float64
	Button  bool
}

// action is what a key asks the main loop to do besides moving the probe.
type action int

const (
	actionNone action = iota
	actionQuit
	actionToggleForce
	actionNextFriction
)

// handleKey applies ev to p and returns any follow-up action.
func (p *probe) handleKey(ev *tcell.EventKey) action {
	step := lateralStep
	if ev.Modifiers()&tcell.ModShift != 0 {
		step *= 5
	}
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return actionQuit
	case tcell.KeyLeft:
		p.U = clamp01(p.U - step)
	case tcell.KeyRight:
		p.U = clamp01(p.U + step)
	case tcell.KeyUp:
		p.V = clamp01(p.V - step)
	case tcell.KeyDown:
		p.V = clamp01(p.V + step)
	case tcell.KeyPgUp:
		p.Z += heightStep
	case tcell.KeyPgDn:
		p.Z -= heightStep
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			return actionQuit
		case 'w':
			p.Z += heightStep
		case 's':
			p.Z -= heightStep
		case 'b':
			p.Button = !p.Button
		case 'f':
			return actionNextFriction
		case ' ':
			return actionToggleForce
		}
	}
	return actionNone
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
