package main

import (
	"math"
	"testing"

	"github.com/gdamore/tcell/v2"
)

func key(k tcell.Key) *tcell.EventKey {
	return tcell.NewEventKey(k, 0, tcell.ModNone)
}

func runeKey(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}

func TestProbeMovement(t *testing.T) {
	p := probe{U: 0.5, V: 0.5}

	p.handleKey(key(tcell.KeyRight))
	p.handleKey(key(tcell.KeyUp))
	p.handleKey(runeKey('w'))
	if math.Abs(p.U-0.51) > 1e-9 || math.Abs(p.V-0.49) > 1e-9 || math.Abs(p.Z-heightStep) > 1e-9 {
		t.Errorf("unexpected probe %+v", p)
	}

	p.handleKey(tcell.NewEventKey(tcell.KeyLeft, 0, tcell.ModShift))
	if math.Abs(p.U-0.46) > 1e-9 {
		t.Errorf("expected shift to move 5 steps, got u=%g", p.U)
	}
}

func TestProbeClampsToSurface(t *testing.T) {
	p := probe{U: 0.995}
	p.handleKey(key(tcell.KeyRight))
	if p.U != 1 {
		t.Errorf("expected u clamped to 1, got %g", p.U)
	}
}

func TestProbeActions(t *testing.T) {
	p := probe{}
	tests := []struct {
		ev   *tcell.EventKey
		want action
	}{
		{key(tcell.KeyEscape), actionQuit},
		{runeKey('q'), actionQuit},
		{runeKey(' '), actionToggleForce},
		{runeKey('f'), actionNextFriction},
		{runeKey('b'), actionNone},
	}
	for _, tc := range tests {
		if got := p.handleKey(tc.ev); got != tc.want {
			t.Errorf("key %v: expected action %d, got %d", tc.ev.Name(), tc.want, got)
		}
	}
	if !p.Button {
		t.Error("expected b to toggle the button")
	}
}

func TestShade(t *testing.T) {
	if got := shade(-1, 1); got != ' ' {
		t.Errorf("expected lowest shade, got %q", got)
	}
	if got := shade(1, 1); got != '@' {
		t.Errorf("expected highest shade, got %q", got)
	}
	if got := shade(float32(math.NaN()), 1); got != 'x' {
		t.Errorf("expected missing marker, got %q", got)
	}
}
