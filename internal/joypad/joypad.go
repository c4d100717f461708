// Package joypad decodes the key matrix exposed at 0xFF00 and raises the
// Joypad interrupt on a released-to-pressed transition, per the bus's
// JOYP contract.
package joypad

import (
	"bytes"
	"encoding/gob"
)

// Button bitmasks for SetState. A set bit means "pressed".
const (
	Right = 1 << iota
	Left
	Up
	Down
	A
	B
	Select
	Start
)

// InterruptRequester requests interrupt bit `bit`.
type InterruptRequester func(bit int)

// Joypad holds the current button mask and the last-selected matrix half.
type Joypad struct {
	selectBits byte // bits 5:4 as last written to FF00
	pressed    byte // Button bitmask, set = pressed
	lowerNibl  byte // last computed active-low lower nibble, for edge detection

	req InterruptRequester
}

func New(req InterruptRequester) *Joypad { return &Joypad{req: req} }

// Select stores the bits written to FF00 bits 5:4 (P15/P14 select lines).
func (j *Joypad) Select(value byte) {
	j.selectBits = value & 0x30
	j.recompute()
}

// Read returns the FF00 byte: bits 7:6 read high, bits 5:4 reflect the
// current selection, bits 3:0 are active-low per the selected half(es).
func (j *Joypad) Read() byte {
	return 0xC0 | (j.selectBits & 0x30) | j.currentLower()
}

func (j *Joypad) currentLower() byte {
	lower := byte(0x0F)
	if j.selectBits&0x10 == 0 { // P14 low selects D-pad
		if j.pressed&Right != 0 {
			lower &^= 0x01
		}
		if j.pressed&Left != 0 {
			lower &^= 0x02
		}
		if j.pressed&Up != 0 {
			lower &^= 0x04
		}
		if j.pressed&Down != 0 {
			lower &^= 0x08
		}
	}
	if j.selectBits&0x20 == 0 { // P15 low selects buttons
		if j.pressed&A != 0 {
			lower &^= 0x01
		}
		if j.pressed&B != 0 {
			lower &^= 0x02
		}
		if j.pressed&Select != 0 {
			lower &^= 0x04
		}
		if j.pressed&Start != 0 {
			lower &^= 0x08
		}
	}
	return lower
}

// SetState replaces the pressed-button mask and raises the Joypad
// interrupt on any 1->0 (released-to-pressed) transition of the visible
// lower nibble.
func (j *Joypad) SetState(mask byte) {
	j.pressed = mask
	j.recompute()
}

func (j *Joypad) recompute() {
	newLower := j.currentLower()
	falling := j.lowerNibl &^ newLower
	if falling != 0 && j.req != nil {
		j.req(4)
	}
	j.lowerNibl = newLower
}

type state struct {
	SelectBits, Pressed, LowerNibl byte
}

func (j *Joypad) SaveState() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(state{j.selectBits, j.pressed, j.lowerNibl})
	return buf.Bytes()
}

func (j *Joypad) LoadState(data []byte) {
	var s state
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	j.selectBits, j.pressed, j.lowerNibl = s.SelectBits, s.Pressed, s.LowerNibl
}
