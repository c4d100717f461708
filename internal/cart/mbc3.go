package cart

import (
	"bytes"
	"encoding/gob"
)

// MBC3 implements ROM/RAM banking plus the RTC register window. The RTC
// itself is stubbed: latch writes are accepted and RTC register selects
// (0x08-0x0C) read back 0xFF rather than driving a real clock, per the
// plumbing-only scope for real-time clock hardware.
//
// Banking behavior:
// - 0000-1FFF: RAM/RTC enable (0x0A in low nibble)
// - 2000-3FFF: ROM bank, 7 bits (0 maps to 1)
// - 4000-5FFF: RAM bank (0-3) or RTC register select (0x08-0x0C)
// - 6000-7FFF: RTC latch (no-op)
// - A000-BFFF: external RAM, or latched RTC register when one is selected
type MBC3 struct {
	rom []byte
	ram []byte

	ramEnabled bool
	romBank    byte // 7 bits, 0 remapped to 1
	ramBank    byte // 0-3, or an RTC register select (0x08-0x0C)
}

func NewMBC3(rom []byte, ramSize int) *MBC3 {
	m := &MBC3{rom: rom, romBank: 1}
	if ramSize > 0 {
		m.ram = make([]byte, ramSize)
	}
	return m
}

func (m *MBC3) Read(addr uint16) byte {
	switch {
	case addr < 0x4000:
		return m.rom[int(addr)&(len(m.rom)-1)]
	case addr < 0x8000:
		return m.rom[(int(m.romBank)*0x4000+int(addr-0x4000))&(len(m.rom)-1)]
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		if m.ramBank >= 0x08 {
			return 0xFF // RTC register read: stub
		}
		if len(m.ram) == 0 {
			return 0xFF
		}
		return m.ram[(int(m.ramBank&0x03)*0x2000+int(addr-0xA000))&(len(m.ram)-1)]
	default:
		return 0xFF
	}
}

func (m *MBC3) Write(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		m.ramEnabled = value&0x0F == 0x0A
	case addr < 0x4000:
		m.romBank = value & 0x7F
		if m.romBank == 0 {
			m.romBank = 1
		}
	case addr < 0x6000:
		m.ramBank = value & 0x0F
	case addr < 0x8000:
		// RTC latch: no-op without a real clock.
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled || m.ramBank >= 0x08 || len(m.ram) == 0 {
			return
		}
		m.ram[(int(m.ramBank&0x03)*0x2000+int(addr-0xA000))&(len(m.ram)-1)] = value
	}
}

type mbc3State struct {
	RamEnabled       bool
	RomBank, RamBank byte
	RAM              []byte
}

func (m *MBC3) SaveState() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(mbc3State{
		RamEnabled: m.ramEnabled, RomBank: m.romBank, RamBank: m.ramBank, RAM: m.ram,
	})
	return buf.Bytes()
}

func (m *MBC3) LoadState(data []byte) {
	var s mbc3State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	m.ramEnabled, m.romBank, m.ramBank = s.RamEnabled, s.RomBank, s.RamBank
	if len(s.RAM) == len(m.ram) {
		copy(m.ram, s.RAM)
	}
}

func (m *MBC3) SaveRAM() []byte {
	if len(m.ram) == 0 {
		return nil
	}
	out := make([]byte, len(m.ram))
	copy(out, m.ram)
	return out
}

func (m *MBC3) LoadRAM(data []byte) {
	if len(m.ram) == 0 || len(data) == 0 {
		return
	}
	copy(m.ram, data)
}
