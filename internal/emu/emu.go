// Package emu composes the CPU, bus, cartridge, and peripherals into a
// runnable Machine: ROM loading, the per-frame step loop, battery and
// snapshot persistence, and a batch conformance-suite runner.
package emu

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kestrelsys/dmgcore/internal/bus"
	"github.com/kestrelsys/dmgcore/internal/cart"
	"github.com/kestrelsys/dmgcore/internal/cpu"
	"github.com/kestrelsys/dmgcore/internal/snapshot"
)

// cyclesPerFrame is 154 scanlines * 456 base clocks.
const cyclesPerFrame = 70224

// Buttons is the caller-facing joypad state for a single frame.
type Buttons struct {
	A, B, Start, Select   bool
	Up, Down, Left, Right bool
}

func (b Buttons) mask() byte {
	var m byte
	if b.A {
		m |= bus.JoypA
	}
	if b.B {
		m |= bus.JoypB
	}
	if b.Start {
		m |= bus.JoypStart
	}
	if b.Select {
		m |= bus.JoypSelectBtn
	}
	if b.Up {
		m |= bus.JoypUp
	}
	if b.Down {
		m |= bus.JoypDown
	}
	if b.Left {
		m |= bus.JoypLeft
	}
	if b.Right {
		m |= bus.JoypRight
	}
	return m
}

// Machine wires a CPU, bus, and cartridge together and drives the frame loop.
type Machine struct {
	cfg Config

	cpu *cpu.CPU
	bus *bus.Bus

	romPath string
	header  *cart.Header
	fb      []byte // RGBA 160x144*4
	w, h    int
}

// New constructs a Machine with no cartridge loaded.
func New(cfg Config) *Machine {
	return &Machine{cfg: cfg, w: 160, h: 144, fb: make([]byte, 160*144*4)}
}

// LoadCartridge wires a fresh Bus/CPU around rom and, when boot is
// non-empty, maps it in at 0x0000 until disabled by the boot ROM itself.
func (m *Machine) LoadCartridge(rom []byte, boot []byte) error {
	h, err := cart.ParseHeader(rom)
	if err != nil {
		return fmt.Errorf("emu: %w", err)
	}
	m.header = h

	b := bus.New(rom)
	if len(boot) > 0 && !m.cfg.SkipBoot {
		b.SetBootROM(boot)
	}
	m.bus = b
	m.cpu = cpu.New(b)
	if m.cfg.SkipBoot || len(boot) == 0 {
		m.cpu.ResetNoBoot()
		m.cpu.SetPC(0x0100)
	}
	if m.cfg.TimerDebug {
		b.SetTimerDebug(true)
	}
	if m.cfg.Trace {
		m.cpu.Trace = func(pc uint16, opcode byte) {
			log.Printf("emu: pc=%04X op=%02X", pc, opcode)
		}
	}
	return nil
}

// LoadROMFromFile reads rom from disk and loads it with no boot ROM.
func (m *Machine) LoadROMFromFile(path string) error {
	rom, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("emu: read rom: %w", err)
	}
	if err := m.LoadCartridge(rom, nil); err != nil {
		return err
	}
	m.romPath = path
	return nil
}

// ROMPath returns the path LoadROMFromFile was called with, or "".
func (m *Machine) ROMPath() string { return m.romPath }

// ROMTitle returns the cartridge header title, or "" if none is loaded.
func (m *Machine) ROMTitle() string {
	if m.header == nil {
		return ""
	}
	return m.header.Title
}

// SetButtons stores the joypad state the CPU will observe on its next
// 0xFF00 read.
func (m *Machine) SetButtons(b Buttons) {
	if m.bus != nil {
		m.bus.SetJoypadState(b.mask())
	}
}

// SetSerialWriter routes serial (0xFF01/0xFF02) output to w.
func (m *Machine) SetSerialWriter(w io.Writer) {
	if m.bus != nil {
		m.bus.SetSerialWriter(w)
	}
}

// SetBootROM maps data at 0x0000 until the boot ROM disables itself.
func (m *Machine) SetBootROM(data []byte) {
	if m.bus != nil {
		m.bus.SetBootROM(data)
	}
}

// stepCycles runs CPU instructions until at least cyclesPerFrame base
// clocks have been charged to the bus.
func (m *Machine) stepCycles() {
	total := 0
	for total < cyclesPerFrame {
		total += m.cpu.Step()
	}
}

// StepFrame advances one frame's worth of cycles and refreshes the RGBA
// framebuffer from the PPU.
func (m *Machine) StepFrame() {
	m.stepCycles()
	fb := m.bus.PPU().Framebuffer()
	for y := 0; y < m.h; y++ {
		for x := 0; x < m.w; x++ {
			i := (y*m.w + x) * 4
			px := fb[y][x]
			m.fb[i+0] = px[0]
			m.fb[i+1] = px[1]
			m.fb[i+2] = px[2]
			m.fb[i+3] = 0xFF
		}
	}
}

// StepFrameNoRender advances one frame's worth of cycles without
// converting the PPU framebuffer to RGBA, for headless/conformance use.
func (m *Machine) StepFrameNoRender() {
	m.stepCycles()
}

// Framebuffer returns the RGBA 160x144 framebuffer from the most recent
// StepFrame call.
func (m *Machine) Framebuffer() []byte { return m.fb }

// SaveBattery returns the cartridge's external RAM contents. ok is false
// if the cartridge has no battery-backed RAM to save.
func (m *Machine) SaveBattery() (data []byte, ok bool) {
	if bb, ok := m.bus.Cart().(cart.BatteryBacked); ok {
		return bb.SaveRAM(), true
	}
	return nil, false
}

// LoadBattery restores external RAM contents saved by SaveBattery. ok is
// false if the cartridge has no battery-backed RAM to restore into.
func (m *Machine) LoadBattery(data []byte) (ok bool) {
	if bb, ok := m.bus.Cart().(cart.BatteryBacked); ok {
		bb.LoadRAM(data)
		return true
	}
	return false
}

// SaveSnapshot captures the full machine state as a compressed, checksum-
// tagged blob.
func (m *Machine) SaveSnapshot() ([]byte, error) {
	if m.bus == nil || m.header == nil {
		return nil, fmt.Errorf("emu: no cartridge loaded")
	}
	return snapshot.Encode(m.header.HeaderChecksum, m.bus.SaveState())
}

// LoadSnapshot restores machine state from a blob produced by
// SaveSnapshot, refusing one tagged for a different cartridge.
func (m *Machine) LoadSnapshot(data []byte) error {
	if m.bus == nil || m.header == nil {
		return fmt.Errorf("emu: no cartridge loaded")
	}
	payload, err := snapshot.Decode(data, m.header.HeaderChecksum)
	if err != nil {
		return err
	}
	m.bus.LoadState(payload)
	return nil
}

// ConformanceResult is one ROM's outcome from RunConformanceSuite.
type ConformanceResult struct {
	ROMPath string
	Passed  bool
	Output  string
}

type serialBuf struct{ b []byte }

func (s *serialBuf) Write(p []byte) (int, error) {
	s.b = append(s.b, p...)
	return len(p), nil
}

// RunConformanceSuite loads and runs each ROM in its own Machine,
// concurrently (bounded by concurrency), until its serial sink reports
// "Passed"/"Failed" or maxFrames is exhausted. One ROM's failure does not
// abort the others already in flight.
func RunConformanceSuite(romPaths []string, maxFrames, concurrency int) ([]ConformanceResult, error) {
	results := make([]ConformanceResult, len(romPaths))
	var g errgroup.Group
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, path := range romPaths {
		i, path := i, path
		g.Go(func() error {
			m := New(Config{})
			if err := m.LoadROMFromFile(path); err != nil {
				results[i] = ConformanceResult{ROMPath: path, Passed: false, Output: err.Error()}
				return nil
			}
			var sb serialBuf
			m.SetSerialWriter(&sb)
			passed := false
			for f := 0; f < maxFrames; f++ {
				m.StepFrameNoRender()
				out := strings.ToLower(string(sb.b))
				if strings.Contains(out, "passed") {
					passed = true
					break
				}
				if strings.Contains(out, "failed") {
					break
				}
			}
			results[i] = ConformanceResult{ROMPath: path, Passed: passed, Output: string(sb.b)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
