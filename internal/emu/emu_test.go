package emu

import (
	"strings"
	"testing"
)

func minimalROM(title string) []byte {
	rom := make([]byte, 0x8000)
	copy(rom[0x0134:0x0144], title)
	rom[0x0147] = 0x00 // ROM ONLY
	rom[0x0148] = 0x00 // 32 KiB
	rom[0x0149] = 0x00 // no RAM
	return rom
}

func TestLoadCartridgeAndTitle(t *testing.T) {
	m := New(Config{SkipBoot: true})
	if err := m.LoadCartridge(minimalROM("TESTGAME"), nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	if got := m.ROMTitle(); got != "TESTGAME" {
		t.Fatalf("title got %q want TESTGAME", got)
	}
}

func TestStepFrameAdvancesFramebuffer(t *testing.T) {
	m := New(Config{SkipBoot: true})
	rom := minimalROM("FB")
	rom[0x0100] = 0x00 // NOP forever (falls through to unimplemented -> NOP)
	if err := m.LoadCartridge(rom, nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	m.StepFrame()
	if len(m.Framebuffer()) != 160*144*4 {
		t.Fatalf("framebuffer size got %d want %d", len(m.Framebuffer()), 160*144*4)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	m := New(Config{SkipBoot: true})
	rom := minimalROM("SNAP")
	if err := m.LoadCartridge(rom, nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	m.StepFrame()
	data, err := m.SaveSnapshot()
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	m2 := New(Config{SkipBoot: true})
	if err := m2.LoadCartridge(rom, nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	if err := m2.LoadSnapshot(data); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
}

func TestSnapshotRefusesMismatchedCartridge(t *testing.T) {
	m := New(Config{SkipBoot: true})
	if err := m.LoadCartridge(minimalROM("ONE"), nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	data, err := m.SaveSnapshot()
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	other := minimalROM("TWO")
	other[0x014D] = 0x42 // force a different header checksum byte decode path
	m2 := New(Config{SkipBoot: true})
	if err := m2.LoadCartridge(other, nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	if err := m2.LoadSnapshot(data); err == nil {
		t.Fatalf("expected LoadSnapshot to refuse mismatched cartridge")
	}
}

func TestRunConformanceSuiteIsolatesFailures(t *testing.T) {
	// Two ROMs: cannot actually drive serial output without real test ROMs,
	// so this exercises that RunConformanceSuite completes and returns one
	// result per path without aborting on a missing file.
	results, err := RunConformanceSuite([]string{"/nonexistent/a.gb", "/nonexistent/b.gb"}, 2, 2)
	if err != nil {
		t.Fatalf("RunConformanceSuite: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results want 2", len(results))
	}
	for _, r := range results {
		if r.Passed {
			t.Fatalf("expected failure for missing ROM %s", r.ROMPath)
		}
		if !strings.Contains(r.Output, "read rom") {
			t.Fatalf("expected read-rom error in output, got %q", r.Output)
		}
	}
}
