// Command gbemu is the windowed frontend: loads a ROM, opens a window via
// ebiten, and persists battery RAM next to the ROM on exit.
package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/kestrelsys/dmgcore/internal/cart"
	"github.com/kestrelsys/dmgcore/internal/emu"
	"github.com/kestrelsys/dmgcore/internal/ui"
)

func main() {
	romPath := flag.String("rom", "", "path to ROM (.gb)")
	bootPath := flag.String("bootrom", "", "optional DMG boot ROM")
	scale := flag.Int("scale", 3, "window scale")
	title := flag.String("title", "gbemu", "window title")
	trace := flag.Bool("trace", false, "CPU trace log")
	saveRAM := flag.Bool("save", true, "persist battery RAM to ROM.sav on exit and load on start")
	flag.Parse()

	if *romPath == "" {
		log.Fatal("gbemu: -rom is required")
	}
	rom, err := os.ReadFile(*romPath)
	if err != nil {
		log.Fatalf("gbemu: read rom: %v", err)
	}
	var boot []byte
	if *bootPath != "" {
		boot, err = os.ReadFile(*bootPath)
		if err != nil {
			log.Fatalf("gbemu: read boot rom: %v", err)
		}
	}

	if h, err := cart.ParseHeader(rom); err == nil {
		log.Printf("gbemu: loaded %q type=%s banks=%d ram=%dB", h.Title, h.CartTypeStr, h.ROMBanks, h.RAMSizeBytes)
	}

	m := emu.New(emu.Config{Trace: *trace})
	if err := m.LoadCartridge(rom, boot); err != nil {
		log.Fatalf("gbemu: load cart: %v", err)
	}

	savPath := strings.TrimSuffix(*romPath, ".gb") + ".sav"
	if *saveRAM {
		if data, err := os.ReadFile(savPath); err == nil {
			if m.LoadBattery(data) {
				log.Printf("gbemu: loaded save RAM: %s (%d bytes)", savPath, len(data))
			}
		}
	}

	app := ui.NewApp(ui.Config{Title: *title, Scale: *scale}, m)
	runErr := app.Run()

	if *saveRAM {
		if data, ok := m.SaveBattery(); ok {
			if err := os.WriteFile(savPath, data, 0o644); err == nil {
				log.Printf("gbemu: wrote %s", savPath)
			}
		}
	}
	if runErr != nil {
		log.Fatal(runErr)
	}
}
