// Package ui is the windowed ebiten frontend: it presents the Machine's
// framebuffer scaled to a window and maps key events to the joypad.
package ui

import (
	"fmt"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"

	"github.com/kestrelsys/dmgcore/internal/emu"
)

// App is an ebiten.Game driving one Machine.
type App struct {
	cfg Config
	m   *emu.Machine
	tex *ebiten.Image

	audioCtx    *audio.Context
	audioPlayer *audio.Player

	paused bool
}

// NewApp builds an App around an already-loaded Machine.
func NewApp(cfg Config, m *emu.Machine) *App {
	cfg.Defaults()
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(160*cfg.Scale, 144*cfg.Scale)

	a := &App{cfg: cfg, m: m, tex: ebiten.NewImage(160, 144)}

	a.audioCtx = audio.NewContext(48000)
	if p, err := a.audioCtx.NewPlayer(silenceStream{}); err == nil {
		a.audioPlayer = p
		a.audioPlayer.Play()
	}
	return a
}

var keyMap = []struct {
	key ebiten.Key
	set func(*emu.Buttons)
}{
	{ebiten.KeyZ, func(b *emu.Buttons) { b.A = true }},
	{ebiten.KeyX, func(b *emu.Buttons) { b.B = true }},
	{ebiten.KeyEnter, func(b *emu.Buttons) { b.Start = true }},
	{ebiten.KeyShift, func(b *emu.Buttons) { b.Select = true }},
	{ebiten.KeyUp, func(b *emu.Buttons) { b.Up = true }},
	{ebiten.KeyDown, func(b *emu.Buttons) { b.Down = true }},
	{ebiten.KeyLeft, func(b *emu.Buttons) { b.Left = true }},
	{ebiten.KeyRight, func(b *emu.Buttons) { b.Right = true }},
}

func (a *App) pollButtons() emu.Buttons {
	var b emu.Buttons
	for _, k := range keyMap {
		if ebiten.IsKeyPressed(k.key) {
			k.set(&b)
		}
	}
	return b
}

// Update advances one frame: sampling input, stepping the machine, and
// refreshing the displayed texture.
func (a *App) Update() error {
	if ebiten.IsKeyPressed(ebiten.KeyP) && !a.paused {
		a.paused = true
	} else if !ebiten.IsKeyPressed(ebiten.KeyP) {
		a.paused = false
	}
	if a.paused {
		return nil
	}

	a.m.SetButtons(a.pollButtons())
	a.m.StepFrame()
	a.tex.WritePixels(a.m.Framebuffer())
	return nil
}

// Draw paints the current texture scaled to the window.
func (a *App) Draw(screen *ebiten.Image) {
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(a.cfg.Scale), float64(a.cfg.Scale))
	screen.DrawImage(a.tex, op)
	if a.paused {
		ebiten.SetWindowTitle(fmt.Sprintf("%s (paused)", a.cfg.Title))
	} else {
		ebiten.SetWindowTitle(a.cfg.Title)
	}
}

// Layout reports the fixed logical screen size; ebiten scales it to the window.
func (a *App) Layout(outsideWidth, outsideHeight int) (int, int) {
	return 160, 144
}

// Run hands control to ebiten's game loop until the window closes.
func (a *App) Run() error {
	return ebiten.RunGame(a)
}
