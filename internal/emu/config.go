package emu

// Config contains settings that affect emulation behavior.
type Config struct {
	Trace      bool // log CPU instructions to stderr
	SkipBoot   bool // run as if no boot ROM were present
	Headless   bool // no window/audio output is expected
	TimerDebug bool // mirrors GB_DEBUG_TIMER for callers that set it programmatically
}
