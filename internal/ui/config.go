package ui

// Config contains window/input related settings for the viewer.
type Config struct {
	Title string // window title
	Scale int    // integer upscaling factor
}

// Defaults fills missing fields with reasonable defaults.
func (c *Config) Defaults() {
	if c.Title == "" {
		c.Title = "dmgcore"
	}
	if c.Scale <= 0 {
		c.Scale = 3
	}
}
