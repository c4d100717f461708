package ppu

// greyShades is the fixed DMG palette: the four 2-bit color indices map to
// these RGB triples regardless of which of BGP/OBP0/OBP1 produced the index.
var greyShades = [4][3]byte{
	{255, 255, 255},
	{169, 169, 169},
	{84, 84, 84},
	{0, 0, 0},
}

// derivePalette splits a palette register byte into four 2-bit indices and
// resolves each through greyShades.
func derivePalette(value byte) [4][3]byte {
	var pal [4][3]byte
	for i := 0; i < 4; i++ {
		idx := (value >> uint(i*2)) & 0x03
		pal[i] = greyShades[idx]
	}
	return pal
}
