package ui

// silenceStream implements io.Reader as an audio source that always
// returns silence. The APU is out of scope for this core; ebiten still
// wants an audio.Player wired up, so this stub zero-fills every buffer
// the player asks for rather than leaving the audio output disconnected.
type silenceStream struct{}

func (silenceStream) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}
