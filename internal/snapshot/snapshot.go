// Package snapshot wraps the core's gob-encoded save states in a
// compressed, checksum-tagged envelope so a blob produced for one
// cartridge cannot be silently loaded against another.
package snapshot

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// envelope is the gob-encoded payload inside the gzip stream.
type envelope struct {
	SessionID      uuid.UUID
	HeaderChecksum byte
	Payload        []byte
}

// Encode compresses payload (typically a Bus.SaveState() blob) and tags
// it with a fresh session id and the cartridge header checksum it was
// captured against.
func Encode(headerChecksum byte, payload []byte) ([]byte, error) {
	env := envelope{
		SessionID:      uuid.New(),
		HeaderChecksum: headerChecksum,
		Payload:        payload,
	}

	var gobBuf bytes.Buffer
	if err := gob.NewEncoder(&gobBuf).Encode(env); err != nil {
		return nil, fmt.Errorf("snapshot: encode: %w", err)
	}

	var out bytes.Buffer
	gz := gzip.NewWriter(&out)
	if _, err := gz.Write(gobBuf.Bytes()); err != nil {
		return nil, fmt.Errorf("snapshot: gzip write: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("snapshot: gzip close: %w", err)
	}
	return out.Bytes(), nil
}

// Decode decompresses data and returns the inner payload, refusing (with
// an error, never a panic) a snapshot whose tagged header checksum does
// not match wantChecksum.
func Decode(data []byte, wantChecksum byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("snapshot: gzip reader: %w", err)
	}
	defer gz.Close()

	gobBytes, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("snapshot: gzip read: %w", err)
	}

	var env envelope
	if err := gob.NewDecoder(bytes.NewReader(gobBytes)).Decode(&env); err != nil {
		return nil, fmt.Errorf("snapshot: decode: %w", err)
	}

	if env.HeaderChecksum != wantChecksum {
		return nil, fmt.Errorf("snapshot: header checksum mismatch: snapshot is from session %s, tagged for checksum %#02x, want %#02x",
			env.SessionID, env.HeaderChecksum, wantChecksum)
	}
	return env.Payload, nil
}
