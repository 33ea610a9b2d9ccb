package infrastructure

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/yourusername/medialink-go/internal/domain"
)

// maxFrameSize guards against a corrupt length prefix; the browser caps
// messages it will accept at 1MB anyway.
const maxFrameSize = 16 << 20

// Transport speaks the native-messaging framing: a 4-byte little-endian
// length prefix followed by a JSON body, over a bidirectional byte stream
// (stdin/stdout when attached to the browser).
type Transport struct {
	r *bufio.Reader

	wmu sync.Mutex
	w   io.Writer
}

// NewTransport wraps a read/write pair in the framed codec
func NewTransport(r io.Reader, w io.Writer) *Transport {
	return &Transport{r: bufio.NewReader(r), w: w}
}

// Receive blocks for the next framed request. Returns io.EOF when the caller
// closed its end of the stream.
func (t *Transport) Receive() (*domain.Request, error) {
	var length uint32
	if err := binary.Read(t.r, binary.LittleEndian, &length); err != nil {
		return nil, err
	}
	if length == 0 || length > maxFrameSize {
		return nil, fmt.Errorf("invalid frame length: %d", length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(t.r, body); err != nil {
		return nil, fmt.Errorf("short frame read: %w", err)
	}

	var req domain.Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("malformed request frame: %w", err)
	}
	return &req, nil
}

// Send frames and writes one event. Serialized by an internal lock so pushes
// from different sessions never interleave on the wire.
func (t *Transport) Send(ev domain.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if len(body) > maxFrameSize {
		return fmt.Errorf("event frame too large: %d bytes", len(body))
	}

	t.wmu.Lock()
	defer t.wmu.Unlock()

	var prefix [4]byte
	binary.LittleEndian.PutUint32(prefix[:], uint32(len(body)))
	if _, err := t.w.Write(prefix[:]); err != nil {
		return err
	}
	_, err = t.w.Write(body)
	return err
}
