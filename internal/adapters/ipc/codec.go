package ipc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Decoding errors that leave the stream usable.
var (
	// ErrUnknownType is returned for documents whose type is not part of the protocol.
	ErrUnknownType = errors.New("unknown message type")
	// ErrMalformed is returned for lines that are not a JSON message.
	ErrMalformed = errors.New("malformed message")
)

// maxLine bounds a single document.
const maxLine = 64 * 1024

// Encoder writes messages, one per line. Safe for concurrent use.
type Encoder struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewEncoder creates an encoder on w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{enc: json.NewEncoder(w)}
}

// Send writes msg followed by a newline.
func (e *Encoder) Send(msg Message) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enc.Encode(msg); err != nil {
		return fmt.Errorf("send %s: %w", msg.Type, err)
	}
	return nil
}

// Decoder reads messages line by line.
type Decoder struct {
	scanner *bufio.Scanner
}

// NewDecoder creates a decoder on r.
func NewDecoder(r io.Reader) *Decoder {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 4096), maxLine)
	return &Decoder{scanner: s}
}

// Receive returns the next message. It returns io.EOF when the peer closes
// the channel. A malformed line is reported as an error but does not end the
// stream; the next call reads the following line.
func (d *Decoder) Receive() (Message, error) {
	for d.scanner.Scan() {
		line := d.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			return Message{}, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		switch msg.Type {
		case TypeHeartbeat, TypeLocalWinner, TypeEventStart, TypeEventEnd:
			return msg, nil
		default:
			return Message{}, fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
		}
	}
	if err := d.scanner.Err(); err != nil {
		return Message{}, err
	}
	return Message{}, io.EOF
}
