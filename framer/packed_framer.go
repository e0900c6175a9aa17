package framer

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrBadMessage is returned by a Framer's Next when the buffered bytes
// cannot possibly be a well-formed message of this dialect. It is always
// fatal to the session using the framer.
var ErrBadMessage = errors.New("framer: bad message")

// PackedFramer finds message boundaries in a MessagePack-RPC byte stream by
// driving msgpack's own streaming decoder: it attempts to decode exactly
// one top-level value, and the decoder's read position tells us precisely
// how many bytes that value occupied. If the buffered bytes don't yet hold
// a complete value, Next reports !ok and waits for more data, mirroring the
// msgpack::unpacker used by packio's client and server_session.
type PackedFramer struct {
	raw  []byte
	size int
}

// NewPackedFramer returns a PackedFramer with an empty buffer.
func NewPackedFramer() *PackedFramer {
	return &PackedFramer{}
}

func (f *PackedFramer) Reserve(n int) []byte {
	need := f.size + n
	if cap(f.raw) < need {
		grown := make([]byte, need, need*2+64)
		copy(grown, f.raw[:f.size])
		f.raw = grown
	} else if len(f.raw) < need {
		f.raw = f.raw[:need]
	}
	return f.raw[f.size:need]
}

func (f *PackedFramer) Consumed(n int) {
	f.size += n
}

func (f *PackedFramer) Next() ([]byte, bool, error) {
	if f.size == 0 {
		return nil, false, nil
	}

	r := bytes.NewReader(f.raw[:f.size])
	dec := msgpack.NewDecoder(r)
	if _, err := dec.DecodeInterface(); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, false, nil // incomplete; wait for more bytes
		}
		return nil, false, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}

	consumed := f.size - r.Len()
	msg := make([]byte, consumed)
	copy(msg, f.raw[:consumed])
	f.compact(consumed)
	return msg, true, nil
}

func (f *PackedFramer) compact(n int) {
	if n == 0 {
		return
	}
	remaining := f.size - n
	copy(f.raw[:remaining], f.raw[n:f.size])
	f.size = remaining
}
