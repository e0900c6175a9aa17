package codec

import (
	"bytes"
	"fmt"

	"github.com/AlexCasual/packio/message"
	"github.com/vmihailenco/msgpack/v5"
)

// packed-dialect tags, mirrored from the original msgpack_rpc_type enum
// (request=0, response=1, notification=2).
const (
	tagRequest      = 0
	tagResponse     = 1
	tagNotification = 2
)

// PackedCodec implements the MessagePack-RPC array-tagged wire format:
//
//	Request:      [0, id, method, params]
//	Response:      [1, id, error|nil, result|nil]
//	Notification: [2, method, params]
//
// Each message is a fixed-length MessagePack array whose first element is
// the integer tag.
type PackedCodec struct{}

func (c *PackedCodec) Type() Type { return TypePacked }

func (c *PackedCodec) EncodeRequest(id uint32, method string, params []any) ([]byte, error) {
	if params == nil {
		params = []any{}
	}
	return msgpack.Marshal([]any{tagRequest, id, method, params})
}

func (c *PackedCodec) EncodeNotification(method string, params []any) ([]byte, error) {
	if params == nil {
		params = []any{}
	}
	return msgpack.Marshal([]any{tagNotification, method, params})
}

func (c *PackedCodec) EncodeResponse(id uint32, errVal, result any) ([]byte, error) {
	return msgpack.Marshal([]any{tagResponse, id, errVal, result})
}

func (c *PackedCodec) Decode(buf []byte) (*message.Message, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(buf))
	// Without this, DecodeInterface returns the narrowest wire type for a
	// number (int8 for a positive fixint, etc.); handlers and callers expect
	// the normalized int64/uint64/float64 a JSON decode would hand back.
	dec.UseLooseInterfaceDecoding(true)
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}

	tag, err := dec.DecodeInt()
	if err != nil {
		return nil, fmt.Errorf("%w: bad tag: %v", ErrBadMessage, err)
	}

	switch tag {
	case tagRequest:
		if n != 4 {
			return nil, fmt.Errorf("%w: request array has %d elements, want 4", ErrBadMessage, n)
		}
		id, err := dec.DecodeUint32()
		if err != nil {
			return nil, fmt.Errorf("%w: bad id: %v", ErrBadMessage, err)
		}
		method, err := dec.DecodeString()
		if err != nil {
			return nil, fmt.Errorf("%w: bad method: %v", ErrBadMessage, err)
		}
		params, err := decodeParams(dec)
		if err != nil {
			return nil, err
		}
		return &message.Message{
			Kind:    message.KindRequest,
			Request: &message.Request{ID: id, Method: method, Params: params},
		}, nil

	case tagResponse:
		if n != 4 {
			return nil, fmt.Errorf("%w: response array has %d elements, want 4", ErrBadMessage, n)
		}
		id, err := dec.DecodeUint32()
		if err != nil {
			return nil, fmt.Errorf("%w: bad id: %v", ErrBadMessage, err)
		}
		errVal, err := dec.DecodeInterface()
		if err != nil {
			return nil, fmt.Errorf("%w: bad error field: %v", ErrBadMessage, err)
		}
		result, err := dec.DecodeInterface()
		if err != nil {
			return nil, fmt.Errorf("%w: bad result field: %v", ErrBadMessage, err)
		}
		if errVal != nil && result != nil {
			return nil, fmt.Errorf("%w: response has both error and result", ErrBadMessage)
		}
		return &message.Message{
			Kind:     message.KindResponse,
			Response: &message.Response{ID: id, Err: errVal, Result: result},
		}, nil

	case tagNotification:
		if n != 3 {
			return nil, fmt.Errorf("%w: notification array has %d elements, want 3", ErrBadMessage, n)
		}
		method, err := dec.DecodeString()
		if err != nil {
			return nil, fmt.Errorf("%w: bad method: %v", ErrBadMessage, err)
		}
		params, err := decodeParams(dec)
		if err != nil {
			return nil, err
		}
		return &message.Message{
			Kind:         message.KindNotification,
			Notification: &message.Notification{Method: method, Params: params},
		}, nil

	default:
		return nil, fmt.Errorf("%w: unknown tag %d", ErrBadMessage, tag)
	}
}

func decodeParams(dec *msgpack.Decoder) ([]any, error) {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return nil, fmt.Errorf("%w: bad params: %v", ErrBadMessage, err)
	}
	if n < 0 {
		return []any{}, nil
	}
	params := make([]any, n)
	for i := 0; i < n; i++ {
		v, err := dec.DecodeInterface()
		if err != nil {
			return nil, fmt.Errorf("%w: bad params element %d: %v", ErrBadMessage, i, err)
		}
		params[i] = v
	}
	return params, nil
}
