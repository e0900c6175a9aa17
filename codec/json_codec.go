package codec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/AlexCasual/packio/message"
)

// jsonrpcVersion is the only accepted value of the "jsonrpc" field.
const jsonrpcVersion = "2.0"

// wireMessage is the on-the-wire shape of every JSON-RPC 2.0 envelope. A
// request carries Method and ID; a notification carries Method and omits
// ID; a response carries ID and exactly one of Result/Error.
type wireMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *json.Number    `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  []any           `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
}

// JSONCodec implements the JSON-RPC 2.0-compatible dialect. Requests carry
// id/method/params, notifications omit id, responses carry id and exactly
// one of result/error. No batch-array support: a top-level JSON array is
// rejected by Decode as malformed (the framer still emits it as one buffer;
// only the codec refuses to parse it as a single message).
type JSONCodec struct{}

func (c *JSONCodec) Type() Type { return TypeJSON }

func (c *JSONCodec) EncodeRequest(id uint32, method string, params []any) ([]byte, error) {
	idNum := json.Number(fmt.Sprintf("%d", id))
	if params == nil {
		params = []any{}
	}
	return json.Marshal(wireMessage{
		JSONRPC: jsonrpcVersion,
		ID:      &idNum,
		Method:  method,
		Params:  params,
	})
}

func (c *JSONCodec) EncodeNotification(method string, params []any) ([]byte, error) {
	if params == nil {
		params = []any{}
	}
	return json.Marshal(wireMessage{
		JSONRPC: jsonrpcVersion,
		Method:  method,
		Params:  params,
	})
}

func (c *JSONCodec) EncodeResponse(id uint32, errVal, result any) ([]byte, error) {
	idNum := json.Number(fmt.Sprintf("%d", id))
	wm := wireMessage{JSONRPC: jsonrpcVersion, ID: &idNum}
	var err error
	if errVal != nil {
		wm.Error, err = json.Marshal(errVal)
	} else {
		wm.Result, err = json.Marshal(result)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(wm)
}

func (c *JSONCodec) Decode(buf []byte) (*message.Message, error) {
	if len(buf) == 0 || buf[0] != '{' {
		return nil, fmt.Errorf("%w: batches and non-object top-level values are not supported", ErrBadMessage)
	}

	var wm wireMessage
	dec := json.NewDecoder(bytes.NewReader(buf))
	dec.UseNumber()
	if err := dec.Decode(&wm); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	if wm.JSONRPC != jsonrpcVersion {
		return nil, fmt.Errorf("%w: unexpected jsonrpc version %q", ErrBadMessage, wm.JSONRPC)
	}

	hasResult := len(wm.Result) > 0
	hasError := len(wm.Error) > 0

	switch {
	case hasResult || hasError:
		if hasResult == hasError {
			return nil, fmt.Errorf("%w: response must carry exactly one of result/error", ErrBadMessage)
		}
		if wm.ID == nil {
			return nil, fmt.Errorf("%w: response missing id", ErrBadMessage)
		}
		id, err := decodeID(*wm.ID)
		if err != nil {
			return nil, err
		}
		resp := &message.Response{ID: id}
		if hasError {
			if err := json.Unmarshal(wm.Error, &resp.Err); err != nil {
				return nil, fmt.Errorf("%w: bad error field: %v", ErrBadMessage, err)
			}
		} else {
			if err := json.Unmarshal(wm.Result, &resp.Result); err != nil {
				return nil, fmt.Errorf("%w: bad result field: %v", ErrBadMessage, err)
			}
		}
		return &message.Message{Kind: message.KindResponse, Response: resp}, nil

	case wm.Method == "":
		return nil, fmt.Errorf("%w: missing method", ErrBadMessage)

	case wm.ID == nil:
		return &message.Message{
			Kind:         message.KindNotification,
			Notification: &message.Notification{Method: wm.Method, Params: nonNilParams(wm.Params)},
		}, nil

	default:
		id, err := decodeID(*wm.ID)
		if err != nil {
			return nil, err
		}
		return &message.Message{
			Kind:    message.KindRequest,
			Request: &message.Request{ID: id, Method: wm.Method, Params: nonNilParams(wm.Params)},
		}, nil
	}
}

// nonNilParams treats an omitted "params" field as an empty array, per spec.
func nonNilParams(p []any) []any {
	if p == nil {
		return []any{}
	}
	return p
}

// decodeID accepts any JSON integer id and rejects non-integers (e.g.
// strings or floats with a fractional part), per spec.
func decodeID(n json.Number) (uint32, error) {
	i, err := n.Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: non-integer id %q", ErrBadMessage, n.String())
	}
	if i < 0 || i > int64(^uint32(0)) {
		return 0, fmt.Errorf("%w: id %d out of u32 range", ErrBadMessage, i)
	}
	return uint32(i), nil
}
