package codec

import (
	"errors"
	"testing"

	"github.com/AlexCasual/packio/message"
	"github.com/vmihailenco/msgpack/v5"
)

func encodeRaw3ElementRequest() ([]byte, error) {
	return msgpack.Marshal([]any{tagRequest, uint32(1), "x"})
}

func TestJSONCodecRoundTrip(t *testing.T) {
	c := Get(TypeJSON)

	reqBuf, err := c.EncodeRequest(7, "echo", []any{int64(42)})
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}
	msg, err := c.Decode(reqBuf)
	if err != nil {
		t.Fatalf("Decode request: %v", err)
	}
	if msg.Kind != message.KindRequest {
		t.Fatalf("Kind = %v, want Request", msg.Kind)
	}
	if msg.Request.ID != 7 || msg.Request.Method != "echo" {
		t.Fatalf("Request = %+v", msg.Request)
	}

	notifyBuf, err := c.EncodeNotification("sink", []any{int64(1)})
	if err != nil {
		t.Fatalf("EncodeNotification: %v", err)
	}
	msg, err = c.Decode(notifyBuf)
	if err != nil {
		t.Fatalf("Decode notification: %v", err)
	}
	if msg.Kind != message.KindNotification {
		t.Fatalf("Kind = %v, want Notification", msg.Kind)
	}

	respBuf, err := c.EncodeResponse(7, nil, int64(42))
	if err != nil {
		t.Fatalf("EncodeResponse: %v", err)
	}
	msg, err = c.Decode(respBuf)
	if err != nil {
		t.Fatalf("Decode response: %v", err)
	}
	if msg.Kind != message.KindResponse || msg.Response.ID != 7 {
		t.Fatalf("Response = %+v", msg.Response)
	}
}

func TestJSONCodecRejectsBadVersion(t *testing.T) {
	c := Get(TypeJSON)
	_, err := c.Decode([]byte(`{"jsonrpc":"1.0","id":1,"method":"x","params":[]}`))
	if !errors.Is(err, ErrBadMessage) {
		t.Fatalf("expected ErrBadMessage, got %v", err)
	}
}

func TestJSONCodecRejectsBatch(t *testing.T) {
	c := Get(TypeJSON)
	_, err := c.Decode([]byte(`[{"jsonrpc":"2.0","id":1,"method":"x"}]`))
	if !errors.Is(err, ErrBadMessage) {
		t.Fatalf("expected ErrBadMessage for batch array, got %v", err)
	}
}

func TestJSONCodecRejectsNonIntegerID(t *testing.T) {
	c := Get(TypeJSON)
	_, err := c.Decode([]byte(`{"jsonrpc":"2.0","id":"abc","result":1}`))
	if !errors.Is(err, ErrBadMessage) {
		t.Fatalf("expected ErrBadMessage for non-integer id, got %v", err)
	}
}

func TestPackedCodecRoundTrip(t *testing.T) {
	c := Get(TypePacked)

	reqBuf, err := c.EncodeRequest(3, "add", []any{int64(1), int64(2)})
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}
	msg, err := c.Decode(reqBuf)
	if err != nil {
		t.Fatalf("Decode request: %v", err)
	}
	if msg.Kind != message.KindRequest || msg.Request.ID != 3 || msg.Request.Method != "add" {
		t.Fatalf("Request = %+v", msg.Request)
	}
	if len(msg.Request.Params) != 2 {
		t.Fatalf("Params = %+v, want 2 elements", msg.Request.Params)
	}

	notifyBuf, err := c.EncodeNotification("sink", nil)
	if err != nil {
		t.Fatalf("EncodeNotification: %v", err)
	}
	msg, err = c.Decode(notifyBuf)
	if err != nil {
		t.Fatalf("Decode notification: %v", err)
	}
	if msg.Kind != message.KindNotification || len(msg.Notification.Params) != 0 {
		t.Fatalf("Notification = %+v", msg.Notification)
	}

	respBuf, err := c.EncodeResponse(3, nil, int64(3))
	if err != nil {
		t.Fatalf("EncodeResponse: %v", err)
	}
	msg, err = c.Decode(respBuf)
	if err != nil {
		t.Fatalf("Decode response: %v", err)
	}
	if msg.Response.Err != nil {
		t.Fatalf("Response.Err = %v, want nil", msg.Response.Err)
	}

	errBuf, err := c.EncodeResponse(3, "boom", nil)
	if err != nil {
		t.Fatalf("EncodeResponse error: %v", err)
	}
	msg, err = c.Decode(errBuf)
	if err != nil {
		t.Fatalf("Decode error response: %v", err)
	}
	if msg.Response.Err != "boom" || msg.Response.Result != nil {
		t.Fatalf("Response = %+v", msg.Response)
	}
}

func TestPackedCodecRejectsWrongArity(t *testing.T) {
	c := Get(TypePacked)
	// A hand-crafted array with only 3 elements tagged as a request (which
	// needs 4) must be rejected as BadMessage.
	bad, err := encodeRaw3ElementRequest()
	if err != nil {
		t.Fatalf("encodeRaw3ElementRequest: %v", err)
	}
	_, err = c.Decode(bad)
	if !errors.Is(err, ErrBadMessage) {
		t.Fatalf("expected ErrBadMessage, got %v", err)
	}
}
