package adaptor

import (
	"encoding/json"
	"fmt"

	"github.com/ponyo877/roomcast/server/domain"
	"github.com/tidwall/gjson"
)

// envelope is the frame shape on every transport:
// {"event": "...", "ackId": 7, "payload": {...}}.
type envelope struct {
	Event   string `json:"event"`
	AckID   uint64 `json:"ackId,omitempty"`
	Payload any    `json:"payload"`
}

func EncodeEvent(ev domain.StreamEvent) ([]byte, error) {
	data, err := json.Marshal(envelope{Event: ev.Type.String(), AckID: ev.AckID, Payload: ev.Payload})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", ev.Type, err)
	}
	return data, nil
}

// DecodeRequest reads an inbound envelope. Payload fields that are missing
// decode as zero values and are caught by StreamRequest.Validate.
func DecodeRequest(data []byte) (domain.StreamRequest, error) {
	if !gjson.ValidBytes(data) {
		return domain.StreamRequest{}, fmt.Errorf("%w: malformed frame", domain.ErrInvalidRequest)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return domain.StreamRequest{}, fmt.Errorf("%w: frame is not an object", domain.ErrInvalidRequest)
	}
	name := root.Get("event").String()
	typ, ok := domain.ParseRequestType(name)
	if !ok {
		return domain.StreamRequest{}, fmt.Errorf("%w: unknown event %q", domain.ErrInvalidRequest, name)
	}

	p := root.Get("payload")
	var req domain.StreamRequest
	switch typ {
	case domain.RequestJoin:
		req = domain.NewJoinRequest(p.Get("username").String(), p.Get("room").String())
	case domain.RequestSend:
		req = domain.NewSendRequest(0, p.Get("message").String(), p.Get("image").String())
	case domain.RequestPrivateSend:
		req = domain.NewPrivateSendRequest(p.Get("to").String(), p.Get("message").String())
	case domain.RequestTyping:
		// Both `true` and {"isTyping": true} are accepted.
		if p.IsObject() {
			p = p.Get("isTyping")
		}
		req = domain.NewTypingRequest(p.Bool())
	case domain.RequestReaction:
		req = domain.NewReactionRequest(p.Get("messageId").Int(), p.Get("reaction").String())
	case domain.RequestRead:
		if p.IsObject() {
			p = p.Get("messageId")
		}
		req = domain.NewReadRequest(p.Int())
	}
	req.AckID = root.Get("ackId").Uint()
	return req, nil
}

// ackIDOf recovers the ackId of a frame that failed to decode, if any.
func ackIDOf(data []byte) uint64 {
	return gjson.GetBytes(data, "ackId").Uint()
}
