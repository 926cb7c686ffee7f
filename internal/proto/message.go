package proto

import (
	"encoding/json"
	"fmt"
)

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	MsgType string          `json:"msg_type"`
	Data    json.RawMessage `json:"data"`
}

const (
	InboundTypeRegisterName = "RegisterName"
	InboundTypeChat         = "Chat"

	OutboundTypeAllMessages    = "AllMessages"
	OutboundTypeNewMessage     = "NewMessage"
	OutboundTypeNameTaken      = "NameTaken"
	OutboundTypeNameRegistered = "NameRegistered"
	OutboundTypeJoined         = "Joined"
)

// ChatBody is the payload of a Chat inbound and of NewMessage/AllMessages
// outbound messages.
type ChatBody struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	MsgType string `json:"msg_type"`
	Data    any    `json:"data"`
}

// DecodeError reports a syntactically or semantically malformed inbound
// payload. It is recoverable: the frame is dropped and the session continues.
type DecodeError struct {
	MsgType string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q payload: %v", e.MsgType, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// DecodeRegisterName extracts the requested display name from a RegisterName
// payload (a bare JSON string).
func DecodeRegisterName(in Inbound) (string, error) {
	var name string
	if err := json.Unmarshal(in.Data, &name); err != nil {
		return "", &DecodeError{MsgType: in.MsgType, Err: err}
	}
	return name, nil
}

// DecodeChat extracts the chat body from a Chat payload.
func DecodeChat(in Inbound) (ChatBody, error) {
	var body ChatBody
	if err := json.Unmarshal(in.Data, &body); err != nil {
		return ChatBody{}, &DecodeError{MsgType: in.MsgType, Err: err}
	}
	return body, nil
}
