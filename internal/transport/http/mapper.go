package http

import (
	"errors"

	"github.com/vovakirdan/roomchat-server/internal/core"
	"github.com/vovakirdan/roomchat-server/internal/proto"
)

var errUnknownMsgType = errors.New("unknown message type")

// commandFromInbound decodes a wire envelope into a core command. A non-nil
// error means the frame is malformed or unknown; the caller drops it and the
// session continues.
func commandFromInbound(in proto.Inbound) (*core.Command, error) {
	switch in.MsgType {
	case proto.InboundTypeRegisterName:
		name, err := proto.DecodeRegisterName(in)
		if err != nil {
			return nil, err
		}
		return &core.Command{Kind: core.CommandRegisterName, Name: name}, nil
	case proto.InboundTypeChat:
		body, err := proto.DecodeChat(in)
		if err != nil {
			return nil, err
		}
		return &core.Command{
			Kind:  core.CommandChat,
			Entry: core.ChatEntry{Name: body.Name, Message: body.Message},
		}, nil
	default:
		return nil, &proto.DecodeError{MsgType: in.MsgType, Err: errUnknownMsgType}
	}
}

func outboundFromEnvelope(env core.Envelope) proto.Outbound {
	switch env.Kind {
	case core.EnvelopeAllMessages:
		bodies := make([]proto.ChatBody, 0, len(env.Entries))
		for _, entry := range env.Entries {
			bodies = append(bodies, proto.ChatBody{Name: entry.Name, Message: entry.Message})
		}
		return proto.Outbound{MsgType: proto.OutboundTypeAllMessages, Data: bodies}
	case core.EnvelopeNewMessage:
		return proto.Outbound{
			MsgType: proto.OutboundTypeNewMessage,
			Data:    proto.ChatBody{Name: env.Entry.Name, Message: env.Entry.Message},
		}
	case core.EnvelopeNameTaken:
		return proto.Outbound{MsgType: proto.OutboundTypeNameTaken, Data: ""}
	case core.EnvelopeNameRegistered:
		return proto.Outbound{MsgType: proto.OutboundTypeNameRegistered, Data: ""}
	case core.EnvelopeJoined:
		return proto.Outbound{MsgType: proto.OutboundTypeJoined, Data: env.Notice}
	default:
		return proto.Outbound{MsgType: proto.OutboundTypeNewMessage, Data: proto.ChatBody{}}
	}
}
