package core

import "github.com/rs/zerolog"

// Dispatcher maps decoded client commands onto registry operations. It is
// stateless apart from the registry handle: room-wide notifications flow
// exclusively through registry fan-out, and the only direct replies are the
// registration outcomes returned to the caller.
type Dispatcher struct {
	reg *Registry
	log *zerolog.Logger
}

// NewDispatcher builds a dispatcher over the given registry.
func NewDispatcher(reg *Registry, logger *zerolog.Logger) *Dispatcher {
	return &Dispatcher{reg: reg, log: logger}
}

// Dispatch applies one command for the given session and returns the direct
// replies owed to that session alone. Broadcast effects (Joined, NewMessage)
// reach the caller through its delivery channel like any other member.
func (d *Dispatcher) Dispatch(sessionID string, cmd Command) []Envelope {
	switch cmd.Kind {
	case CommandRegisterName:
		return d.registerName(sessionID, cmd.Name)
	case CommandChat:
		d.chat(sessionID, cmd.Entry)
		return nil
	default:
		d.log.Warn().Str("session_id", sessionID).Int("kind", int(cmd.Kind)).Msg("unknown command kind")
		return nil
	}
}

func (d *Dispatcher) registerName(sessionID, name string) []Envelope {
	if !d.reg.ClaimName(sessionID, name) {
		d.log.Debug().Str("session_id", sessionID).Str("name", name).Msg("name rejected")
		return []Envelope{{Kind: EnvelopeNameTaken}}
	}

	replies := []Envelope{{Kind: EnvelopeNameRegistered}}
	// Entering the default room fires the Joined broadcast to existing members.
	d.reg.JoinRoom(sessionID, DefaultRoom)
	return replies
}

func (d *Dispatcher) chat(sessionID string, entry ChatEntry) {
	roomName, ok := d.reg.CurrentRoom(sessionID)
	if !ok {
		d.log.Warn().Str("session_id", sessionID).Msg("chat from unregistered session dropped")
		return
	}
	d.reg.AppendMessage(roomName, entry)
}
