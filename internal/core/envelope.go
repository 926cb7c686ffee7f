package core

// EnvelopeKind tags an outbound delivery queued for one session.
type EnvelopeKind int

const (
	// EnvelopeAllMessages replays room history to a freshly connected client.
	EnvelopeAllMessages EnvelopeKind = iota
	// EnvelopeNewMessage carries one chat message accepted into a room.
	EnvelopeNewMessage
	// EnvelopeNameTaken rejects a registration attempt.
	EnvelopeNameTaken
	// EnvelopeNameRegistered confirms a registration to the caller only.
	EnvelopeNameRegistered
	// EnvelopeJoined announces a newly named member to the rest of the room.
	EnvelopeJoined
)

// Envelope is a closed tagged variant; only the fields for its kind are set.
type Envelope struct {
	Kind    EnvelopeKind
	Entry   ChatEntry   // EnvelopeNewMessage
	Entries []ChatEntry // EnvelopeAllMessages
	Notice  string      // EnvelopeJoined
}
