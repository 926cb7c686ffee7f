package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandRegisterName claims a display name and enters the default room.
	CommandRegisterName CommandKind = iota
	// CommandChat delivers a chat message to the session's current room.
	CommandChat
)

// Command represents an action requested by a client, already decoded and
// validated at the wire layer.
type Command struct {
	Kind  CommandKind
	Name  string    // CommandRegisterName
	Entry ChatEntry // CommandChat
}
