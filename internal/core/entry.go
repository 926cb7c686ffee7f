package core

// ChatEntry is the domain model for one chat message. Immutable once
// appended to a room's history.
type ChatEntry struct {
	Name    string
	Message string
}
