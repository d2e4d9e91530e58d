// Package event carries domain events from the registry's transition methods
// to the notification fabric. Emission is explicit: the match and chat
// services publish after their persistence commits, never from storage hooks,
// so delivery ordering and failure handling stay visible and testable.
package event

type Kind string

const (
	KindMatchCreated Kind = "match_created"
	KindMatchDeleted Kind = "match_deleted"
	KindMessageSent  Kind = "message_sent"
)

type Event interface {
	Kind() Kind
}

// MatchCreated fires when both directions of a right-swipe exist and the
// match row was persisted.
type MatchCreated struct {
	MatchID uint64
	LowID   uint64
	HighID  uint64
}

func (MatchCreated) Kind() Kind { return KindMatchCreated }

// MatchDeleted fires on left-swipe teardown or explicit unmatch, after the
// row and its messages were removed.
type MatchDeleted struct {
	MatchID uint64
	LowID   uint64
	HighID  uint64
}

func (MatchDeleted) Kind() Kind { return KindMatchDeleted }

// MessageSent fires after a message was appended to an active match.
type MessageSent struct {
	MatchID     uint64
	SenderID    uint64
	RecipientID uint64
}

func (MessageSent) Kind() Kind { return KindMessageSent }
