package flow

import "github.com/andklim/insurebot/types"

// EventKind discriminates inbound events. The flow is agnostic to the
// transport that produced them.
type EventKind string

const (
	EventStart    EventKind = "start"
	EventDocument EventKind = "document"
	EventText     EventKind = "text"
	EventChoice   EventKind = "choice"
)

// Event is one inbound user action.
type Event struct {
	Kind EventKind

	// Document fields, set when Kind == EventDocument.
	Document []byte
	Filename string
	Class    types.DocumentClass

	// Text reply, set when Kind == EventText.
	Text string

	// Accepted is the yes/no affordance payload, set when Kind == EventChoice.
	Accepted bool
}

func StartEvent() Event {
	return Event{Kind: EventStart}
}

func DocumentEvent(data []byte, filename string, class types.DocumentClass) Event {
	return Event{Kind: EventDocument, Document: data, Filename: filename, Class: class}
}

func TextEvent(text string) Event {
	return Event{Kind: EventText, Text: text}
}

func ChoiceEvent(accepted bool) Event {
	return Event{Kind: EventChoice, Accepted: accepted}
}
