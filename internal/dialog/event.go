package dialog

import "strings"

// Lex V2 code-hook wire shapes. aws-lambda-go only ships V1 Lex event
// types, so the V2 subset this bot exchanges is declared here.

const (
	sourceDialogHook      = "DialogCodeHook"
	sourceFulfillmentHook = "FulfillmentCodeHook"

	actionClose      = "Close"
	actionDelegate   = "Delegate"
	actionElicitSlot = "ElicitSlot"

	stateFulfilled = "Fulfilled"
	stateFailed    = "Failed"

	contentPlainText = "PlainText"
)

type Event struct {
	InvocationSource string       `json:"invocationSource"`
	SessionID        string       `json:"sessionId"`
	SessionState     SessionState `json:"sessionState"`
}

type SessionState struct {
	SessionAttributes map[string]string `json:"sessionAttributes,omitempty"`
	DialogAction      *DialogAction     `json:"dialogAction,omitempty"`
	Intent            Intent            `json:"intent"`
}

type Intent struct {
	Name  string           `json:"name"`
	Slots map[string]*Slot `json:"slots,omitempty"`
	State string           `json:"state,omitempty"`
}

type Slot struct {
	Value *SlotValue `json:"value,omitempty"`
}

type SlotValue struct {
	OriginalValue    string   `json:"originalValue,omitempty"`
	InterpretedValue string   `json:"interpretedValue,omitempty"`
	ResolvedValues   []string `json:"resolvedValues,omitempty"`
}

type DialogAction struct {
	Type         string `json:"type"`
	SlotToElicit string `json:"slotToElicit,omitempty"`
}

type Message struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type Response struct {
	SessionState SessionState `json:"sessionState"`
	Messages     []Message    `json:"messages,omitempty"`
}

// slotValue returns the trimmed interpreted value for a slot, or "" when
// the slot is absent or empty.
func (e Event) slotValue(name string) string {
	s, ok := e.SessionState.Intent.Slots[name]
	if !ok || s == nil || s.Value == nil {
		return ""
	}
	return strings.TrimSpace(s.Value.InterpretedValue)
}

func plainText(content string) Message {
	return Message{ContentType: contentPlainText, Content: content}
}

// closeTurn ends the conversation with the given fulfillment state. The
// intent is echoed back with its state set, as Lex requires.
func closeTurn(e Event, state, message string) Response {
	intent := e.SessionState.Intent
	intent.State = state
	return Response{
		SessionState: SessionState{
			DialogAction:      &DialogAction{Type: actionClose},
			Intent:            intent,
			SessionAttributes: e.SessionState.SessionAttributes,
		},
		Messages: []Message{plainText(message)},
	}
}

// delegateTurn hands control back to the bot so it can run its own slot
// elicitation and routing.
func delegateTurn(e Event) Response {
	return Response{
		SessionState: SessionState{
			DialogAction:      &DialogAction{Type: actionDelegate},
			Intent:            e.SessionState.Intent,
			SessionAttributes: e.SessionState.SessionAttributes,
		},
	}
}

// elicitSlotTurn re-prompts the user for one named slot.
func elicitSlotTurn(e Event, slotName, prompt string) Response {
	return Response{
		SessionState: SessionState{
			DialogAction:      &DialogAction{Type: actionElicitSlot, SlotToElicit: slotName},
			Intent:            e.SessionState.Intent,
			SessionAttributes: e.SessionState.SessionAttributes,
		},
		Messages: []Message{plainText(prompt)},
	}
}
