package dialog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jianxion/Dining-Concierge-Chatbot/internal/domain"
	"github.com/jianxion/Dining-Concierge-Chatbot/internal/slots"
)

const (
	intentGreeting          = "GreetingIntent"
	intentThankYou          = "ThankYouIntent"
	intentDiningSuggestions = "DiningSuggestionsIntent"
	intentFallbackAmazon    = "AMAZON.FallbackIntent"
	intentFallback          = "FallbackIntent"
)

const (
	slotLocation   = "Location"
	slotCuisine    = "Cuisine"
	slotDiningTime = "DiningTime"
	slotPartySize  = "PartySize"
	slotEmail      = "Email"
)

const (
	msgGreeting        = "Hi there, how can I help?"
	msgThankYou        = "You’re welcome! Happy to help."
	msgFallback        = "Sorry, I didn’t quite get that."
	msgUnknownIntent   = "Sorry, I didn’t catch that."
	msgNotConfigured   = "Configuration error: SQS_QUEUE_URL is not set."
	msgSubmitFailed    = "Sorry, something went wrong submitting your request. Please try again."
	msgBadSlots        = "Sorry, some of your request details look wrong. Please start over."
	msgConfirmationFmt = "Got it! I’ll email %s a list of %s places in %s around %s for %d people."
)

// slotOrder fixes the priority in which slots are checked and elicited.
var slotOrder = []string{slotLocation, slotCuisine, slotDiningTime, slotPartySize, slotEmail}

var slotValidators = map[string]func(string) bool{
	slotLocation:   slots.ValidLocation,
	slotCuisine:    slots.ValidCuisine,
	slotDiningTime: slots.ValidDiningTime,
	slotPartySize:  slots.ValidPartySize,
	slotEmail:      slots.ValidEmail,
}

var missingPrompts = map[string]string{
	slotLocation:   "What city or area would you like to dine in?",
	slotCuisine:    "What cuisine are you in the mood for?",
	slotDiningTime: "What time would you like to eat?",
	slotPartySize:  "How many people are in your party?",
	slotEmail:      "What email address should the suggestions go to?",
}

var invalidPrompts = map[string]string{
	slotLocation:   "Sorry, I don’t recognize that location. Could you provide a Manhattan/NYC-area location?",
	slotCuisine:    cuisineInvalidPrompt(),
	slotDiningTime: "Sorry, I didn’t understand that time. Please give a time like 18:30.",
	slotPartySize:  "Party size should be a whole number between 1 and 20. How many people are going?",
	slotEmail:      "That email address doesn’t look right. Could you re-type it?",
}

func cuisineInvalidPrompt() string {
	titler := cases.Title(language.English)
	names := slots.Cuisines()
	for i, c := range names {
		names[i] = titler.String(c)
	}
	return "I don’t have that cuisine on file. Try one of: " + strings.Join(names, ", ") + "."
}

// Enqueuer submits a completed work item to the durable request queue.
// *producer.Producer satisfies this interface.
type Enqueuer interface {
	Enqueue(ctx context.Context, item domain.WorkItem) error
}

// Controller decides, per conversational turn, whether to re-prompt for a
// slot, delegate back to the bot, or close the conversation. It is
// stateless across turns; session continuity lives in the bot runtime.
type Controller struct {
	enq Enqueuer
}

// New builds a Controller. A nil enqueuer marks the queue destination as
// unconfigured; fulfillment turns then close with a configuration error
// instead of crashing the hook.
func New(enq Enqueuer) *Controller {
	return &Controller{enq: enq}
}

// HandleTurn routes one code-hook invocation by intent name.
func (c *Controller) HandleTurn(ctx context.Context, ev Event) Response {
	switch ev.SessionState.Intent.Name {
	case intentGreeting:
		return closeTurn(ev, stateFulfilled, msgGreeting)
	case intentThankYou:
		return closeTurn(ev, stateFulfilled, msgThankYou)
	case intentDiningSuggestions:
		if ev.InvocationSource == sourceDialogHook {
			return reviewSlots(ev)
		}
		return c.fulfill(ctx, ev)
	case intentFallbackAmazon, intentFallback:
		return closeTurn(ev, stateFailed, msgFallback)
	default:
		return closeTurn(ev, stateFailed, msgUnknownIntent)
	}
}

// reviewSlots runs the dialog-phase checks: a filled-but-invalid slot is
// re-elicited before any missing one, both in slotOrder priority. Only a
// fully valid set delegates back to the bot.
func reviewSlots(ev Event) Response {
	for _, name := range slotOrder {
		if v := ev.slotValue(name); v != "" && !slotValidators[name](v) {
			return elicitSlotTurn(ev, name, invalidPrompts[name])
		}
	}
	for _, name := range slotOrder {
		if ev.slotValue(name) == "" {
			return elicitSlotTurn(ev, name, missingPrompts[name])
		}
	}
	return delegateTurn(ev)
}

// fulfill converts the completed slot set into a queued work item. No
// further dialog turn is possible here, so every failure closes the
// conversation rather than re-prompting.
func (c *Controller) fulfill(ctx context.Context, ev Event) Response {
	location := ev.slotValue(slotLocation)
	cuisine := strings.ToLower(ev.slotValue(slotCuisine))
	diningTime := slots.NormalizeDiningTime(ev.slotValue(slotDiningTime))
	partySize, sizeOK := slots.ParsePartySize(ev.slotValue(slotPartySize))
	email := ev.slotValue(slotEmail)

	if !slots.ValidLocation(location) || !slots.ValidCuisine(cuisine) ||
		!slots.ValidDiningTime(diningTime) || !sizeOK || !slots.ValidEmail(email) {
		return closeTurn(ev, stateFailed, msgBadSlots)
	}
	if c.enq == nil {
		return closeTurn(ev, stateFailed, msgNotConfigured)
	}

	item := domain.WorkItem{
		Location:    location,
		Cuisine:     cuisine,
		DiningTime:  diningTime,
		PartySize:   partySize,
		Email:       email,
		RequestedAt: nowUTC().Format(time.RFC3339),
	}
	if err := c.enq.Enqueue(ctx, item); err != nil {
		slog.Error("dining request enqueue failed", "session_id", ev.SessionID, "err", err)
		return closeTurn(ev, stateFailed, msgSubmitFailed)
	}

	confirmation := fmt.Sprintf(msgConfirmationFmt, email, cuisine, location, diningTime, partySize)
	return closeTurn(ev, stateFulfilled, confirmation)
}

var nowUTC = func() time.Time {
	return time.Now().UTC()
}
