// Package flow implements the conversation state machine that sequences
// document capture, confirmation, and retry across the intake steps.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/andklim/insurebot/confirm"
	"github.com/andklim/insurebot/dialogue"
	"github.com/andklim/insurebot/extract"
	"github.com/andklim/insurebot/session"
	"github.com/andklim/insurebot/types"
)

// Sender delivers outbound messages. SendChoice additionally renders a yes/no
// affordance whose press comes back as a choice event.
type Sender interface {
	SendText(ctx context.Context, sessionID, text string) error
	SendChoice(ctx context.Context, sessionID, text string) error
}

// WelcomeMessage opens every conversation. It is static content, not
// composed.
const WelcomeMessage = `👋 Hello! I'm your assistant for purchasing car insurance.

To get started, please send me:
📄 A clear photo of your identity document

I'll extract the necessary details, confirm them with you, and issue a policy once everything checks out.

Let's begin when you're ready!`

// Fallback texts used when the composer cannot produce a message. The
// transition they accompany still happens.
const (
	msgClarify            = "Couldn't interpret your reply. Please respond clearly."
	msgExtractionFallback = "An error occurred while processing your document. Please send it again."
	msgConfirmFallback    = "Please confirm whether the extracted details are correct."
	msgNextStepFallback   = "Something went wrong while generating the next instruction. Please continue with the next document."
	msgAckFallback        = "Your purchase is confirmed. The policy will be ready in a few seconds."
	msgPolicyFallback     = "Failed to generate your policy. Please try again later."
	msgGenericFallback    = "Sorry, I couldn't process your request at the moment. Please try again."
)

const defaultCollaboratorTimeout = 30 * time.Second

// Flow owns per-session state transitions and drives the external
// collaborators. One Flow serves all sessions; the store serializes events
// per session.
type Flow struct {
	store       session.Store
	extractor   extract.Extractor
	interpreter confirm.Interpreter
	composer    dialogue.Composer
	sender      Sender
	price       types.Price
	timeout     time.Duration
}

type flowOptions struct {
	price   types.Price
	timeout time.Duration
}

type Option func(*flowOptions)

// WithPrice overrides the fixed policy price.
func WithPrice(price types.Price) Option {
	return func(o *flowOptions) {
		o.price = price
	}
}

// WithCollaboratorTimeout bounds every extractor, interpreter and composer
// call. A timeout is handled like any other collaborator failure.
func WithCollaboratorTimeout(d time.Duration) Option {
	return func(o *flowOptions) {
		o.timeout = d
	}
}

func New(
	store session.Store,
	extractor extract.Extractor,
	interpreter confirm.Interpreter,
	composer dialogue.Composer,
	sender Sender,
	opts ...Option,
) *Flow {
	options := flowOptions{
		price:   types.Price{Amount: 100, Currency: "USD"},
		timeout: defaultCollaboratorTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	return &Flow{
		store:       store,
		extractor:   extractor,
		interpreter: interpreter,
		composer:    composer,
		sender:      sender,
		price:       options.price,
		timeout:     options.timeout,
	}
}

// HandleEvent processes one inbound event for one session. Events for the
// same session never interleave; the session claim is held for the whole
// call.
func (f *Flow) HandleEvent(ctx context.Context, sessionID string, ev Event) error {
	sess, release, err := f.store.Acquire(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("acquire session %s: %w", sessionID, err)
	}
	defer release()

	slog.Debug("handling event", "session", sessionID, "kind", string(ev.Kind), "state", string(sess.State))

	switch ev.Kind {
	case EventStart:
		return f.handleStart(ctx, sess)
	case EventDocument:
		return f.handleDocument(ctx, sess, ev)
	case EventText:
		return f.handleReply(ctx, sess, ev.Text, nil)
	case EventChoice:
		verdict := types.VerdictRejected
		if ev.Accepted {
			verdict = types.VerdictConfirmed
		}
		return f.handleReply(ctx, sess, choiceText(ev.Accepted), &verdict)
	}
	return fmt.Errorf("unknown event kind %q", ev.Kind)
}

func (f *Flow) handleStart(ctx context.Context, sess *session.Session) error {
	sess.Reset()
	return f.sender.SendText(ctx, sess.ID, WelcomeMessage)
}

func (f *Flow) handleDocument(ctx context.Context, sess *session.Session, ev Event) error {
	var class types.DocumentClass
	switch sess.State {
	case types.StateAwaitingIdentityDoc:
		class = types.ClassIdentity
	case types.StateAwaitingVehicleDoc:
		class = types.ClassVehicle
	default:
		// Out-of-band upload, answered by the generic fallthrough.
		return f.fallthroughReply(ctx, sess,
			"The user sent a document, but the bot is not in a step to process it.")
	}

	cctx, cancel := context.WithTimeout(ctx, f.timeout)
	fields, err := f.extractor.Extract(cctx, ev.Document, ev.Filename, class)
	cancel()
	if err != nil {
		slog.Warn("extraction failed", "session", sess.ID, "class", string(class), "err", err)
		msg := f.composeOr(ctx, sess.State,
			fmt.Sprintf("Error processing document: %v. Tell the user what is wrong and what to do.", err),
			msgExtractionFallback)
		return f.sender.SendText(ctx, sess.ID, msg)
	}

	switch class {
	case types.ClassIdentity:
		sess.IdentityFields = fields
		sess.State = types.StateAwaitingIdentityConfirm
	case types.ClassVehicle:
		sess.VehicleFields = fields
		sess.State = types.StateAwaitingVehicleConfirm
	}

	prompt := f.composeOr(ctx, sess.State,
		fmt.Sprintf("Extracted details:\n%s\nAsk the user to confirm they are correct.", fields.Render()),
		msgConfirmFallback)
	sess.PendingPrompt = prompt
	return f.sender.SendChoice(ctx, sess.ID, prompt)
}

// handleReply resolves a confirmation round. A button press supplies the
// verdict directly and must never reach the interpreter; free text goes
// through it with the pending prompt as context.
func (f *Flow) handleReply(ctx context.Context, sess *session.Session, text string, direct *types.Verdict) error {
	if !sess.State.AwaitingConfirmation() {
		return f.fallthroughReply(ctx, sess, text)
	}

	var verdict types.Verdict
	if direct != nil {
		verdict = *direct
	} else {
		cctx, cancel := context.WithTimeout(ctx, f.timeout)
		v, err := f.interpreter.Interpret(cctx, sess.PendingPrompt, text)
		cancel()
		if err != nil {
			// Invocation failure holds state entirely; this is not the
			// ambiguous-reply rejection path.
			slog.Warn("interpretation failed", "session", sess.ID, "err", err)
			return f.sender.SendText(ctx, sess.ID, msgClarify)
		}
		verdict = types.NormalizeVerdict(string(v))
	}

	slog.Debug("confirmation resolved", "session", sess.ID, "state", string(sess.State), "verdict", string(verdict))
	if verdict == types.VerdictConfirmed {
		return f.handleConfirmed(ctx, sess)
	}
	return f.handleRejected(ctx, sess)
}

func (f *Flow) handleConfirmed(ctx context.Context, sess *session.Session) error {
	switch sess.State {
	case types.StateAwaitingIdentityConfirm:
		sess.State = types.StateAwaitingVehicleDoc
		msg := f.composeOr(ctx, sess.State,
			"Identity details confirmed. Ask the user to send a clear photo of their vehicle registration document.",
			msgNextStepFallback)
		return f.sender.SendText(ctx, sess.ID, msg)

	case types.StateAwaitingVehicleConfirm:
		sess.State = types.StateAwaitingPriceConfirm
		prompt := f.composeOr(ctx, sess.State,
			fmt.Sprintf("Vehicle details confirmed. Inform the user that the insurance price is fixed at %s and ask them to confirm they want to proceed with the purchase.", f.price),
			fmt.Sprintf("The insurance price is fixed at %s. Do you want to proceed with the purchase?", f.price))
		sess.PendingPrompt = prompt
		return f.sender.SendChoice(ctx, sess.ID, prompt)

	case types.StateAwaitingPriceConfirm:
		sess.State = types.StateDone
		ack := f.composeOr(ctx, sess.State,
			"The user confirmed the price. Confirm proceeding with the insurance policy. It will be ready in a few seconds.",
			msgAckFallback)
		if err := f.sender.SendText(ctx, sess.ID, ack); err != nil {
			return err
		}
		return f.deliverPolicy(ctx, sess)
	}
	return nil
}

func (f *Flow) handleRejected(ctx context.Context, sess *session.Session) error {
	switch sess.State {
	case types.StateAwaitingIdentityConfirm:
		sess.State = types.StateAwaitingIdentityDoc
		msg := f.composeOr(ctx, sess.State,
			"The user rejected the identity details. Ask them to send the identity document again.",
			"Understood. Please send a clear photo of your identity document again.")
		return f.sender.SendText(ctx, sess.ID, msg)

	case types.StateAwaitingVehicleConfirm:
		sess.State = types.StateAwaitingVehicleDoc
		msg := f.composeOr(ctx, sess.State,
			"The user rejected the vehicle details. Ask them to send the vehicle registration document again.",
			"Understood. Please send a clear photo of your vehicle registration document again.")
		return f.sender.SendText(ctx, sess.ID, msg)

	case types.StateAwaitingPriceConfirm:
		// Price is fixed; the state holds.
		msg := f.composeOr(ctx, sess.State,
			fmt.Sprintf("The user rejected the price. Inform them that the price is fixed at %s and cannot be changed.", f.price),
			fmt.Sprintf("The price is fixed at %s and cannot be changed.", f.price))
		return f.sender.SendText(ctx, sess.ID, msg)
	}
	return nil
}

// deliverPolicy makes exactly one composition attempt. The DONE transition is
// already committed; a failure here only changes what gets sent.
func (f *Flow) deliverPolicy(ctx context.Context, sess *session.Session) error {
	cctx, cancel := context.WithTimeout(ctx, f.timeout)
	policy, err := f.composer.ComposePolicy(cctx, sess.IdentityFields, sess.VehicleFields)
	cancel()
	if err != nil {
		slog.Error("policy composition failed", "session", sess.ID, "err", err)
		return f.sender.SendText(ctx, sess.ID, msgPolicyFallback)
	}
	return f.sender.SendText(ctx, sess.ID, "Your insurance policy has been generated:\n"+policy)
}

// fallthroughReply relays free-form input through the composer with the
// current step as context. It never changes state.
func (f *Flow) fallthroughReply(ctx context.Context, sess *session.Session, text string) error {
	msg := f.composeOr(ctx, sess.State, text, msgGenericFallback)
	return f.sender.SendText(ctx, sess.ID, msg)
}

func (f *Flow) composeOr(ctx context.Context, state types.State, instruction, fallback string) string {
	cctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	text, err := f.composer.Compose(cctx, instruction, state)
	if err != nil {
		slog.Error("composition failed", "state", string(state), "err", err)
		return fallback
	}
	return text
}

func choiceText(accepted bool) string {
	if accepted {
		return "yes"
	}
	return "no"
}
