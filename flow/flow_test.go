package flow_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andklim/insurebot/confirm"
	"github.com/andklim/insurebot/dialogue"
	"github.com/andklim/insurebot/extract"
	"github.com/andklim/insurebot/flow"
	"github.com/andklim/insurebot/session"
	"github.com/andklim/insurebot/types"
)

type stubExtractor struct {
	fields map[types.DocumentClass]types.FieldSet
	err    error
	calls  int
}

func (s *stubExtractor) Extract(_ context.Context, _ []byte, _ string, class types.DocumentClass) (types.FieldSet, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.fields[class], nil
}

type stubInterpreter struct {
	verdict types.Verdict
	err     error
	calls   int
}

func (s *stubInterpreter) Interpret(_ context.Context, _, _ string) (types.Verdict, error) {
	s.calls++
	if s.err != nil {
		return types.VerdictRejected, s.err
	}
	return s.verdict, nil
}

// echoComposer returns the instruction verbatim so tests can assert what the
// flow asked for.
type echoComposer struct {
	composeErr error
	policyErr  error
	policies   int
}

func (c *echoComposer) Compose(_ context.Context, instruction string, _ types.State) (string, error) {
	if c.composeErr != nil {
		return "", c.composeErr
	}
	return instruction, nil
}

func (c *echoComposer) ComposePolicy(_ context.Context, identity, vehicle types.FieldSet) (string, error) {
	c.policies++
	if c.policyErr != nil {
		return "", c.policyErr
	}
	return "POLICY\n" + identity.Render() + "\n" + vehicle.Render(), nil
}

type sentMessage struct {
	Text   string
	Choice bool
}

type recordingSender struct {
	mu       sync.Mutex
	messages []sentMessage
}

func (s *recordingSender) SendText(_ context.Context, _, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, sentMessage{Text: text})
	return nil
}

func (s *recordingSender) SendChoice(_ context.Context, _, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, sentMessage{Text: text, Choice: true})
	return nil
}

func (s *recordingSender) last(t *testing.T) sentMessage {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.messages)
	return s.messages[len(s.messages)-1]
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

type fixture struct {
	store       *session.MemoryStore
	extractor   *stubExtractor
	interpreter *stubInterpreter
	composer    *echoComposer
	sender      *recordingSender
	flow        *flow.Flow
}

func newFixture() *fixture {
	fx := &fixture{
		store: session.NewMemoryStore(),
		extractor: &stubExtractor{
			fields: map[types.DocumentClass]types.FieldSet{
				types.ClassIdentity: {"full_name": "Jane Doe", "document_number": "AB1234567"},
				types.ClassVehicle:  {"make_model": "Toyota Corolla", "vin": "JT2BF22K1W0123456"},
			},
		},
		interpreter: &stubInterpreter{verdict: types.VerdictConfirmed},
		composer:    &echoComposer{},
		sender:      &recordingSender{},
	}
	fx.flow = flow.New(fx.store, fx.extractor, fx.interpreter, fx.composer, fx.sender)
	return fx
}

func (fx *fixture) handle(t *testing.T, id string, ev flow.Event) {
	t.Helper()
	require.NoError(t, fx.flow.HandleEvent(context.Background(), id, ev))
}

func (fx *fixture) inspect(t *testing.T, id string) session.Session {
	t.Helper()
	sess, release, err := fx.store.Acquire(context.Background(), id)
	require.NoError(t, err)
	defer release()
	return *sess
}

// advance drives the session through the happy path until it reaches target.
func (fx *fixture) advance(t *testing.T, id string, target types.State) {
	t.Helper()
	steps := []flow.Event{
		flow.StartEvent(),
		flow.DocumentEvent([]byte("identity"), "passport.jpg", types.ClassIdentity),
		flow.ChoiceEvent(true),
		flow.DocumentEvent([]byte("vehicle"), "registration.jpg", types.ClassVehicle),
		flow.ChoiceEvent(true),
	}
	for _, ev := range steps {
		if fx.inspect(t, id).State == target {
			return
		}
		fx.handle(t, id, ev)
	}
	require.Equal(t, target, fx.inspect(t, id).State)
}

func TestStartResetsSessionFromAnyState(t *testing.T) {
	fx := newFixture()
	fx.advance(t, "u1", types.StateAwaitingPriceConfirm)

	fx.handle(t, "u1", flow.StartEvent())

	sess := fx.inspect(t, "u1")
	assert.Equal(t, types.StateAwaitingIdentityDoc, sess.State)
	assert.Nil(t, sess.IdentityFields)
	assert.Nil(t, sess.VehicleFields)
	assert.Equal(t, flow.WelcomeMessage, fx.sender.last(t).Text)
}

func TestIdentityUploadThenConfirm(t *testing.T) {
	fx := newFixture()
	fx.handle(t, "u1", flow.StartEvent())
	fx.handle(t, "u1", flow.DocumentEvent([]byte("img"), "passport.jpg", types.ClassIdentity))

	sess := fx.inspect(t, "u1")
	assert.Equal(t, types.StateAwaitingIdentityConfirm, sess.State)
	assert.Equal(t, "Jane Doe", sess.IdentityFields["full_name"])

	prompt := fx.sender.last(t)
	assert.True(t, prompt.Choice, "confirmation prompt should carry the yes/no affordance")
	assert.Contains(t, prompt.Text, "Jane Doe")
	assert.Equal(t, prompt.Text, sess.PendingPrompt)

	fx.handle(t, "u1", flow.ChoiceEvent(true))
	assert.Equal(t, types.StateAwaitingVehicleDoc, fx.inspect(t, "u1").State)
}

func TestFreeTextRejectionReturnsToDocumentStep(t *testing.T) {
	fx := newFixture()
	fx.advance(t, "u1", types.StateAwaitingIdentityConfirm)
	fx.interpreter.verdict = types.VerdictRejected

	fx.handle(t, "u1", flow.TextEvent("nah that's wrong"))

	assert.Equal(t, types.StateAwaitingIdentityDoc, fx.inspect(t, "u1").State)
	assert.Equal(t, 1, fx.interpreter.calls)
	assert.Contains(t, fx.sender.last(t).Text, "send the identity document again")
}

func TestPriceRejectionHoldsState(t *testing.T) {
	fx := newFixture()
	fx.advance(t, "u1", types.StateAwaitingPriceConfirm)

	fx.handle(t, "u1", flow.ChoiceEvent(false))

	assert.Equal(t, types.StateAwaitingPriceConfirm, fx.inspect(t, "u1").State)
	assert.Contains(t, fx.sender.last(t).Text, "100 USD")
	assert.Contains(t, fx.sender.last(t).Text, "cannot be changed")
}

func TestPriceConfirmationDeliversPolicy(t *testing.T) {
	fx := newFixture()
	fx.advance(t, "u1", types.StateAwaitingPriceConfirm)
	before := fx.sender.count()

	fx.handle(t, "u1", flow.ChoiceEvent(true))

	assert.Equal(t, types.StateDone, fx.inspect(t, "u1").State)
	require.Equal(t, before+2, fx.sender.count(), "expected acknowledgment plus policy document")

	policy := fx.sender.last(t).Text
	assert.Contains(t, policy, "Jane Doe")
	assert.Contains(t, policy, "Toyota Corolla")
	assert.Equal(t, 1, fx.composer.policies)
}

func TestButtonPressBypassesInterpreter(t *testing.T) {
	fx := newFixture()
	fx.advance(t, "u1", types.StateAwaitingIdentityConfirm)

	fx.handle(t, "u1", flow.ChoiceEvent(true))

	assert.Zero(t, fx.interpreter.calls, "button presses must never reach the interpreter")
	assert.Equal(t, types.StateAwaitingVehicleDoc, fx.inspect(t, "u1").State)
}

func TestInterpreterFailureHoldsStateAndAsksToClarify(t *testing.T) {
	fx := newFixture()
	fx.advance(t, "u1", types.StateAwaitingIdentityConfirm)
	fx.interpreter.err = confirm.ErrInterpretation

	fx.handle(t, "u1", flow.TextEvent("hmm"))

	sess := fx.inspect(t, "u1")
	assert.Equal(t, types.StateAwaitingIdentityConfirm, sess.State, "invocation failure must not transition")
	assert.Equal(t, "Couldn't interpret your reply. Please respond clearly.", fx.sender.last(t).Text)
}

func TestNonCanonicalVerdictIsRejected(t *testing.T) {
	fx := newFixture()
	fx.advance(t, "u1", types.StateAwaitingIdentityConfirm)
	fx.interpreter.verdict = types.Verdict("unsure")

	fx.handle(t, "u1", flow.TextEvent("well maybe"))

	assert.Equal(t, types.StateAwaitingIdentityDoc, fx.inspect(t, "u1").State)
}

func TestExtractionFailureHoldsState(t *testing.T) {
	fx := newFixture()
	fx.handle(t, "u1", flow.StartEvent())
	fx.extractor.err = extract.ErrExtraction

	fx.handle(t, "u1", flow.DocumentEvent([]byte("blurry"), "passport.jpg", types.ClassIdentity))

	sess := fx.inspect(t, "u1")
	assert.Equal(t, types.StateAwaitingIdentityDoc, sess.State)
	assert.Nil(t, sess.IdentityFields)
	assert.False(t, fx.sender.last(t).Choice)
}

func TestPolicyCompositionFailureLeavesDone(t *testing.T) {
	fx := newFixture()
	fx.advance(t, "u1", types.StateAwaitingPriceConfirm)
	fx.composer.policyErr = dialogue.ErrComposition

	fx.handle(t, "u1", flow.ChoiceEvent(true))

	assert.Equal(t, types.StateDone, fx.inspect(t, "u1").State)
	assert.Equal(t, 1, fx.composer.policies)
	assert.Contains(t, fx.sender.last(t).Text, "Failed to generate your policy")
}

func TestOutOfBandDocumentFallsThrough(t *testing.T) {
	fx := newFixture()
	fx.advance(t, "u1", types.StateAwaitingPriceConfirm)
	extractions := fx.extractor.calls

	fx.handle(t, "u1", flow.DocumentEvent([]byte("img"), "extra.jpg", types.ClassIdentity))

	assert.Equal(t, types.StateAwaitingPriceConfirm, fx.inspect(t, "u1").State)
	assert.Equal(t, extractions, fx.extractor.calls, "out-of-band uploads must not be extracted")
}

func TestFreeChatterFallsThrough(t *testing.T) {
	fx := newFixture()
	fx.handle(t, "u1", flow.StartEvent())

	fx.handle(t, "u1", flow.TextEvent("what documents do I need?"))

	assert.Equal(t, types.StateAwaitingIdentityDoc, fx.inspect(t, "u1").State)
	assert.Zero(t, fx.interpreter.calls)
	assert.Contains(t, fx.sender.last(t).Text, "what documents do I need?")
}

func TestComposerFailureStillTransitions(t *testing.T) {
	fx := newFixture()
	fx.handle(t, "u1", flow.StartEvent())
	fx.composer.composeErr = dialogue.ErrComposition

	fx.handle(t, "u1", flow.DocumentEvent([]byte("img"), "passport.jpg", types.ClassIdentity))

	sess := fx.inspect(t, "u1")
	assert.Equal(t, types.StateAwaitingIdentityConfirm, sess.State)
	assert.True(t, fx.sender.last(t).Choice)
	assert.NotEmpty(t, sess.PendingPrompt, "fallback prompt must still be stored for the interpreter")
}

func TestRejectedFieldsAreSupersededByNextExtraction(t *testing.T) {
	fx := newFixture()
	fx.advance(t, "u1", types.StateAwaitingIdentityConfirm)
	fx.interpreter.verdict = types.VerdictRejected
	fx.handle(t, "u1", flow.TextEvent("wrong name"))

	fx.extractor.fields[types.ClassIdentity] = types.FieldSet{"full_name": "Janet Doe"}
	fx.handle(t, "u1", flow.DocumentEvent([]byte("img2"), "passport2.jpg", types.ClassIdentity))

	sess := fx.inspect(t, "u1")
	assert.Equal(t, types.StateAwaitingIdentityConfirm, sess.State)
	assert.Equal(t, "Janet Doe", sess.IdentityFields["full_name"])
}

func TestPricePromptOverwritesPendingPrompt(t *testing.T) {
	fx := newFixture()
	fx.advance(t, "u1", types.StateAwaitingVehicleConfirm)
	vehiclePrompt := fx.inspect(t, "u1").PendingPrompt

	fx.handle(t, "u1", flow.ChoiceEvent(true))

	sess := fx.inspect(t, "u1")
	assert.Equal(t, types.StateAwaitingPriceConfirm, sess.State)
	assert.NotEqual(t, vehiclePrompt, sess.PendingPrompt)
	assert.Contains(t, sess.PendingPrompt, "100 USD")
}

func TestStateAlwaysStaysInEnum(t *testing.T) {
	fx := newFixture()
	events := []flow.Event{
		flow.TextEvent("hi"),
		flow.ChoiceEvent(true),
		flow.StartEvent(),
		flow.ChoiceEvent(false),
		flow.DocumentEvent([]byte("img"), "a.jpg", types.ClassIdentity),
		flow.DocumentEvent([]byte("img"), "b.jpg", types.ClassVehicle),
		flow.TextEvent("yes"),
		flow.ChoiceEvent(true),
		flow.ChoiceEvent(true),
		flow.ChoiceEvent(true),
		flow.TextEvent("done?"),
	}
	for i, ev := range events {
		fx.handle(t, "u1", ev)
		state := fx.inspect(t, "u1").State
		require.Truef(t, state.Valid(), "event %d drove state to %q", i, state)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	fx := newFixture()
	fx.advance(t, "alice", types.StateAwaitingPriceConfirm)
	fx.handle(t, "bob", flow.StartEvent())

	assert.Equal(t, types.StateAwaitingPriceConfirm, fx.inspect(t, "alice").State)
	assert.Equal(t, types.StateAwaitingIdentityDoc, fx.inspect(t, "bob").State)
}

func TestFullHappyPathTranscript(t *testing.T) {
	fx := newFixture()
	fx.handle(t, "u1", flow.StartEvent())
	fx.handle(t, "u1", flow.DocumentEvent([]byte("p"), "passport.jpg", types.ClassIdentity))
	fx.handle(t, "u1", flow.TextEvent("yep, looks good"))
	fx.handle(t, "u1", flow.DocumentEvent([]byte("v"), "registration.jpg", types.ClassVehicle))
	fx.handle(t, "u1", flow.TextEvent("correct"))
	fx.handle(t, "u1", flow.ChoiceEvent(true))

	assert.Equal(t, types.StateDone, fx.inspect(t, "u1").State)
	assert.Equal(t, 2, fx.interpreter.calls)

	var policy string
	for _, m := range fx.sender.messages {
		if strings.Contains(m.Text, "insurance policy has been generated") {
			policy = m.Text
		}
	}
	require.NotEmpty(t, policy)
	assert.Contains(t, policy, "JT2BF22K1W0123456")
}
