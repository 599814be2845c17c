package types

import "fmt"

// State is the conversation step a session is currently waiting on.
type State string

const (
	StateAwaitingIdentityDoc     State = "awaiting_identity_doc"
	StateAwaitingIdentityConfirm State = "awaiting_identity_confirm"
	StateAwaitingVehicleDoc      State = "awaiting_vehicle_doc"
	StateAwaitingVehicleConfirm  State = "awaiting_vehicle_confirm"
	StateAwaitingPriceConfirm    State = "awaiting_price_confirm"
	StateDone                    State = "done"
)

// Valid reports whether s is one of the defined conversation states.
func (s State) Valid() bool {
	switch s {
	case StateAwaitingIdentityDoc, StateAwaitingIdentityConfirm,
		StateAwaitingVehicleDoc, StateAwaitingVehicleConfirm,
		StateAwaitingPriceConfirm, StateDone:
		return true
	}
	return false
}

// AwaitingConfirmation reports whether s expects a yes/no answer from the user.
func (s State) AwaitingConfirmation() bool {
	switch s {
	case StateAwaitingIdentityConfirm, StateAwaitingVehicleConfirm, StateAwaitingPriceConfirm:
		return true
	}
	return false
}

// Label returns the human-readable step description handed to the message
// composer as context. It is never shown to the user directly.
func (s State) Label() string {
	switch s {
	case StateAwaitingIdentityDoc:
		return "Awaiting identity document photo"
	case StateAwaitingIdentityConfirm:
		return "Awaiting identity details confirmation"
	case StateAwaitingVehicleDoc:
		return "Awaiting vehicle registration photo"
	case StateAwaitingVehicleConfirm:
		return "Awaiting vehicle details confirmation"
	case StateAwaitingPriceConfirm:
		return "Awaiting price confirmation"
	case StateDone:
		return "Finished"
	}
	return string(s)
}

// DocumentClass tells the extractor which kind of document it is looking at.
type DocumentClass string

const (
	ClassIdentity DocumentClass = "identity"
	ClassVehicle  DocumentClass = "vehicle"
)

// Verdict is the binary outcome of a confirmation round.
type Verdict string

const (
	VerdictConfirmed Verdict = "confirmed"
	VerdictRejected  Verdict = "rejected"
)

// Price is the fixed, non-negotiable policy price.
type Price struct {
	Amount   int
	Currency string
}

func (p Price) String() string {
	return fmt.Sprintf("%d %s", p.Amount, p.Currency)
}
