// Package dialogue produces the user-facing prose for the intake
// conversation, including the final policy document.
package dialogue

import (
	"context"
	"errors"

	"github.com/andklim/insurebot/types"
)

// ErrComposition marks a composer call that produced no usable text. The flow
// recovers with a fixed fallback message and never rolls back an already
// committed transition.
var ErrComposition = errors.New("message composition failed")

// Composer renders outbound messages. Compose receives an instruction
// describing what to say plus the current step label for context; the step
// label must not appear in the rendered text. ComposePolicy formats the final
// policy document from the two extracted field sets.
type Composer interface {
	Compose(ctx context.Context, instruction string, state types.State) (string, error)
	ComposePolicy(ctx context.Context, identity, vehicle types.FieldSet) (string, error)
}
