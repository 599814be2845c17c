// Package confirm turns user replies to a confirmation request into a binary
// verdict.
package confirm

import (
	"context"
	"errors"

	"github.com/andklim/insurebot/types"
)

// ErrInterpretation marks an interpreter invocation that could not complete
// at all. It is deliberately distinct from an ambiguous reply: an ambiguous
// reply is a completed call normalized to a rejection, while this error makes
// the flow hold state and ask the user to reply more clearly.
var ErrInterpretation = errors.New("confirmation interpretation failed")

// Interpreter classifies a free-text reply against the prompt that elicited
// it. A returned verdict is always one of the two canonical values.
type Interpreter interface {
	Interpret(ctx context.Context, prompt, reply string) (types.Verdict, error)
}
