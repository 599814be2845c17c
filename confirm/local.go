package confirm

import (
	"context"
	"strings"

	"github.com/andklim/insurebot/types"
)

// LocalInterpreter matches casual affirmatives without calling a model.
// Everything that is not a recognized affirmation is a rejection, which keeps
// the same fail-safe bias as the model-backed interpreter. It never errors,
// so it also serves offline runs and deterministic tests.
type LocalInterpreter struct {
	ConfirmKeywords []string
}

func NewLocalInterpreter() *LocalInterpreter {
	return &LocalInterpreter{
		ConfirmKeywords: []string{
			"yes", "y", "yeah", "yep", "yup", "sure", "ok", "okay", "fine",
			"looks good", "proceed", "confirm", "confirmed", "correct",
			"i agree", "agreed", "that's fine", "sounds good",
		},
	}
}

func (p *LocalInterpreter) Interpret(ctx context.Context, prompt, reply string) (types.Verdict, error) {
	normalized := strings.ToLower(strings.TrimSpace(reply))
	normalized = strings.TrimRight(normalized, ".!")
	for _, keyword := range p.ConfirmKeywords {
		if normalized == keyword {
			return types.VerdictConfirmed, nil
		}
	}
	return types.VerdictRejected, nil
}
