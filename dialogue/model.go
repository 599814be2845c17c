package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/andklim/insurebot/types"
)

// ModelComposer renders messages through a chat model.
type ModelComposer struct {
	chatModel    model.BaseChatModel
	systemPrompt string
	policyPrompt string
}

type composerOptions struct {
	systemPrompt string
	policyPrompt string
}

type ComposerOption func(*composerOptions)

// WithSystemPrompt overrides the assistant system prompt.
func WithSystemPrompt(prompt string) ComposerOption {
	return func(o *composerOptions) {
		o.systemPrompt = prompt
	}
}

// WithPolicyPrompt overrides the policy template prompt.
func WithPolicyPrompt(prompt string) ComposerOption {
	return func(o *composerOptions) {
		o.policyPrompt = prompt
	}
}

func NewModelComposer(chatModel model.BaseChatModel, opts ...ComposerOption) *ModelComposer {
	options := composerOptions{
		systemPrompt: DefaultSystemPrompt,
		policyPrompt: DefaultPolicyPrompt,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	return &ModelComposer{
		chatModel:    chatModel,
		systemPrompt: options.systemPrompt,
		policyPrompt: options.policyPrompt,
	}
}

func (c *ModelComposer) Compose(ctx context.Context, instruction string, state types.State) (string, error) {
	userPrompt := fmt.Sprintf("%s\nCURRENT STEP: %s", instruction, state.Label())
	return c.generate(ctx, c.systemPrompt, userPrompt)
}

func (c *ModelComposer) ComposePolicy(ctx context.Context, identity, vehicle types.FieldSet) (string, error) {
	userPrompt := fmt.Sprintf("Identity document data:\n%s\n\nVehicle registration data:\n%s",
		identity.Render(), vehicle.Render())
	return c.generate(ctx, c.policyPrompt, userPrompt)
}

func (c *ModelComposer) generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.chatModel.Generate(ctx, []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(userPrompt),
	})
	if err != nil {
		slog.Error("composer model call failed", "err", err)
		return "", fmt.Errorf("%w: %v", ErrComposition, err)
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", fmt.Errorf("%w: model returned empty text", ErrComposition)
	}
	return text, nil
}
