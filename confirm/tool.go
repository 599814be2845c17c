package confirm

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/andklim/insurebot/types"
)

const (
	classifyToolName        = "classify_confirmation"
	classifyToolDescription = "Record whether the user's reply confirms or rejects what was asked."
)

const classifierSystemPrompt = `You are interpreting a user's response to decide if they confirmed or rejected something that was asked earlier.

You will be given:
- The original message that was shown to the user (containing the extracted data or a fixed insurance price)
- The user's reply to that message

Your job is to determine if the user clearly agreed or confirmed what was asked.

Interpret the user's reply liberally: accept common casual affirmations like "yeah", "yep", "sure", "okay", "fine", "looks good", "proceed" as confirmation.
Only treat the reply as a confirmation if the user clearly agrees.
If the user's reply rejects, questions, hesitates, or is ambiguous, it is a rejection.

You MUST call the ` + classifyToolName + ` tool with verdict set to exactly "confirmed" or "rejected".`

type classifyInput struct {
	Verdict     string `json:"verdict" jsonschema:"required,enum=confirmed,enum=rejected,description=Whether the user confirmed or rejected what was asked"`
	Explanation string `json:"explanation,omitempty" jsonschema:"description=Brief reason"`
}

type classifyOutput struct {
	Success bool `json:"success"`
}

// ToolBasedInterpreter asks a tool-calling chat model for the verdict through
// a forced tool call, then normalizes whatever comes back.
type ToolBasedInterpreter struct {
	chatModel model.ToolCallingChatModel
	toolInfo  *schema.ToolInfo
}

func NewToolBasedInterpreter(ctx context.Context, chatModel model.ToolCallingChatModel) (*ToolBasedInterpreter, error) {
	toolFunc := func(ctx context.Context, input *classifyInput) (*classifyOutput, error) {
		return &classifyOutput{Success: true}, nil
	}
	classifyTool, err := utils.InferTool(classifyToolName, classifyToolDescription, toolFunc)
	if err != nil {
		return nil, fmt.Errorf("infer classification tool: %w", err)
	}
	toolInfo, err := classifyTool.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("classification tool info: %w", err)
	}
	return &ToolBasedInterpreter{
		chatModel: chatModel,
		toolInfo:  toolInfo,
	}, nil
}

func (p *ToolBasedInterpreter) Interpret(ctx context.Context, prompt, reply string) (types.Verdict, error) {
	userPrompt := fmt.Sprintf("Confirmation prompt: %s\nUser response: %s", prompt, reply)

	resp, err := p.chatModel.Generate(ctx, []*schema.Message{
		schema.SystemMessage(classifierSystemPrompt),
		schema.UserMessage(userPrompt),
	},
		model.WithTools([]*schema.ToolInfo{p.toolInfo}),
		model.WithToolChoice(schema.ToolChoiceForced, p.toolInfo.Name),
	)
	if err != nil {
		return types.VerdictRejected, fmt.Errorf("%w: %v", ErrInterpretation, err)
	}

	var args string
	for _, tc := range resp.ToolCalls {
		if tc.Function.Name == classifyToolName {
			args = tc.Function.Arguments
			break
		}
	}
	if args == "" {
		// Completed call, malformed output: fail safe on the content itself.
		return types.NormalizeVerdict(resp.Content), nil
	}

	var input classifyInput
	if err := sonic.UnmarshalString(args, &input); err != nil {
		return types.VerdictRejected, nil
	}
	return types.NormalizeVerdict(input.Verdict), nil
}
