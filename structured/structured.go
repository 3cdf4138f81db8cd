package structured

import (
	"context"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
)

// PromptBuilder turns a typed input into the chat messages for one call.
type PromptBuilder[TInput any] func(ctx context.Context, input TInput) ([]*schema.Message, error)

// Chain forces a chat model to answer through a single tool call whose
// arguments decode into TOutput. The tool schema is derived from TOutput's
// struct tags.
type Chain[TInput, TOutput any] struct {
	promptBuilder PromptBuilder[TInput]
	chatModel     model.ToolCallingChatModel
	toolInfo      *schema.ToolInfo
}

// NewChain builds a chain for the given model, prompt builder and tool
// identity.
func NewChain[TInput, TOutput any](
	chatModel model.ToolCallingChatModel,
	promptBuilder PromptBuilder[TInput],
	toolName string,
	toolDesc string,
) (*Chain[TInput, TOutput], error) {
	toolInfo, err := utils.GoStruct2ToolInfo[TOutput](toolName, toolDesc)
	if err != nil {
		return nil, fmt.Errorf("convert tool info failed: %w", err)
	}
	return &Chain[TInput, TOutput]{
		promptBuilder: promptBuilder,
		chatModel:     chatModel,
		toolInfo:      toolInfo,
	}, nil
}

// Invoke runs one forced tool call and decodes the arguments. When the model
// ignores the forced tool choice but replies with bare JSON matching the
// output shape, that content is decoded as a fallback.
func (c *Chain[TInput, TOutput]) Invoke(ctx context.Context, input TInput) (*TOutput, error) {
	messages, err := c.promptBuilder(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("build prompt failed: %w", err)
	}

	response, err := c.chatModel.Generate(ctx, messages,
		model.WithTools([]*schema.ToolInfo{c.toolInfo}),
		model.WithToolChoice(schema.ToolChoiceForced, c.toolInfo.Name),
	)
	if err != nil {
		return nil, fmt.Errorf("call model failed: %w", err)
	}

	payload := ""
	if len(response.ToolCalls) > 0 {
		payload = response.ToolCalls[0].Function.Arguments
	} else if trimmed := strings.TrimSpace(response.Content); strings.HasPrefix(trimmed, "{") {
		payload = trimmed
	}
	if payload == "" {
		return nil, fmt.Errorf("no tool call in model response: %s", response.Content)
	}

	var result TOutput
	if err := sonic.UnmarshalString(payload, &result); err != nil {
		return nil, fmt.Errorf("parse tool arguments failed: %w", err)
	}
	return &result, nil
}
