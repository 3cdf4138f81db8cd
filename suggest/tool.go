package suggest

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"

	"github.com/tbxark/formflow/structured"
)

const (
	suggestToolName        = "suggest_field_value"
	suggestToolDescription = "Propose a value for one form field based on the rest of the form, with a confidence score and a short reason."
)

type suggestionArgs struct {
	Value      any     `json:"value" jsonschema:"required,description=The proposed value for the field"`
	Confidence float64 `json:"confidence" jsonschema:"required,minimum=0,maximum=1,description=Confidence in the proposal between 0 and 1"`
	Reason     string  `json:"reason" jsonschema:"description=One short sentence explaining the proposal"`
	NoProposal bool    `json:"no_proposal,omitempty" jsonschema:"description=Set true when no sensible value can be proposed"`
}

// ToolBasedProvider produces suggestions through a forced tool call against
// a chat model.
type ToolBasedProvider struct {
	chain  *structured.Chain[Request, suggestionArgs]
	source string
}

// ToolProviderOption configures a ToolBasedProvider.
type ToolProviderOption func(*ToolBasedProvider)

// WithSource overrides the attribution recorded on produced suggestions.
// Per-field SuggestSpec.Source still wins when set.
func WithSource(source string) ToolProviderOption {
	return func(p *ToolBasedProvider) {
		p.source = source
	}
}

// NewToolBasedProvider builds an LLM-backed suggestion provider.
func NewToolBasedProvider(chatModel model.ToolCallingChatModel, opts ...ToolProviderOption) (*ToolBasedProvider, error) {
	chain, err := structured.NewChain[Request, suggestionArgs](
		chatModel,
		buildSuggestPrompt,
		suggestToolName,
		suggestToolDescription,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create suggestion chain: %w", err)
	}
	p := &ToolBasedProvider{chain: chain, source: "ai"}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

// Suggest implements Provider.
func (p *ToolBasedProvider) Suggest(ctx context.Context, req Request) (*Result, error) {
	args, err := p.chain.Invoke(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("LLM call failed: %w", err)
	}
	if args == nil || args.NoProposal || args.Value == nil {
		return nil, nil
	}
	source := p.source
	if req.Field.Suggest != nil && req.Field.Suggest.Source != "" {
		source = req.Field.Suggest.Source
	}
	return &Result{
		Value:      args.Value,
		Confidence: args.Confidence,
		Reason:     args.Reason,
		Source:     source,
	}, nil
}
