package generator

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"mockmate/interview/internal/extract"
	"mockmate/interview/internal/llm"
	"mockmate/interview/internal/prompts"
)

// TechnologyNormalizer confirms free-text technology names via the model.
// It never fails: any error on the call or validation path falls back to
// the trimmed input, so downstream persistence always gets a list.
type TechnologyNormalizer struct {
	provider llm.Provider
	prompts  prompts.PromptProvider
	logger   *zap.Logger
}

func NewTechnologyNormalizer(provider llm.Provider, promptManager prompts.PromptProvider, logger *zap.Logger) *TechnologyNormalizer {
	return &TechnologyNormalizer{
		provider: provider,
		prompts:  promptManager,
		logger:   logger,
	}
}

// Normalize returns normalized names for the given non-empty input list.
func (n *TechnologyNormalizer) Normalize(ctx context.Context, names []string) []string {
	normalized, err := n.normalize(ctx, names)
	if err != nil {
		n.logger.Warn("technology normalization failed, using trimmed input",
			zap.Error(err),
			zap.Strings("names", names))
		return trimAll(names)
	}
	return normalized
}

func (n *TechnologyNormalizer) normalize(ctx context.Context, names []string) ([]string, error) {
	prompt, err := n.prompts.BuildPrompt("technologies", "default", map[string]string{
		"Names": strings.Join(names, ", "),
	})
	if err != nil {
		return nil, err
	}

	response, err := n.provider.GenerateContent(ctx, llm.Request{
		Prompt: prompt,
		System: n.prompts.System("technologies"),
	})
	if err != nil {
		return nil, err
	}

	var result []string
	if err := extract.JSON(response.Text, &result); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, &extract.ModelResponseError{Raw: response.Text, Reason: "empty technology array"}
	}
	for i, name := range result {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			return nil, &extract.ModelResponseError{Raw: response.Text, Reason: "blank technology name in array"}
		}
		result[i] = trimmed
	}
	return result, nil
}

func trimAll(names []string) []string {
	trimmed := make([]string, len(names))
	for i, name := range names {
		trimmed[i] = strings.TrimSpace(name)
	}
	return trimmed
}
