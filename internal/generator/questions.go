package generator

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"mockmate/interview/internal/extract"
	"mockmate/interview/internal/llm"
	"mockmate/interview/internal/metrics"
	"mockmate/interview/internal/models"
	"mockmate/interview/internal/prompts"
)

// maxAttempts bounds the primary generation path: the first try plus two
// retries before the simplified fallback prompt takes over.
const maxAttempts = 3

// InterviewSpec is the metadata questions are generated from.
type InterviewSpec struct {
	Title        string
	Duration     int
	FocusAreas   []string
	Technologies []string
}

// GeneratedQuestion is a question value object before persistence.
type GeneratedQuestion struct {
	Text       string
	Type       string
	Technology string
}

// QuestionGenerator produces a question set per difficulty via the model.
type QuestionGenerator struct {
	provider llm.Provider
	prompts  prompts.PromptProvider
	logger   *zap.Logger
}

func NewQuestionGenerator(provider llm.Provider, promptManager prompts.PromptProvider, logger *zap.Logger) *QuestionGenerator {
	return &QuestionGenerator{
		provider: provider,
		prompts:  promptManager,
		logger:   logger,
	}
}

type questionsEnvelope struct {
	Questions []struct {
		Text       string `json:"text"`
		Type       string `json:"type"`
		Technology string `json:"technology"`
	} `json:"questions"`
}

// Generate runs the primary path with a bounded retry loop, then the
// simplified fallback. A fallback parse failure degrades to an empty
// list rather than an error: the caller persists a questionless version
// instead of losing the whole interview.
func (g *QuestionGenerator) Generate(ctx context.Context, spec InterviewSpec, difficulty string) []GeneratedQuestion {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		questions, err := g.generateOnce(ctx, spec, difficulty)
		if err == nil {
			return questions
		}
		g.logger.Warn("question generation attempt failed",
			zap.Int("attempt", attempt),
			zap.String("difficulty", difficulty),
			zap.Error(err))
		if attempt < maxAttempts {
			metrics.ModelRetries.Inc()
		}
	}

	metrics.QuestionFallbacks.Inc()
	questions, err := g.generateFallback(ctx, spec)
	if err != nil {
		g.logger.Error("fallback question generation failed, returning empty set",
			zap.String("title", spec.Title),
			zap.Error(err))
		return nil
	}
	return questions
}

// generateOnce is one attempt of the primary path: a structured object
// with a questions array, each element carrying text and a type tag.
func (g *QuestionGenerator) generateOnce(ctx context.Context, spec InterviewSpec, difficulty string) ([]GeneratedQuestion, error) {
	prompt, err := g.prompts.BuildPrompt("questions", difficulty, map[string]string{
		"Title":        spec.Title,
		"Duration":     strconv.Itoa(spec.Duration),
		"FocusAreas":   strings.Join(spec.FocusAreas, ", "),
		"Technologies": strings.Join(spec.Technologies, ", "),
	})
	if err != nil {
		return nil, err
	}

	response, err := g.provider.GenerateContent(ctx, llm.Request{
		Prompt: prompt,
		System: g.prompts.System("questions"),
	})
	if err != nil {
		return nil, err
	}

	var envelope questionsEnvelope
	if err := extract.JSON(response.Text, &envelope); err != nil {
		return nil, err
	}
	if len(envelope.Questions) == 0 {
		return nil, &extract.ModelResponseError{Raw: response.Text, Reason: "empty questions array"}
	}

	questions := make([]GeneratedQuestion, 0, len(envelope.Questions))
	for _, q := range envelope.Questions {
		text := strings.TrimSpace(q.Text)
		if text == "" {
			return nil, &extract.ModelResponseError{Raw: response.Text, Reason: "question with empty text"}
		}
		questionType := models.NormalizeEnum(q.Type)
		if !models.ValidQuestionTypes[questionType] {
			questionType = Classify(text, spec.FocusAreas)
		}
		questions = append(questions, GeneratedQuestion{
			Text:       text,
			Type:       questionType,
			Technology: strings.TrimSpace(q.Technology),
		})
	}
	return questions, nil
}

// generateFallback asks for a bare array of floor(duration/5) short
// question strings, at least one, and wraps them with heuristic types.
func (g *QuestionGenerator) generateFallback(ctx context.Context, spec InterviewSpec) ([]GeneratedQuestion, error) {
	count := spec.Duration / 5
	if count < 1 {
		count = 1
	}

	prompt, err := g.prompts.BuildPrompt("questions_fallback", "default", map[string]string{
		"Title":        spec.Title,
		"Count":        strconv.Itoa(count),
		"Technologies": strings.Join(spec.Technologies, ", "),
	})
	if err != nil {
		return nil, err
	}

	response, err := g.provider.GenerateContent(ctx, llm.Request{
		Prompt: prompt,
		System: g.prompts.System("questions_fallback"),
	})
	if err != nil {
		return nil, err
	}

	var texts []string
	if err := extract.JSON(response.Text, &texts); err != nil {
		return nil, err
	}

	questions := make([]GeneratedQuestion, 0, len(texts))
	for _, text := range texts {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		questions = append(questions, GeneratedQuestion{
			Text: text,
			Type: Classify(text, spec.FocusAreas),
		})
	}
	return questions, nil
}

// Classify derives a question type from its text, gated by the
// interview's declared focus areas, checked in priority order:
// behavioral, then system design, then problem solving, then the
// TECHNICAL default.
func Classify(text string, focusAreas []string) string {
	lower := strings.ToLower(text)
	declared := make(map[string]bool, len(focusAreas))
	for _, area := range focusAreas {
		declared[area] = true
	}

	if declared[models.FocusBehavioral] &&
		(strings.Contains(lower, "tell me about") || strings.Contains(lower, "how would you handle")) {
		return models.QuestionBehavioral
	}
	if declared[models.FocusSystemDesign] &&
		(strings.Contains(lower, "design") || strings.Contains(lower, "architecture")) {
		return models.QuestionSystemDesign
	}
	if declared[models.FocusProblemSolving] &&
		(strings.Contains(lower, "how would you solve") || strings.Contains(lower, "approach")) {
		return models.QuestionProblemSolving
	}
	return models.QuestionTechnical
}
