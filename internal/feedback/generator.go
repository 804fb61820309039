// Package feedback turns a session transcript into a persisted,
// structured evaluation.
package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"mockmate/interview/internal/extract"
	"mockmate/interview/internal/llm"
	"mockmate/interview/internal/models"
	"mockmate/interview/internal/prompts"
	"mockmate/interview/internal/transcript"
)

var ErrFeedbackExists = errors.New("feedback already exists for session")

// Generator produces and persists feedback for completed sessions.
type Generator struct {
	db       *gorm.DB
	provider llm.Provider
	prompts  prompts.PromptProvider
	logger   *zap.Logger
}

func NewGenerator(db *gorm.DB, provider llm.Provider, promptManager prompts.PromptProvider, logger *zap.Logger) *Generator {
	return &Generator{
		db:       db,
		provider: provider,
		prompts:  promptManager,
		logger:   logger,
	}
}

// modelFeedback is the shape the assessor prompt asks for. Pointer
// fields keep "model declined to score" distinct from zero.
type modelFeedback struct {
	Technical      *float64 `json:"technical"`
	Communication  *float64 `json:"communication"`
	ProblemSolving *float64 `json:"problemSolving"`
	Clarity        *float64 `json:"clarity"`
	Confidence     *float64 `json:"confidence"`
	FillerWords    *float64 `json:"fillerWords"`
	Pacing         *float64 `json:"pacing"`
	OverallScore   *float64 `json:"overallScore"`

	Summary          string          `json:"summary"`
	ImprovementPlan  string          `json:"improvementPlan"`
	QuestionAnalysis json.RawMessage `json:"questionAnalysis"`

	TechnologyScores []struct {
		Technology string  `json:"technology"`
		Score      float64 `json:"score"`
		Strengths  string  `json:"strengths"`
		Weaknesses string  `json:"weaknesses"`
	} `json:"technologyScores"`
}

// Generate evaluates the session's transcript and persists the result.
// Parse failures surface as errors so the caller can show them; a
// session is never silently given zeroed feedback. As a side effect the
// parent session's stored overall score is updated.
func (g *Generator) Generate(ctx context.Context, session *models.Session) (*models.Feedback, error) {
	var existing int64
	if err := g.db.WithContext(ctx).Model(&models.Feedback{}).
		Where("session_id = ?", session.ID).Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, ErrFeedbackExists
	}

	var questions []models.Question
	if err := g.db.WithContext(ctx).Where("version_id = ?", session.VersionID).Find(&questions).Error; err != nil {
		return nil, err
	}
	questionTexts := make([]string, 0, len(questions))
	for _, q := range questions {
		questionTexts = append(questionTexts, "- "+q.Text)
	}

	// normalizing through the transcript codec drops malformed blocks
	// before the text reaches the assessor
	turns := transcript.Parse(session.Transcript)
	prompt, err := g.prompts.BuildPrompt("feedback", "default", map[string]string{
		"Difficulty": session.Difficulty,
		"FocusAreas": strings.Join(session.FocusAreaList(), ", "),
		"Duration":   strconv.Itoa(session.Duration),
		"Questions":  strings.Join(questionTexts, "\n"),
		"Transcript": transcript.Serialize(turns),
	})
	if err != nil {
		return nil, err
	}

	response, err := g.provider.GenerateContent(ctx, llm.Request{
		Prompt: prompt,
		System: g.prompts.System("feedback"),
	})
	if err != nil {
		return nil, err
	}

	var parsed modelFeedback
	if err := extract.JSON(response.Text, &parsed); err != nil {
		return nil, err
	}

	fb := &models.Feedback{
		SessionID:        session.ID,
		Technical:        parsed.Technical,
		Communication:    parsed.Communication,
		ProblemSolving:   parsed.ProblemSolving,
		Clarity:          parsed.Clarity,
		Confidence:       parsed.Confidence,
		FillerWords:      parsed.FillerWords,
		Pacing:           parsed.Pacing,
		Summary:          parsed.Summary,
		ImprovementPlan:  parsed.ImprovementPlan,
		QuestionAnalysis: string(parsed.QuestionAnalysis),
	}
	for _, score := range parsed.TechnologyScores {
		fb.TechnologyScores = append(fb.TechnologyScores, models.TechnologyScore{
			Technology: score.Technology,
			Score:      score.Score,
			Strengths:  score.Strengths,
			Weaknesses: score.Weaknesses,
		})
	}

	// the stored session score aggregates our own sub-scores, distinct
	// from the model-reported overallScore field
	overall := fb.OverallScore()

	err = g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(fb).Error; err != nil {
			return err
		}
		return tx.Model(&models.Session{}).
			Where("id = ?", session.ID).
			Update("overall_score", overall).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist feedback: %w", err)
	}

	session.OverallScore = &overall

	g.logger.Info("feedback generated",
		zap.Uint("session_id", session.ID),
		zap.Float64("overall_score", overall))
	return fb, nil
}
