// Package interviews owns interview definitions: full-form creation,
// difficulty versioning and agent-driven derivation.
package interviews

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mockmate/interview/internal/extract"
	"mockmate/interview/internal/generator"
	"mockmate/interview/internal/llm"
	"mockmate/interview/internal/models"
	"mockmate/interview/internal/prompts"
)

var (
	ErrInterviewNotFound = errors.New("interview not found")
	ErrAccessDenied      = errors.New("access denied")
)

// Builder turns validated requests into persisted interviews. Question
// generation happens outside the transaction so a slow or failing model
// call never holds database locks.
type Builder struct {
	db         *gorm.DB
	normalizer *generator.TechnologyNormalizer
	questions  *generator.QuestionGenerator
	provider   llm.Provider
	prompts    prompts.PromptProvider
	logger     *zap.Logger
}

func NewBuilder(
	db *gorm.DB,
	normalizer *generator.TechnologyNormalizer,
	questions *generator.QuestionGenerator,
	provider llm.Provider,
	promptManager prompts.PromptProvider,
	logger *zap.Logger,
) *Builder {
	return &Builder{
		db:         db,
		normalizer: normalizer,
		questions:  questions,
		provider:   provider,
		prompts:    promptManager,
		logger:     logger,
	}
}

// Create builds an interview with one generated version per requested
// difficulty. The request must already be validated.
func (b *Builder) Create(ctx context.Context, userID string, req *models.CreateInterviewRequest) (*models.Interview, error) {
	normalized := b.normalizer.Normalize(ctx, req.Technologies)

	spec := generator.InterviewSpec{
		Title:        req.Title,
		Duration:     req.Duration,
		FocusAreas:   req.FocusAreas,
		Technologies: normalized,
	}

	generated := make(map[string][]generator.GeneratedQuestion, len(req.Difficulties))
	for _, difficulty := range req.Difficulties {
		generated[difficulty] = b.questions.Generate(ctx, spec, difficulty)
	}

	interview := &models.Interview{
		Title:       req.Title,
		Description: req.Description,
		Duration:    req.Duration,
		FocusAreas:  models.JoinList(req.FocusAreas),
		IsPublic:    req.IsPublic,
		CreatorID:   userID,
	}

	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		techByName, err := upsertTechnologies(tx, normalized)
		if err != nil {
			return err
		}
		for _, tech := range techByName {
			interview.Technologies = append(interview.Technologies, *tech)
		}

		if err := tx.Create(interview).Error; err != nil {
			return fmt.Errorf("failed to create interview: %w", err)
		}

		for _, difficulty := range req.Difficulties {
			version := &models.InterviewVersion{
				InterviewID: interview.ID,
				Difficulty:  difficulty,
			}
			for _, q := range generated[difficulty] {
				question := models.Question{Text: q.Text, Type: q.Type}
				if tech, ok := techByName[strings.ToLower(q.Technology)]; ok {
					id := tech.ID
					question.TechnologyID = &id
				}
				version.Questions = append(version.Questions, question)
			}
			if err := tx.Create(version).Error; err != nil {
				return fmt.Errorf("failed to create version: %w", err)
			}
			interview.Versions = append(interview.Versions, *version)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	b.logger.Info("interview created",
		zap.Uint("interview_id", interview.ID),
		zap.String("creator_id", userID),
		zap.Strings("difficulties", req.Difficulties))
	return interview, nil
}

// Get loads an interview with its versions. Private interviews are
// visible only to their creator.
func (b *Builder) Get(ctx context.Context, id uint, userID string) (*models.Interview, error) {
	var interview models.Interview
	err := b.db.WithContext(ctx).
		Preload("Technologies").
		Preload("Versions").
		First(&interview, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInterviewNotFound
	}
	if err != nil {
		return nil, err
	}
	if !interview.IsPublic && interview.CreatorID != userID {
		return nil, ErrAccessDenied
	}
	return &interview, nil
}

// List returns public interviews plus the caller's own private ones.
func (b *Builder) List(ctx context.Context, userID string) ([]models.Interview, error) {
	var interviews []models.Interview
	err := b.db.WithContext(ctx).
		Preload("Technologies").
		Where("is_public = ? OR creator_id = ?", true, userID).
		Order("created_at DESC").
		Find(&interviews).Error
	if err != nil {
		return nil, err
	}
	return interviews, nil
}

// FindOrCreateVersion returns the version at the requested difficulty,
// generating it on first request. Repeated calls for the same pair are
// idempotent and never duplicate questions.
func (b *Builder) FindOrCreateVersion(ctx context.Context, interviewID uint, difficulty, userID string) (*models.InterviewVersion, error) {
	difficulty = models.NormalizeEnum(difficulty)
	if !models.ValidDifficulties[difficulty] {
		return nil, &models.ErrorResponse{Code: "invalid_difficulty", Message: "Difficulty must be one of: BEGINNER, INTERMEDIATE, ADVANCED"}
	}

	interview, err := b.Get(ctx, interviewID, userID)
	if err != nil {
		return nil, err
	}

	var version models.InterviewVersion
	err = b.db.WithContext(ctx).
		Preload("Questions").
		Where("interview_id = ? AND difficulty = ?", interviewID, difficulty).
		First(&version).Error
	if err == nil {
		return &version, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	names := make([]string, 0, len(interview.Technologies))
	techIDs := make(map[string]uint, len(interview.Technologies))
	for _, tech := range interview.Technologies {
		names = append(names, tech.Name)
		techIDs[strings.ToLower(tech.Name)] = tech.ID
	}

	generated := b.questions.Generate(ctx, generator.InterviewSpec{
		Title:        interview.Title,
		Duration:     interview.Duration,
		FocusAreas:   interview.FocusAreaList(),
		Technologies: names,
	}, difficulty)

	version = models.InterviewVersion{InterviewID: interviewID, Difficulty: difficulty}
	for _, q := range generated {
		question := models.Question{Text: q.Text, Type: q.Type}
		if id, ok := techIDs[strings.ToLower(q.Technology)]; ok {
			techID := id
			question.TechnologyID = &techID
		}
		version.Questions = append(version.Questions, question)
	}

	err = b.db.WithContext(ctx).Create(&version).Error
	if err != nil {
		// lost a race with a concurrent create; the winner's row is fine
		var existing models.InterviewVersion
		if findErr := b.db.WithContext(ctx).
			Preload("Questions").
			Where("interview_id = ? AND difficulty = ?", interviewID, difficulty).
			First(&existing).Error; findErr == nil {
			return &existing, nil
		}
		return nil, err
	}
	return &version, nil
}

// derivedInterview is the envelope the derivation prompt asks for.
type derivedInterview struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Duration     int      `json:"duration"`
	FocusAreas   []string `json:"focusAreas"`
	Technologies []string `json:"technologies"`
	Questions    []string `json:"questions"`
}

// Derive builds a complete interview from a free-form role description,
// question texts included, in a single model call.
func (b *Builder) Derive(ctx context.Context, req *models.GenerateInterviewRequest) (*models.Interview, error) {
	prompt, err := b.prompts.BuildPrompt("interview", "default", map[string]string{
		"Role":      req.Role,
		"Level":     req.Level,
		"Techstack": req.Techstack,
	})
	if err != nil {
		return nil, err
	}

	response, err := b.provider.GenerateContent(ctx, llm.Request{
		Prompt: prompt,
		System: b.prompts.System("interview"),
	})
	if err != nil {
		return nil, err
	}

	var derived derivedInterview
	if err := extract.JSON(response.Text, &derived); err != nil {
		return nil, err
	}
	if derived.Title == "" {
		derived.Title = req.Role + " Interview"
	}
	if derived.Duration <= 0 {
		derived.Duration = 30
	}
	focusAreas := make([]string, 0, len(derived.FocusAreas))
	for _, area := range derived.FocusAreas {
		if normalized := models.NormalizeEnum(area); models.ValidFocusAreas[normalized] {
			focusAreas = append(focusAreas, normalized)
		}
	}
	if len(focusAreas) == 0 {
		focusAreas = []string{models.FocusTechnical}
	}

	normalized := b.normalizer.Normalize(ctx, append(derived.Technologies, strings.Split(req.Techstack, ",")...))

	interview := &models.Interview{
		Title:       derived.Title,
		Description: derived.Description,
		Duration:    derived.Duration,
		FocusAreas:  models.JoinList(focusAreas),
		IsPublic:    false,
		CreatorID:   req.UserID,
	}

	err = b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		techByName, err := upsertTechnologies(tx, normalized)
		if err != nil {
			return err
		}
		for _, tech := range techByName {
			interview.Technologies = append(interview.Technologies, *tech)
		}
		if err := tx.Create(interview).Error; err != nil {
			return fmt.Errorf("failed to create interview: %w", err)
		}

		version := &models.InterviewVersion{
			InterviewID: interview.ID,
			Difficulty:  req.Level,
		}
		for _, text := range derived.Questions {
			if strings.TrimSpace(text) == "" {
				continue
			}
			version.Questions = append(version.Questions, models.Question{
				Text: text,
				Type: generator.Classify(text, focusAreas),
			})
		}
		if err := tx.Create(version).Error; err != nil {
			return fmt.Errorf("failed to create version: %w", err)
		}
		interview.Versions = append(interview.Versions, *version)
		return nil
	})
	if err != nil {
		return nil, err
	}

	b.logger.Info("interview derived",
		zap.Uint("interview_id", interview.ID),
		zap.String("role", req.Role),
		zap.Int("questions", len(interview.Versions[0].Questions)))
	return interview, nil
}

// upsertTechnologies resolves names to rows, creating missing ones.
// The insert is ON CONFLICT DO NOTHING so a concurrent writer racing on
// the same name cannot fail the transaction; the follow-up fetch picks
// up whichever row won. Keys are lower-cased names.
func upsertTechnologies(tx *gorm.DB, names []string) (map[string]*models.Technology, error) {
	byName := make(map[string]*models.Technology, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := byName[key]; ok {
			continue
		}
		tech := &models.Technology{Name: name}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).Create(tech).Error
		if err != nil {
			return nil, fmt.Errorf("failed to upsert technology %q: %w", name, err)
		}
		if tech.ID == 0 {
			if err := tx.Where("name = ?", name).First(tech).Error; err != nil {
				return nil, fmt.Errorf("failed to load technology %q: %w", name, err)
			}
		}
		byName[key] = tech
	}
	return byName, nil
}
