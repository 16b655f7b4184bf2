package query

import (
	"context"
	"errors"
	"time"

	"github.com/kopilka-hub/kopilka/internal/domain/achievement"
	"github.com/kopilka-hub/kopilka/internal/domain/shared"
	"github.com/kopilka-hub/kopilka/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// COURSE COMPLETION QUERIES
// Точечный запрос одной записи и список всех записей пользователя.
// ══════════════════════════════════════════════════════════════════════════════

// GetCourseCompletionQuery содержит параметры запроса записи о курсе.
type GetCourseCompletionQuery struct {
	// UserID - владелец записи.
	UserID shared.UserID

	// CourseID - идентификатор курса.
	CourseID shared.CourseID
}

// Validate проверяет корректность параметров запроса.
func (q GetCourseCompletionQuery) Validate() error {
	if !q.UserID.IsValid() {
		return errors.New("valid user_id is required")
	}
	if !q.CourseID.IsValid() {
		return errors.New("valid course_id is required")
	}
	return nil
}

// ListUserCompletionsQuery содержит параметры запроса списка курсов.
type ListUserCompletionsQuery struct {
	// UserID - владелец записей.
	UserID shared.UserID

	// OnlyCompleted - вернуть только завершённые курсы.
	OnlyCompleted bool
}

// Validate проверяет корректность параметров запроса.
func (q ListUserCompletionsQuery) Validate() error {
	if !q.UserID.IsValid() {
		return errors.New("valid user_id is required")
	}
	return nil
}

// CourseCompletionDTO - проекция записи о завершении курса.
type CourseCompletionDTO struct {
	// UserID - владелец записи.
	UserID string `json:"user_id"`

	// CourseID - идентификатор курса.
	CourseID string `json:"course_id"`

	// Completed - терминальный флаг завершения.
	Completed bool `json:"completed"`

	// BadgeLevel - значок (none/bronze/silver/gold).
	BadgeLevel string `json:"badge_level"`

	// ProofID - hex-идентификатор доказательства завершения.
	ProofID string `json:"proof_id,omitempty"`

	// CompletedAt - время подтверждения завершения.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// GetCourseCompletionResult содержит результат точечного запроса.
type GetCourseCompletionResult struct {
	// Completion - проекция записи.
	Completion CourseCompletionDTO `json:"completion"`

	// GeneratedAt - время генерации результата.
	GeneratedAt time.Time `json:"generated_at"`
}

// ListUserCompletionsResult содержит результат списочного запроса.
type ListUserCompletionsResult struct {
	// Completions - записи пользователя, новые первыми.
	Completions []CourseCompletionDTO `json:"completions"`

	// TotalCompleted - количество завершённых курсов в выборке.
	TotalCompleted int `json:"total_completed"`

	// GeneratedAt - время генерации результата.
	GeneratedAt time.Time `json:"generated_at"`
}

// CourseCompletionHandler обрабатывает запросы записей о курсах.
type CourseCompletionHandler struct {
	courseRepo achievement.CourseRepository
}

// NewCourseCompletionHandler создаёт новый обработчик.
func NewCourseCompletionHandler(courseRepo achievement.CourseRepository) *CourseCompletionHandler {
	return &CourseCompletionHandler{courseRepo: courseRepo}
}

// HandleGet выполняет точечный запрос записи о курсе.
// Возвращает shared.ErrCourseNotFound, если записи нет.
func (h *CourseCompletionHandler) HandleGet(ctx context.Context, query GetCourseCompletionQuery) (*GetCourseCompletionResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetCourseCompletion", shared.ErrValidation, err.Error(), err)
	}

	completion, err := h.courseRepo.Get(ctx, query.UserID, query.CourseID)
	if err != nil {
		return nil, err
	}

	return &GetCourseCompletionResult{
		Completion:  toCompletionDTO(completion),
		GeneratedAt: timeutil.Now(),
	}, nil
}

// HandleList выполняет списочный запрос записей пользователя.
// Пустой список - не ошибка.
func (h *CourseCompletionHandler) HandleList(ctx context.Context, query ListUserCompletionsQuery) (*ListUserCompletionsResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "ListUserCompletions", shared.ErrValidation, err.Error(), err)
	}

	completions, err := h.courseRepo.ListByUser(ctx, query.UserID)
	if err != nil {
		return nil, err
	}

	result := &ListUserCompletionsResult{
		Completions: make([]CourseCompletionDTO, 0, len(completions)),
		GeneratedAt: timeutil.Now(),
	}

	for _, c := range completions {
		if query.OnlyCompleted && !c.Completed {
			continue
		}
		if c.Completed {
			result.TotalCompleted++
		}
		result.Completions = append(result.Completions, toCompletionDTO(c))
	}

	return result, nil
}

// toCompletionDTO формирует DTO из доменного объекта.
func toCompletionDTO(c *achievement.CourseCompletion) CourseCompletionDTO {
	dto := CourseCompletionDTO{
		UserID:     c.UserID.String(),
		CourseID:   c.CourseID.String(),
		Completed:  c.Completed,
		BadgeLevel: c.BadgeLevel.String(),
	}
	if c.ProofID != nil {
		dto.ProofID = c.ProofID.String()
	}
	if !c.CompletedAt.IsZero() {
		completedAt := c.CompletedAt
		dto.CompletedAt = &completedAt
	}
	return dto
}
