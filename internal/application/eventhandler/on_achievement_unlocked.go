// Package eventhandler содержит обработчики доменных событий.
// Обработчики - "реактивная" часть движка: они не участвуют в
// транзакции разблокировки, а догоняют её побочными эффектами -
// прогревом кешей и инвалидацией проекций.
package eventhandler

import (
	"context"
	"fmt"

	"github.com/kopilka-hub/kopilka/internal/domain/level"
	"github.com/kopilka-hub/kopilka/internal/domain/shared"
	"github.com/kopilka-hub/kopilka/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON ACHIEVEMENT UNLOCKED HANDLER
// Обрабатывает события разблокировки: достижение цели и завершение
// курса. Оба события означают, что счётчики достижений выросли и
// производные данные (уровень, карточка аккаунта) устарели.
// ═══════════════════════════════════════════════════════════════════════════

// AccountInvalidator сбрасывает денормализованную карточку аккаунта.
// Реализуется проекцией account view.
type AccountInvalidator interface {
	Invalidate(userID shared.UserID)
}

// OnAchievementUnlockedHandler обрабатывает события разблокировки.
type OnAchievementUnlockedHandler struct {
	classifier level.Classifier
	accounts   AccountInvalidator
	log        *logger.Logger
}

// NewOnAchievementUnlockedHandler создаёт новый обработчик.
// accounts может быть nil, если проекция аккаунтов не используется.
func NewOnAchievementUnlockedHandler(
	classifier level.Classifier,
	accounts AccountInvalidator,
	log *logger.Logger,
) *OnAchievementUnlockedHandler {
	if log == nil {
		log = logger.Default()
	}

	return &OnAchievementUnlockedHandler{
		classifier: classifier,
		accounts:   accounts,
		log:        log.With(logger.Component("on_achievement_unlocked")),
	}
}

// Handle обрабатывает событие разблокировки.
// Реализует shared.EventHandler.
func (h *OnAchievementUnlockedHandler) Handle(event shared.Event) error {
	ctx := context.Background()

	var userID shared.UserID

	switch e := event.(type) {
	case shared.AchievementUnlockedEvent:
		userID = shared.UserID(e.UserID)
		h.log.Info("processing achievement unlocked event",
			logger.UserID(e.UserID),
			logger.ProofID(e.ProofID),
		)
	case shared.CourseCompletedEvent:
		userID = shared.UserID(e.UserID)
		h.log.Info("processing course completed event",
			logger.UserID(e.UserID),
			logger.CourseID(e.CourseID),
			logger.ProofID(e.ProofID),
		)
	default:
		h.log.Warn("received unexpected event type",
			logger.String("event_type", string(event.EventType())),
		)
		return nil
	}

	// Пересчёт уровня: сама разблокировка его не выполняла бы только
	// при сбое шага пересчёта в саге - здесь мы его догоняем.
	tier, err := h.classifier.RecomputeLevel(ctx, userID)
	if err != nil {
		h.log.Error("level recompute failed",
			logger.UserID(userID.String()),
			logger.Err(err),
		)
		return fmt.Errorf("recompute level: %w", err)
	}

	h.log.Info("level recomputed",
		logger.UserID(userID.String()),
		logger.TierField(tier.String()),
	)

	if h.accounts != nil {
		h.accounts.Invalidate(userID)
	}

	return nil
}
