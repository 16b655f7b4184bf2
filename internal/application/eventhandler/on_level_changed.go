package eventhandler

import (
	"context"

	"github.com/kopilka-hub/kopilka/internal/domain/level"
	"github.com/kopilka-hub/kopilka/internal/domain/shared"
	"github.com/kopilka-hub/kopilka/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON LEVEL CHANGED HANDLER
// Обрабатывает смену уровня: прогревает кеш уровней и сбрасывает
// карточку аккаунта. Ставка по позиции НЕ трогается - она применится
// вперёд при следующем касании позиции.
// ═══════════════════════════════════════════════════════════════════════════

// OnLevelChangedHandler обрабатывает событие смены уровня.
type OnLevelChangedHandler struct {
	levelCache level.Cache
	accounts   AccountInvalidator
	log        *logger.Logger
}

// NewOnLevelChangedHandler создаёт новый обработчик.
// levelCache и accounts могут быть nil.
func NewOnLevelChangedHandler(
	levelCache level.Cache,
	accounts AccountInvalidator,
	log *logger.Logger,
) *OnLevelChangedHandler {
	if log == nil {
		log = logger.Default()
	}

	return &OnLevelChangedHandler{
		levelCache: levelCache,
		accounts:   accounts,
		log:        log.With(logger.Component("on_level_changed")),
	}
}

// Handle обрабатывает событие смены уровня.
// Реализует shared.EventHandler.
func (h *OnLevelChangedHandler) Handle(event shared.Event) error {
	levelEvent, ok := event.(shared.LevelChangedEvent)
	if !ok {
		h.log.Warn("received non-LevelChangedEvent",
			logger.String("event_type", string(event.EventType())),
		)
		return nil
	}

	h.log.Info("processing level changed event",
		logger.UserID(levelEvent.UserID),
		logger.Int("old_tier", levelEvent.OldTier),
		logger.Int("new_tier", levelEvent.NewTier),
		logger.Int("goals_achieved", levelEvent.Goals),
		logger.Int("courses_completed", levelEvent.Courses),
	)

	userID := shared.UserID(levelEvent.UserID)

	// Прогрев кеша: запись уровня уже сохранена пересчётом, кеш
	// лишь догоняет её. Сбой кеша не критичен.
	if h.levelCache != nil {
		tier := level.TierFromInt(levelEvent.NewTier)
		if tier.IsValid() {
			if err := h.levelCache.Set(context.Background(), userID, tier); err != nil {
				h.log.Warn("level cache warm-up failed",
					logger.UserID(levelEvent.UserID),
					logger.Err(err),
				)
			}
		}
	}

	if h.accounts != nil {
		h.accounts.Invalidate(userID)
	}

	return nil
}
