package eventhandler

import (
	"github.com/kopilka-hub/kopilka/internal/domain/shared"
	"github.com/kopilka-hub/kopilka/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON BALANCE MOVED HANDLER
// Любое движение средств - вклад, снятие, эскроу, смена цели - делает
// карточку аккаунта устаревшей. Обработчик только инвалидирует её;
// пересборка происходит лениво при следующем чтении.
// ═══════════════════════════════════════════════════════════════════════════

// OnBalanceMovedHandler сбрасывает карточку аккаунта при движении средств.
type OnBalanceMovedHandler struct {
	accounts AccountInvalidator
	log      *logger.Logger
}

// NewOnBalanceMovedHandler создаёт новый обработчик.
func NewOnBalanceMovedHandler(accounts AccountInvalidator, log *logger.Logger) *OnBalanceMovedHandler {
	if log == nil {
		log = logger.Default()
	}

	return &OnBalanceMovedHandler{
		accounts: accounts,
		log:      log.With(logger.Component("on_balance_moved")),
	}
}

// Handle обрабатывает событие движения средств.
// Реализует shared.EventHandler.
func (h *OnBalanceMovedHandler) Handle(event shared.Event) error {
	var userID string

	switch e := event.(type) {
	case shared.SavingsMovedEvent:
		userID = e.UserID
	case shared.InterestAccruedEvent:
		userID = e.UserID
	case shared.EscrowMovedEvent:
		userID = e.UserID
	case shared.GoalSetEvent:
		userID = e.UserID
	default:
		h.log.Warn("received unexpected event type",
			logger.String("event_type", string(event.EventType())),
		)
		return nil
	}

	if h.accounts != nil {
		h.accounts.Invalidate(shared.UserID(userID))
	}

	h.log.Debug("account card invalidated",
		logger.UserID(userID),
		logger.String("event_type", string(event.EventType())),
	)

	return nil
}
