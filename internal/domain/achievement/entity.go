// Package achievement содержит доменную модель достижений: накопительные
// цели и завершения курсов. Это ядро бизнес-логики - здесь нет внешних
// зависимостей.
//
// Машина состояний записи: Created → (Funded*) → Achieved (терминальное).
// Funded - самопетля через операции эскроу, а не отдельное состояние.
// Флаг achieved взводится ровно один раз и никогда не сбрасывается
// повторной подачей доказательства.
package achievement

import (
	"time"

	"github.com/kopilka-hub/kopilka/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BADGE LEVEL
// ══════════════════════════════════════════════════════════════════════════════

// BadgeLevel - уровень значка за завершение курса.
type BadgeLevel int

const (
	// BadgeBronze - минимальный проходной результат.
	BadgeBronze BadgeLevel = 1
	// BadgeSilver - результат не ниже двукратного проходного.
	BadgeSilver BadgeLevel = 2
	// BadgeGold - результат не ниже трёхкратного проходного.
	BadgeGold BadgeLevel = 3
)

// IsValid проверяет, что уровень значка корректен.
func (b BadgeLevel) IsValid() bool {
	return b >= BadgeBronze && b <= BadgeGold
}

// String возвращает строковое представление значка.
func (b BadgeLevel) String() string {
	switch b {
	case BadgeBronze:
		return "bronze"
	case BadgeSilver:
		return "silver"
	case BadgeGold:
		return "gold"
	default:
		return "unknown"
	}
}

// DeriveBadgeLevel вычисляет уровень значка из публичных выходов
// доказательства: балл и проходной балл.
// Gold при score ≥ 3×passing, Silver при score ≥ 2×passing, иначе Bronze.
func DeriveBadgeLevel(score, passingScore uint64) BadgeLevel {
	if passingScore == 0 {
		return BadgeGold
	}

	switch {
	case score/passingScore >= 3:
		return BadgeGold
	case score/passingScore >= 2:
		return BadgeSilver
	default:
		return BadgeBronze
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// НАКОПИТЕЛЬНАЯ ЦЕЛЬ
// ══════════════════════════════════════════════════════════════════════════════

// Goal - накопительная цель пользователя. Одна запись на пользователя.
type Goal struct {
	// UserID - владелец цели.
	UserID shared.UserID

	// TargetAmount - целевая сумма накопления (строго положительная).
	TargetAmount shared.Amount

	// Deadline - необязательный срок достижения цели.
	Deadline *time.Time

	// SavedAmount - эскроу-баланс внутри записи. Неотрицателен и
	// независим от достижения цели.
	SavedAmount shared.Amount

	// Achieved - терминальный флаг: цель подтверждена доказательством.
	Achieved bool

	// ProofID - идентификатор доказательства, подтвердившего цель.
	ProofID *shared.ProofID

	// CreatedAt - время создания записи.
	CreatedAt time.Time

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time
}

// NewGoal создаёт новую цель с валидацией.
// Возвращает shared.ErrInvalidTargetAmount, если целевая сумма не положительна.
func NewGoal(userID shared.UserID, target shared.Amount, deadline *time.Time) (*Goal, error) {
	if !target.IsPositive() {
		return nil, shared.ErrInvalidTargetAmount
	}

	now := time.Now().UTC()

	return &Goal{
		UserID:       userID,
		TargetAmount: target,
		Deadline:     deadline,
		SavedAmount:  0,
		Achieved:     false,
		ProofID:      nil,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Replace заменяет целевую сумму и срок, сохраняя эскроу-баланс.
// Флаг achieved сбрасывается: заменённая цель - новая цель.
func (g *Goal) Replace(target shared.Amount, deadline *time.Time) error {
	if !target.IsPositive() {
		return shared.ErrInvalidTargetAmount
	}

	g.TargetAmount = target
	g.Deadline = deadline
	g.Achieved = false
	g.ProofID = nil
	g.UpdatedAt = time.Now().UTC()
	return nil
}

// DepositEscrow добавляет средства в эскроу и возвращает новый баланс.
func (g *Goal) DepositEscrow(amount shared.Amount) (shared.Amount, error) {
	if !amount.IsPositive() {
		return g.SavedAmount, shared.ErrInvalidEscrowAmount
	}
	if g.Achieved {
		return g.SavedAmount, shared.ErrAlreadyAchieved
	}

	g.SavedAmount = g.SavedAmount.Add(amount)
	g.UpdatedAt = time.Now().UTC()
	return g.SavedAmount, nil
}

// WithdrawEscrow снимает средства из эскроу и возвращает новый баланс.
// Снятие разрешено и после достижения цели.
func (g *Goal) WithdrawEscrow(amount shared.Amount) (shared.Amount, error) {
	if !amount.IsPositive() {
		return g.SavedAmount, shared.ErrInvalidEscrowAmount
	}
	if amount > g.SavedAmount {
		return g.SavedAmount, shared.ErrEscrowInsufficient
	}

	g.SavedAmount = g.SavedAmount.Sub(amount)
	g.UpdatedAt = time.Now().UTC()
	return g.SavedAmount, nil
}

// MarkAchieved необратимо помечает цель достигнутой.
// Возвращает shared.ErrAlreadyAchieved при повторном вызове; запись
// при этом не меняется.
func (g *Goal) MarkAchieved(proofID shared.ProofID) error {
	if g.Achieved {
		return shared.ErrAlreadyAchieved
	}

	g.Achieved = true
	g.ProofID = &proofID
	g.UpdatedAt = time.Now().UTC()
	return nil
}

// Progress возвращает прогресс накопления в процентах (0-100+).
func (g *Goal) Progress() float64 {
	if g.TargetAmount <= 0 {
		return 0
	}
	return float64(g.SavedAmount) / float64(g.TargetAmount) * 100
}

// IsOverdue проверяет, истёк ли срок недостигнутой цели.
func (g *Goal) IsOverdue(now time.Time) bool {
	return !g.Achieved && g.Deadline != nil && now.After(*g.Deadline)
}

// ══════════════════════════════════════════════════════════════════════════════
// ЗАВЕРШЕНИЕ КУРСА
// ══════════════════════════════════════════════════════════════════════════════

// CourseCompletion - запись о завершении курса, ключ (user, course_id).
type CourseCompletion struct {
	// UserID - владелец записи.
	UserID shared.UserID

	// CourseID - идентификатор курса.
	CourseID shared.CourseID

	// Completed - терминальный флаг завершения.
	Completed bool

	// BadgeLevel - уровень значка, извлечённый из доказательства.
	BadgeLevel BadgeLevel

	// ProofID - идентификатор доказательства завершения.
	ProofID *shared.ProofID

	// CompletedAt - время подтверждения завершения.
	CompletedAt time.Time

	// CreatedAt - время создания записи.
	CreatedAt time.Time
}

// NewCourseCompletion создаёт незавершённую запись о курсе.
func NewCourseCompletion(userID shared.UserID, courseID shared.CourseID) *CourseCompletion {
	return &CourseCompletion{
		UserID:    userID,
		CourseID:  courseID,
		Completed: false,
		CreatedAt: time.Now().UTC(),
	}
}

// MarkCompleted необратимо помечает курс завершённым с указанным значком.
func (c *CourseCompletion) MarkCompleted(proofID shared.ProofID, badge BadgeLevel) error {
	if c.Completed {
		return shared.ErrAlreadyCompleted
	}
	if !badge.IsValid() {
		return shared.ErrInvalidBadgeLevel
	}

	c.Completed = true
	c.BadgeLevel = badge
	c.ProofID = &proofID
	c.CompletedAt = time.Now().UTC()
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// АГРЕГИРОВАННЫЕ СЧЁТЧИКИ
// ══════════════════════════════════════════════════════════════════════════════

// Counters - инкрементные счётчики достижений пользователя.
// Обновляются в той же транзакции, что взводит терминальный флаг,
// и читаются классификатором уровней.
type Counters struct {
	UserID           shared.UserID
	GoalsAchieved    int
	CoursesCompleted int
	UpdatedAt        time.Time
}
