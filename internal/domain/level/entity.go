// Package level содержит доменную модель классификации пользователей по
// уровням (tiers). Уровень агрегируется из счётчиков достижений и
// определяет процентную ставку накоплений.
package level

import (
	"time"

	"github.com/kopilka-hub/kopilka/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TIER
// ══════════════════════════════════════════════════════════════════════════════

// Tier - дискретный уровень пользователя.
type Tier int

const (
	// TierBronze - уровень по умолчанию.
	TierBronze Tier = 1
	// TierSilver - от 3 целей ИЛИ 3 курсов.
	TierSilver Tier = 2
	// TierGold - от 6 целей ИЛИ 6 курсов.
	TierGold Tier = 3
	// TierPlatinum - от 10 целей И 10 курсов.
	TierPlatinum Tier = 4
)

// IsValid проверяет, что уровень корректен.
func (t Tier) IsValid() bool {
	return t >= TierBronze && t <= TierPlatinum
}

// Int возвращает числовое значение уровня (1-4).
func (t Tier) Int() int {
	return int(t)
}

// String возвращает строковое представление уровня.
func (t Tier) String() string {
	switch t {
	case TierBronze:
		return "bronze"
	case TierSilver:
		return "silver"
	case TierGold:
		return "gold"
	case TierPlatinum:
		return "platinum"
	default:
		return "unknown"
	}
}

// TierFromInt восстанавливает уровень из числового значения.
// Нераспознанные значения откатываются к Bronze - это документированный
// фолбэк, а не проглоченная ошибка.
func TierFromInt(v int) Tier {
	t := Tier(v)
	if !t.IsValid() {
		return TierBronze
	}
	return t
}

// ══════════════════════════════════════════════════════════════════════════════
// ПОРОГОВОЕ ПРАВИЛО
// Проверяется строго по порядку, побеждает первое совпадение.
// ══════════════════════════════════════════════════════════════════════════════

// Classify вычисляет уровень из счётчиков достижений.
//  1. Platinum: goals ≥ 10 И courses ≥ 10.
//  2. Gold:     goals ≥ 6 ИЛИ courses ≥ 6.
//  3. Silver:   goals ≥ 3 ИЛИ courses ≥ 3.
//  4. Bronze:   иначе (включая нулевые счётчики).
func Classify(goalsAchieved, coursesCompleted int) Tier {
	if goalsAchieved >= 10 && coursesCompleted >= 10 {
		return TierPlatinum
	}
	if goalsAchieved >= 6 || coursesCompleted >= 6 {
		return TierGold
	}
	if goalsAchieved >= 3 || coursesCompleted >= 3 {
		return TierSilver
	}
	return TierBronze
}

// ══════════════════════════════════════════════════════════════════════════════
// ЗАПИСЬ УРОВНЯ ПОЛЬЗОВАТЕЛЯ
// ══════════════════════════════════════════════════════════════════════════════

// UserLevel - персистентная запись уровня. Пересчитывается целиком,
// а не мутируется инкрементально посторонними писателями.
type UserLevel struct {
	// UserID - владелец записи.
	UserID shared.UserID

	// Tier - последний вычисленный уровень.
	Tier Tier

	// GoalsAchieved - счётчик целей на момент пересчёта.
	GoalsAchieved int

	// CoursesCompleted - счётчик курсов на момент пересчёта.
	CoursesCompleted int

	// LastUpdated - время последнего пересчёта.
	LastUpdated time.Time
}

// NewUserLevel создаёт запись уровня из счётчиков.
func NewUserLevel(userID shared.UserID, goals, courses int) *UserLevel {
	return &UserLevel{
		UserID:           userID,
		Tier:             Classify(goals, courses),
		GoalsAchieved:    goals,
		CoursesCompleted: courses,
		LastUpdated:      time.Now().UTC(),
	}
}
