// Package admin содержит модель авторизации конфигурационных операций.
// На каждый компонент движка хранится единственный маркер администратора;
// ротации администратора в этой версии нет - маркер иммутабелен после
// создания.
package admin

import (
	"context"
	"time"

	"github.com/kopilka-hub/kopilka/internal/domain/shared"
)

// Component - компонент движка, закрытый админским маркером.
type Component string

const (
	// ComponentVerifier - верификатор доказательств (материал верификации).
	ComponentVerifier Component = "verifier"
	// ComponentAchievements - хранилище достижений.
	ComponentAchievements Component = "achievements"
	// ComponentLevels - классификатор уровней.
	ComponentLevels Component = "levels"
	// ComponentSavings - накопительный леджер.
	ComponentSavings Component = "savings"
)

// IsValid проверяет, что компонент известен.
func (c Component) IsValid() bool {
	switch c {
	case ComponentVerifier, ComponentAchievements, ComponentLevels, ComponentSavings:
		return true
	default:
		return false
	}
}

// Marker - маркер администратора компонента.
type Marker struct {
	// Component - компонент, который закрывает маркер.
	Component Component

	// AdminID - записанный администратор.
	AdminID shared.UserID

	// Bootstrapped - true, если маркер создан ленивой инициализацией
	// (первым вызывающим), а не явным Initialize.
	Bootstrapped bool

	// CreatedAt - время создания маркера.
	CreatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Repository хранит админские маркеры.
type Repository interface {
	// Create сохраняет маркер компонента.
	// Возвращает shared.ErrAdminAlreadySet, если маркер уже существует.
	Create(ctx context.Context, m *Marker) error

	// Get возвращает маркер компонента.
	// Возвращает shared.ErrNotFound, если маркера нет.
	Get(ctx context.Context, component Component) (*Marker, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// AUTHORIZER
// ══════════════════════════════════════════════════════════════════════════════

// Authorizer - возможность проверки админских прав, потребляемая
// конфигурационными командами.
type Authorizer interface {
	// Initialize явно и однократно записывает администратора компонента.
	// Возвращает shared.ErrAdminAlreadySet при повторной инициализации.
	Initialize(ctx context.Context, component Component, adminID shared.UserID) error

	// AssertAdmin проверяет, что вызывающий - записанный администратор.
	// Если маркера нет, первый вызывающий становится администратором
	// (ленивая инициализация); любой другой вызывающий после этого
	// получает shared.ErrNotAuthorized.
	AssertAdmin(ctx context.Context, component Component, caller shared.UserID) error
}
