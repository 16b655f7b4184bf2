// Package savings содержит доменную модель накопительной позиции с
// ленивым начислением процентов. Ставка зависит от уровня пользователя
// и пересчитывается при каждом касании позиции.
package savings

import (
	"context"
	"math/big"
	"time"

	"github.com/kopilka-hub/kopilka/internal/domain/level"
	"github.com/kopilka-hub/kopilka/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ТАБЛИЦА СТАВОК
// ══════════════════════════════════════════════════════════════════════════════

// Годовые ставки (APY) в базисных пунктах по уровням.
const (
	BronzeAPY   shared.BasisPoints = 200 // 2.00%
	SilverAPY   shared.BasisPoints = 400 // 4.00%
	GoldAPY     shared.BasisPoints = 600 // 6.00%
	PlatinumAPY shared.BasisPoints = 800 // 8.00%
)

// SecondsPerYear - длина года для начисления (365 дней).
const SecondsPerYear = 365 * 24 * 60 * 60

// APYForTier возвращает ставку для уровня.
// Нераспознанный уровень откатывается к ставке Bronze.
func APYForTier(t level.Tier) shared.BasisPoints {
	switch t {
	case level.TierBronze:
		return BronzeAPY
	case level.TierSilver:
		return SilverAPY
	case level.TierGold:
		return GoldAPY
	case level.TierPlatinum:
		return PlatinumAPY
	default:
		return BronzeAPY
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// НАКОПИТЕЛЬНАЯ ПОЗИЦИЯ
// Инварианты: principal ≥ 0, interest_earned ≥ 0; apy_bps всегда
// соответствует уровню, записанному в той же записи.
// ══════════════════════════════════════════════════════════════════════════════

// Position - накопительная позиция пользователя.
type Position struct {
	// UserID - владелец позиции.
	UserID shared.UserID

	// Principal - основная сумма вклада.
	Principal shared.Amount

	// InterestEarned - накопленный процент.
	InterestEarned shared.Amount

	// Tier - уровень, под который записана ставка.
	Tier level.Tier

	// APYBps - ставка в базисных пунктах; задаётся вместе с Tier.
	APYBps shared.BasisPoints

	// LastUpdated - момент последнего начисления.
	LastUpdated time.Time

	// CreatedAt - время создания позиции.
	CreatedAt time.Time
}

// NewPosition создаёт пустую позицию под текущий уровень пользователя.
func NewPosition(userID shared.UserID, tier level.Tier, now time.Time) *Position {
	return &Position{
		UserID:         userID,
		Principal:      0,
		InterestEarned: 0,
		Tier:           tier,
		APYBps:         APYForTier(tier),
		LastUpdated:    now,
		CreatedAt:      now,
	}
}

// Balance возвращает полный баланс позиции.
func (p *Position) Balance() shared.Amount {
	return p.Principal.Add(p.InterestEarned)
}

// Accrue начисляет процент за время, прошедшее с последнего касания,
// по записанной ставке. Возвращает начисленную сумму.
//
// Формула: principal × apy_bps × elapsed / (10000 × секунд_в_году),
// целочисленное деление с усечением к нулю - начисление консервативно,
// накопленная потеря округления принята как компромисс.
func (p *Position) Accrue(now time.Time) shared.Amount {
	elapsed := now.Unix() - p.LastUpdated.Unix()
	if elapsed <= 0 || p.Principal == 0 {
		return 0
	}

	// Промежуточное произведение не помещается в int64 - считаем в big.Int.
	num := new(big.Int).SetInt64(p.Principal.Int64())
	num.Mul(num, big.NewInt(p.APYBps.Int64()))
	num.Mul(num, big.NewInt(elapsed))

	den := new(big.Int).SetInt64(shared.BpsDenominator)
	den.Mul(den, big.NewInt(SecondsPerYear))

	interest := shared.Amount(num.Quo(num, den).Int64())

	p.InterestEarned = p.InterestEarned.Add(interest)
	p.LastUpdated = now
	return interest
}

// ApplyTier переводит позицию на новый уровень. Новая ставка действует
// только вперёд, с момента текущего начисления, не ретроактивно.
// Возвращает true, если уровень изменился.
func (p *Position) ApplyTier(t level.Tier) bool {
	if t == p.Tier {
		return false
	}

	p.Tier = t
	p.APYBps = APYForTier(t)
	return true
}

// Deposit добавляет средства к основной сумме.
// Начисление процентов под старую ставку выполняется до вызова.
func (p *Position) Deposit(amount shared.Amount) error {
	if !amount.IsPositive() {
		return shared.ErrInvalidAmount
	}

	p.Principal = p.Principal.Add(amount)
	return nil
}

// Withdraw снимает средства: сперва из основной суммы, остаток - из
// процентов. Оба поля остаются неотрицательными по построению.
func (p *Position) Withdraw(amount shared.Amount) error {
	if !amount.IsPositive() {
		return shared.ErrInvalidAmount
	}
	if amount > p.Balance() {
		return shared.ErrInsufficientBalance
	}

	if amount <= p.Principal {
		p.Principal = p.Principal.Sub(amount)
		return nil
	}

	remainder := amount.Sub(p.Principal)
	p.Principal = 0
	p.InterestEarned = p.InterestEarned.Sub(remainder)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ОСВЕЖЕНИЕ ПОЗИЦИИ
// ══════════════════════════════════════════════════════════════════════════════

// Refresh выполняет полный цикл ленивого пересчёта: начисляет процент
// под записанную (старую) ставку, затем запрашивает у классификатора
// текущий уровень и применяет его вперёд.
//
// Refresh не персистит позицию: мутирующие операции сохраняют её в
// своей транзакции, читающие используют результат как проекцию.
//
// Если время не шло или вклад пуст, позиция возвращается без изменений -
// в том числе без запроса уровня.
func Refresh(ctx context.Context, p *Position, classifier level.Classifier, now time.Time) (shared.Amount, error) {
	if now.Unix()-p.LastUpdated.Unix() <= 0 || p.Principal == 0 {
		return 0, nil
	}

	accrued := p.Accrue(now)

	tier, err := classifier.GetLevelValue(ctx, p.UserID)
	if err != nil {
		return accrued, shared.WrapError("savings", "Refresh", shared.ErrExternalCall,
			"tier lookup failed", err)
	}
	p.ApplyTier(tier)

	return accrued, nil
}
