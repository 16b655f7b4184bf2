package level

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kopilka-hub/kopilka/internal/domain/shared"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		goals   int
		courses int
		want    Tier
	}{
		{"zero counters", 0, 0, TierBronze},
		{"just below silver", 2, 2, TierBronze},
		{"silver by goals", 3, 0, TierSilver},
		{"silver by courses", 0, 3, TierSilver},
		{"gold by goals", 6, 0, TierGold},
		{"gold by courses", 0, 6, TierGold},
		{"gold despite high single counter", 9, 10, TierGold},
		{"gold the other way around", 10, 9, TierGold},
		{"platinum needs both", 10, 10, TierPlatinum},
		{"platinum far above", 25, 13, TierPlatinum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.goals, tt.courses))
		})
	}
}

func TestTierFromInt(t *testing.T) {
	assert.Equal(t, TierBronze, TierFromInt(1))
	assert.Equal(t, TierSilver, TierFromInt(2))
	assert.Equal(t, TierGold, TierFromInt(3))
	assert.Equal(t, TierPlatinum, TierFromInt(4))

	// Нераспознанные значения откатываются к Bronze.
	assert.Equal(t, TierBronze, TierFromInt(0))
	assert.Equal(t, TierBronze, TierFromInt(-1))
	assert.Equal(t, TierBronze, TierFromInt(99))
}

func TestTier_String(t *testing.T) {
	assert.Equal(t, "bronze", TierBronze.String())
	assert.Equal(t, "silver", TierSilver.String())
	assert.Equal(t, "gold", TierGold.String())
	assert.Equal(t, "platinum", TierPlatinum.String())
	assert.Equal(t, "unknown", Tier(0).String())
}

func TestNewUserLevel(t *testing.T) {
	userID := shared.UserID("11111111-2222-3333-4444-555555555555")

	lvl := NewUserLevel(userID, 6, 1)
	assert.Equal(t, userID, lvl.UserID)
	assert.Equal(t, TierGold, lvl.Tier)
	assert.Equal(t, 6, lvl.GoalsAchieved)
	assert.Equal(t, 1, lvl.CoursesCompleted)
	assert.False(t, lvl.LastUpdated.IsZero())
}
