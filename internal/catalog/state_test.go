package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/manafoundation/wishlist-backend/pkg/db/models"
	"github.com/manafoundation/wishlist-backend/pkg/enums"
)

func TestPoolGoalDefaultsToUnitPriceTimesQuantity(t *testing.T) {
	item := &models.FundableItem{
		UnitPriceCents: 4500,
		QuantityNeeded: 10,
	}
	assert.EqualValues(t, 45000, PoolGoal(item))

	item.PoolGoalCents = 30000
	assert.EqualValues(t, 30000, PoolGoal(item))
}

func TestRemainingUnitsClampsAtZero(t *testing.T) {
	item := &models.FundableItem{QuantityNeeded: 5, QuantityFunded: 3}
	assert.Equal(t, 2, RemainingUnits(item))

	item.QuantityFunded = 7
	assert.Equal(t, 0, RemainingUnits(item))
}

func TestIsFullyFundedPerMode(t *testing.T) {
	cases := []struct {
		name string
		item models.FundableItem
		want bool
	}{
		{
			name: "unit mode short",
			item: models.FundableItem{FundingMode: enums.FundingModeUnit, QuantityNeeded: 10, QuantityFunded: 9},
			want: false,
		},
		{
			name: "unit mode met",
			item: models.FundableItem{FundingMode: enums.FundingModeUnit, QuantityNeeded: 10, QuantityFunded: 10},
			want: true,
		},
		{
			name: "pool mode met",
			item: models.FundableItem{FundingMode: enums.FundingModePool, PoolGoalCents: 500000, PoolFundedCents: 505000},
			want: true,
		},
		{
			name: "pool mode short",
			item: models.FundableItem{FundingMode: enums.FundingModePool, PoolGoalCents: 500000, PoolFundedCents: 480000},
			want: false,
		},
		{
			name: "both mode met via pool",
			item: models.FundableItem{FundingMode: enums.FundingModeBoth, QuantityNeeded: 10, QuantityFunded: 2, PoolGoalCents: 1000, PoolFundedCents: 1000},
			want: true,
		},
		{
			name: "both mode met via units",
			item: models.FundableItem{FundingMode: enums.FundingModeBoth, QuantityNeeded: 3, QuantityFunded: 3, PoolGoalCents: 1000, PoolFundedCents: 0},
			want: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsFullyFunded(&tc.item))
		})
	}
}

func TestDisplayQuantityFundedProjectsPoolCompletion(t *testing.T) {
	item := &models.FundableItem{
		FundingMode:     enums.FundingModePool,
		QuantityNeeded:  10,
		QuantityFunded:  2,
		PoolGoalCents:   1000,
		PoolFundedCents: 1200,
	}
	// Goal met: display as all units funded, stored counter untouched.
	assert.Equal(t, 10, DisplayQuantityFunded(item))
	assert.Equal(t, 2, item.QuantityFunded)

	item.PoolFundedCents = 500
	assert.Equal(t, 2, DisplayQuantityFunded(item))
}

func TestPercentFunded(t *testing.T) {
	unit := &models.FundableItem{FundingMode: enums.FundingModeUnit, QuantityNeeded: 10, QuantityFunded: 5}
	assert.Equal(t, 50, PercentFunded(unit))

	pool := &models.FundableItem{FundingMode: enums.FundingModePool, PoolGoalCents: 1000, PoolFundedCents: 1500}
	assert.Equal(t, 100, PercentFunded(pool))

	both := &models.FundableItem{FundingMode: enums.FundingModeBoth, QuantityNeeded: 10, QuantityFunded: 1, PoolGoalCents: 1000, PoolFundedCents: 800}
	assert.Equal(t, 80, PercentFunded(both))
}

func TestPoolMinimumFallsBackToPlatformDefault(t *testing.T) {
	item := &models.FundableItem{}
	assert.EqualValues(t, 2500, PoolMinimum(item, 2500))

	item.PoolMinimumCents = 5000
	assert.EqualValues(t, 5000, PoolMinimum(item, 2500))
}
