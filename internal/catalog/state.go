package catalog

import (
	"github.com/manafoundation/wishlist-backend/pkg/db/models"
	"github.com/manafoundation/wishlist-backend/pkg/enums"
	"github.com/manafoundation/wishlist-backend/pkg/types"
)

// Funding state is derived from the canonical counters on the item row.
// fulfillment_status is the only persisted flag; everything else here is
// computed on read so the same answer comes out everywhere.

// PoolGoal returns the item's effective pool goal. An unset goal defaults to
// unit price times quantity needed.
func PoolGoal(item *models.FundableItem) int64 {
	if item == nil {
		return 0
	}
	if item.PoolGoalCents > 0 {
		return item.PoolGoalCents
	}
	return item.UnitPriceCents * int64(item.QuantityNeeded)
}

// RemainingUnits returns how many units are still purchasable.
func RemainingUnits(item *models.FundableItem) int {
	if item == nil {
		return 0
	}
	remaining := item.QuantityNeeded - item.QuantityFunded
	if remaining < 0 {
		return 0
	}
	return remaining
}

// UnitGoalMet reports whether the unit counter has reached quantity needed.
func UnitGoalMet(item *models.FundableItem) bool {
	if item == nil {
		return false
	}
	return item.QuantityFunded >= item.QuantityNeeded
}

// PoolGoalMet reports whether the pool counter has reached the effective goal.
func PoolGoalMet(item *models.FundableItem) bool {
	if item == nil {
		return false
	}
	goal := PoolGoal(item)
	return goal > 0 && item.PoolFundedCents >= goal
}

// IsFullyFunded computes funded state per funding mode.
func IsFullyFunded(item *models.FundableItem) bool {
	if item == nil {
		return false
	}
	switch item.FundingMode {
	case enums.FundingModeUnit:
		return UnitGoalMet(item)
	case enums.FundingModePool:
		return PoolGoalMet(item)
	case enums.FundingModeBoth:
		return UnitGoalMet(item) || PoolGoalMet(item)
	default:
		return false
	}
}

// DisplayQuantityFunded projects pool progress onto the unit counter for
// display. A completed pool shows as all units funded without mutating the
// stored counter.
func DisplayQuantityFunded(item *models.FundableItem) int {
	if item == nil {
		return 0
	}
	if item.FundingMode != enums.FundingModeUnit && PoolGoalMet(item) {
		return item.QuantityNeeded
	}
	return item.QuantityFunded
}

// PercentFunded returns display progress 0-100 for the item's dominant mode.
func PercentFunded(item *models.FundableItem) int {
	if item == nil {
		return 0
	}
	switch item.FundingMode {
	case enums.FundingModePool:
		return types.PercentFunded(item.PoolFundedCents, PoolGoal(item))
	case enums.FundingModeBoth:
		unitPct := types.PercentFunded(int64(item.QuantityFunded), int64(item.QuantityNeeded))
		poolPct := types.PercentFunded(item.PoolFundedCents, PoolGoal(item))
		if poolPct > unitPct {
			return poolPct
		}
		return unitPct
	default:
		return types.PercentFunded(int64(item.QuantityFunded), int64(item.QuantityNeeded))
	}
}

// PoolMinimum returns the per-gift floor for pool contributions, falling back
// to the platform default when the item has none configured.
func PoolMinimum(item *models.FundableItem, platformDefault int64) int64 {
	if item != nil && item.PoolMinimumCents > 0 {
		return item.PoolMinimumCents
	}
	return platformDefault
}
