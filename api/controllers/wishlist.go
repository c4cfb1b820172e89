package controllers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/manafoundation/wishlist-backend/api/responses"
	"github.com/manafoundation/wishlist-backend/internal/catalog"
	"github.com/manafoundation/wishlist-backend/pkg/db/models"
	"github.com/manafoundation/wishlist-backend/pkg/enums"
	pkgerrors "github.com/manafoundation/wishlist-backend/pkg/errors"
	"github.com/manafoundation/wishlist-backend/pkg/logger"
	"github.com/manafoundation/wishlist-backend/pkg/pagination"
)

type wishlistLister interface {
	ListPublicPage(ctx context.Context, params pagination.Params) ([]models.FundableItem, string, error)
}

// PublicWishlist lists fundable items with funding progress derived from the
// canonical counters. Pages are cursor based; the response carries the cursor
// for the next page until the listing is exhausted.
func PublicWishlist(repo wishlistLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}

		params := pagination.Params{Cursor: r.URL.Query().Get("cursor")}
		if _, err := pagination.ParseCursor(params.Cursor); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor"))
			return
		}
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "limit must be a positive integer"))
				return
			}
			params.Limit = parsed
		}

		items, nextCursor, err := repo.ListPublicPage(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entries := make([]wishlistEntry, 0, len(items))
		for i := range items {
			entries = append(entries, newWishlistEntry(&items[i]))
		}
		responses.WriteSuccess(w, wishlistResponse{Items: entries, NextCursor: nextCursor})
	}
}

type wishlistResponse struct {
	Items      []wishlistEntry `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type wishlistEntry struct {
	ID                uuid.UUID               `json:"id"`
	Title             string                  `json:"title"`
	Program           string                  `json:"program"`
	Category          string                  `json:"category,omitempty"`
	FundingMode       enums.FundingMode       `json:"funding_mode"`
	UnitPriceCents    int64                   `json:"unit_price_cents"`
	QuantityNeeded    int                     `json:"quantity_needed"`
	QuantityFunded    int                     `json:"quantity_funded"`
	RemainingUnits    int                     `json:"remaining_units"`
	PoolGoalCents     int64                   `json:"pool_goal_cents,omitempty"`
	PoolFundedCents   int64                   `json:"pool_funded_cents,omitempty"`
	ContributorCount  int                     `json:"contributor_count,omitempty"`
	PercentFunded     int                     `json:"percent_funded"`
	FullyFunded       bool                    `json:"fully_funded"`
	FulfillmentStatus enums.FulfillmentStatus `json:"fulfillment_status"`
	VendorName        string                  `json:"vendor_name,omitempty"`
	CreatedAt         time.Time               `json:"created_at"`
}

func newWishlistEntry(item *models.FundableItem) wishlistEntry {
	return wishlistEntry{
		ID:                item.ID,
		Title:             item.Title,
		Program:           item.Program,
		Category:          item.Category,
		FundingMode:       item.FundingMode,
		UnitPriceCents:    item.UnitPriceCents,
		QuantityNeeded:    item.QuantityNeeded,
		QuantityFunded:    catalog.DisplayQuantityFunded(item),
		RemainingUnits:    catalog.RemainingUnits(item),
		PoolGoalCents:     catalog.PoolGoal(item),
		PoolFundedCents:   item.PoolFundedCents,
		ContributorCount:  item.PoolContributorCount,
		PercentFunded:     catalog.PercentFunded(item),
		FullyFunded:       catalog.IsFullyFunded(item),
		FulfillmentStatus: item.FulfillmentStatus,
		VendorName:        item.VendorName,
		CreatedAt:         item.CreatedAt,
	}
}
