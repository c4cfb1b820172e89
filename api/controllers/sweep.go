package controllers

import (
	"context"
	"net/http"

	"github.com/manafoundation/wishlist-backend/api/responses"
	"github.com/manafoundation/wishlist-backend/internal/orders"
	pkgerrors "github.com/manafoundation/wishlist-backend/pkg/errors"
	"github.com/manafoundation/wishlist-backend/pkg/logger"
)

type sweepRunner interface {
	RunSweep(ctx context.Context) (*orders.SweepSummary, error)
}

// TriggerSweep runs the order generation sweep on demand. The scheduled run
// remains the primary path; this endpoint exists for operators.
func TriggerSweep(sweeper sweepRunner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sweeper == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sweeper unavailable"))
			return
		}

		summary, err := sweeper.RunSweep(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}
