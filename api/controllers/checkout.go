package controllers

import (
	"net/http"

	"github.com/manafoundation/wishlist-backend/api/responses"
	"github.com/manafoundation/wishlist-backend/api/validators"
	checkoutsvc "github.com/manafoundation/wishlist-backend/internal/checkout"
	pkgerrors "github.com/manafoundation/wishlist-backend/pkg/errors"
	"github.com/manafoundation/wishlist-backend/pkg/logger"
)

// CreateCheckoutSession turns a donation intent into a provider-hosted
// checkout session and returns the redirect pair.
func CreateCheckoutSession(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutsvc.SessionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		handle, err := svc.CreateSession(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, handle)
	}
}
