package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	checkoutsvc "github.com/manafoundation/wishlist-backend/internal/checkout"
	pkgerrors "github.com/manafoundation/wishlist-backend/pkg/errors"
)

type fakeCheckoutService struct {
	lastRequest checkoutsvc.SessionRequest
	handle      *checkoutsvc.SessionHandle
	err         error
}

func (f *fakeCheckoutService) CreateSession(ctx context.Context, req checkoutsvc.SessionRequest) (*checkoutsvc.SessionHandle, error) {
	f.lastRequest = req
	if f.err != nil {
		return nil, f.err
	}
	return f.handle, nil
}

func TestCreateCheckoutSession(t *testing.T) {
	svc := &fakeCheckoutService{handle: &checkoutsvc.SessionHandle{
		SessionID:   "cs_test_123",
		RedirectURL: "https://checkout.stripe.com/pay/cs_test_123",
	}}
	handler := CreateCheckoutSession(svc, nil)

	itemID := uuid.New()
	body := `{
		"kind": "unit_purchase",
		"item_id": "` + itemID.String() + `",
		"quantity": 2,
		"donor_email": "dana@example.org",
		"donor_name": "Dana",
		"success_url": "https://donate.example.org/thanks",
		"cancel_url": "https://donate.example.org/wishlist"
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/session", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, svc.lastRequest.ItemID)
	assert.Equal(t, itemID, *svc.lastRequest.ItemID)
	assert.Equal(t, int64(2), svc.lastRequest.Quantity)

	var envelope struct {
		Data checkoutsvc.SessionHandle `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "cs_test_123", envelope.Data.SessionID)
	assert.NotEmpty(t, envelope.Data.RedirectURL)
}

func TestCreateCheckoutSessionRejectsBadBody(t *testing.T) {
	svc := &fakeCheckoutService{}
	handler := CreateCheckoutSession(svc, nil)

	body := `{"kind": "unit_purchase", "donor_email": "not-an-email", "success_url": "x", "cancel_url": "y"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/session", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.lastRequest.DonorEmail, "service must not be reached")
}

func TestCreateCheckoutSessionMapsServiceErrors(t *testing.T) {
	svc := &fakeCheckoutService{err: pkgerrors.New(pkgerrors.CodeInsufficientAvailability, "only 1 unit remains")}
	handler := CreateCheckoutSession(svc, nil)

	body := `{
		"kind": "unit_purchase",
		"item_id": "` + uuid.NewString() + `",
		"quantity": 5,
		"donor_email": "dana@example.org",
		"success_url": "https://donate.example.org/thanks",
		"cancel_url": "https://donate.example.org/wishlist"
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/session", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "only 1 unit remains")
}
