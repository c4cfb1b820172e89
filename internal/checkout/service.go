package checkout

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/manafoundation/wishlist-backend/internal/catalog"
	"github.com/manafoundation/wishlist-backend/pkg/config"
	"github.com/manafoundation/wishlist-backend/pkg/db/models"
	"github.com/manafoundation/wishlist-backend/pkg/enums"
	pkgerrors "github.com/manafoundation/wishlist-backend/pkg/errors"
	"github.com/manafoundation/wishlist-backend/pkg/logger"
)

type itemLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.FundableItem, error)
	UpdateProviderRefs(ctx context.Context, id uuid.UUID, productID, priceID string) error
}

// Provider is the external checkout-session factory. Implementations must
// bound their own call timeouts and surface timeouts as ProviderUnavailable.
type Provider interface {
	EnsureItemPrice(ctx context.Context, item *models.FundableItem) (productID, priceID string, err error)
	CreateSession(ctx context.Context, in ProviderSessionInput) (*SessionHandle, error)
}

// ProviderSessionInput describes one checkout session to create. Exactly one
// of PriceID or DynamicName/DynamicAmountCents is set.
type ProviderSessionInput struct {
	PriceID            string
	Quantity           int64
	DynamicName        string
	DynamicAmountCents int64
	CustomerEmail      string
	SuccessURL         string
	CancelURL          string
	Metadata           map[string]string
}

// SessionRequest is the donation intent from the public catalog.
type SessionRequest struct {
	Kind        string     `json:"kind" validate:"required"`
	ItemID      *uuid.UUID `json:"item_id" validate:"omitempty"`
	Quantity    int64      `json:"quantity" validate:"omitempty,min=1"`
	AmountCents int64      `json:"amount_minor_units" validate:"omitempty,min=1"`
	DonorEmail  string     `json:"donor_email" validate:"required,email"`
	DonorName   string     `json:"donor_name" validate:"omitempty,max=120"`
	SuccessURL  string     `json:"success_url" validate:"required,url"`
	CancelURL   string     `json:"cancel_url" validate:"required,url"`
	CampaignID  *uuid.UUID `json:"campaign_id" validate:"omitempty"`
}

// SessionHandle is the redirect pair returned to the front end.
type SessionHandle struct {
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}

// Service validates donation intents and creates provider checkout sessions.
// No local state is mutated here beyond caching provider product/price ids;
// idempotency is enforced at capture time, so callers may retry freely.
type Service interface {
	CreateSession(ctx context.Context, req SessionRequest) (*SessionHandle, error)
}

type service struct {
	items    itemLoader
	provider Provider
	funding  config.FundingConfig
	logg     *logger.Logger
}

// NewService builds the checkout session builder.
func NewService(items itemLoader, provider Provider, funding config.FundingConfig, logg *logger.Logger) (Service, error) {
	if items == nil {
		return nil, fmt.Errorf("item loader required")
	}
	if provider == nil {
		return nil, fmt.Errorf("checkout provider required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{items: items, provider: provider, funding: funding, logg: logg}, nil
}

func (s *service) CreateSession(ctx context.Context, req SessionRequest) (*SessionHandle, error) {
	kind, err := enums.ParseDonationKind(req.Kind)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown donation kind")
	}
	if req.DonorEmail == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "donor email required")
	}
	if req.SuccessURL == "" || req.CancelURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "success and cancel urls required")
	}

	switch kind {
	case enums.DonationKindUnitPurchase:
		return s.createUnitSession(ctx, req)
	case enums.DonationKindPoolContribution:
		return s.createPoolSession(ctx, req)
	case enums.DonationKindGeneralGift:
		return s.createGeneralSession(ctx, req)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown donation kind")
	}
}

func (s *service) createUnitSession(ctx context.Context, req SessionRequest) (*SessionHandle, error) {
	if req.ItemID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required for unit purchase")
	}
	if req.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	item, err := s.items.FindByID(ctx, *req.ItemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
	}
	if !item.FundingMode.AllowsUnit() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item does not accept unit purchases")
	}

	remaining := catalog.RemainingUnits(item)
	if req.Quantity > int64(remaining) {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientAvailability,
			fmt.Sprintf("only %d units remain", remaining))
	}

	priceID, err := s.resolvePrice(ctx, item)
	if err != nil {
		return nil, err
	}

	meta := s.baseMetadata(req, enums.DonationKindUnitPurchase)
	meta[MetaItemID] = item.ID.String()
	meta[MetaItemTitle] = item.Title
	meta[MetaQuantity] = strconv.FormatInt(req.Quantity, 10)

	return s.provider.CreateSession(ctx, ProviderSessionInput{
		PriceID:       priceID,
		Quantity:      req.Quantity,
		CustomerEmail: req.DonorEmail,
		SuccessURL:    req.SuccessURL,
		CancelURL:     req.CancelURL,
		Metadata:      meta,
	})
}

func (s *service) createPoolSession(ctx context.Context, req SessionRequest) (*SessionHandle, error) {
	if req.ItemID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required for pool contribution")
	}
	if req.AmountCents < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contribution amount required")
	}

	item, err := s.items.FindByID(ctx, *req.ItemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
	}
	if !item.FundingMode.AllowsPool() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item does not accept pool contributions")
	}

	minimum := catalog.PoolMinimum(item, s.funding.PoolMinimumCents)
	if req.AmountCents < minimum {
		return nil, pkgerrors.New(pkgerrors.CodeBelowMinimum,
			fmt.Sprintf("minimum contribution is %d cents", minimum))
	}
	if catalog.PoolGoalMet(item) {
		return nil, pkgerrors.New(pkgerrors.CodeAlreadyFunded, "item pool is already fully funded")
	}

	meta := s.baseMetadata(req, enums.DonationKindPoolContribution)
	meta[MetaItemID] = item.ID.String()
	meta[MetaItemTitle] = item.Title
	meta[MetaAmountCents] = strconv.FormatInt(req.AmountCents, 10)

	return s.provider.CreateSession(ctx, ProviderSessionInput{
		DynamicName:        fmt.Sprintf("Contribution toward %s", item.Title),
		DynamicAmountCents: req.AmountCents,
		CustomerEmail:      req.DonorEmail,
		SuccessURL:         req.SuccessURL,
		CancelURL:          req.CancelURL,
		Metadata:           meta,
	})
}

func (s *service) createGeneralSession(ctx context.Context, req SessionRequest) (*SessionHandle, error) {
	if req.AmountCents < s.funding.GeneralMinimumCents {
		return nil, pkgerrors.New(pkgerrors.CodeBelowMinimum,
			fmt.Sprintf("minimum gift is %d cents", s.funding.GeneralMinimumCents))
	}

	meta := s.baseMetadata(req, enums.DonationKindGeneralGift)
	meta[MetaAmountCents] = strconv.FormatInt(req.AmountCents, 10)
	if req.CampaignID != nil {
		meta[MetaCampaignID] = req.CampaignID.String()
	}

	return s.provider.CreateSession(ctx, ProviderSessionInput{
		DynamicName:        "General gift",
		DynamicAmountCents: req.AmountCents,
		CustomerEmail:      req.DonorEmail,
		SuccessURL:         req.SuccessURL,
		CancelURL:          req.CancelURL,
		Metadata:           meta,
	})
}

// resolvePrice returns the cached provider price id, creating product and
// price on first use. The cache write is best effort: a failed write means a
// duplicate product on some later request, not a failed session.
func (s *service) resolvePrice(ctx context.Context, item *models.FundableItem) (string, error) {
	if item.StripePriceID != nil && *item.StripePriceID != "" {
		return *item.StripePriceID, nil
	}

	productID, priceID, err := s.provider.EnsureItemPrice(ctx, item)
	if err != nil {
		return "", err
	}
	if cacheErr := s.items.UpdateProviderRefs(ctx, item.ID, productID, priceID); cacheErr != nil {
		s.logg.Error(s.logg.WithField(ctx, "item_id", item.ID.String()), "failed to cache provider refs", cacheErr)
	}
	return priceID, nil
}

func (s *service) baseMetadata(req SessionRequest, kind enums.DonationKind) map[string]string {
	meta := map[string]string{
		MetaKind:       string(kind),
		MetaDonorEmail: req.DonorEmail,
	}
	if req.DonorName != "" {
		meta[MetaDonorName] = req.DonorName
	}
	return meta
}
