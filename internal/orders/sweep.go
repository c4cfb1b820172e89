package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/manafoundation/wishlist-backend/internal/catalog"
	"github.com/manafoundation/wishlist-backend/pkg/config"
	"github.com/manafoundation/wishlist-backend/pkg/db/models"
	"github.com/manafoundation/wishlist-backend/pkg/enums"
	"github.com/manafoundation/wishlist-backend/pkg/logger"
	"github.com/manafoundation/wishlist-backend/pkg/outbox"
	"github.com/manafoundation/wishlist-backend/pkg/outbox/payloads"
	"github.com/manafoundation/wishlist-backend/pkg/types"
)

// errLostRace marks an item whose pending flag was claimed by a concurrent
// sweep between listing and writing.
var errLostRace = errors.New("item already claimed by another sweep")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type itemStore interface {
	ListPendingFulfillment(ctx context.Context) ([]models.FundableItem, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.FundableItem, error)
	CompareAndSetFulfillment(tx *gorm.DB, id uuid.UUID, from, to enums.FulfillmentStatus, orderID *uuid.UUID) (bool, error)
}

type vendorStore interface {
	FindByVendorName(ctx context.Context, vendorName string) (*models.VendorConfig, error)
}

type orderStore interface {
	InsertTx(tx *gorm.DB, order *models.FulfillmentOrder) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ItemResult is the per-item outcome of one sweep run.
type ItemResult struct {
	ItemID  uuid.UUID  `json:"item_id"`
	OrderID *uuid.UUID `json:"order_id,omitempty"`
	Outcome string     `json:"outcome"`
	Error   string     `json:"error,omitempty"`
}

// SweepSummary reports one sweep run. Per-item failures are isolated; the
// sweep itself only errors when the initial listing fails.
type SweepSummary struct {
	Processed int          `json:"processed"`
	Skipped   int          `json:"skipped"`
	Errors    int          `json:"errors"`
	Results   []ItemResult `json:"results"`
}

// Sweeper turns fully funded items into fulfillment orders, at most one order
// per item.
type Sweeper interface {
	RunSweep(ctx context.Context) (*SweepSummary, error)
}

type sweeper struct {
	tx      txRunner
	items   itemStore
	vendors vendorStore
	orders  orderStore
	outbox  outboxEmitter
	org     config.OrgConfig
	logg    *logger.Logger
}

// NewSweeper wires the order generation sweep.
func NewSweeper(
	tx txRunner,
	items itemStore,
	vendors vendorStore,
	orderRepo orderStore,
	emitter outboxEmitter,
	org config.OrgConfig,
	logg *logger.Logger,
) (Sweeper, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if items == nil {
		return nil, fmt.Errorf("item store required")
	}
	if vendors == nil {
		return nil, fmt.Errorf("vendor store required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("order store required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &sweeper{
		tx:      tx,
		items:   items,
		vendors: vendors,
		orders:  orderRepo,
		outbox:  emitter,
		org:     org,
		logg:    logg,
	}, nil
}

func (s *sweeper) RunSweep(ctx context.Context) (*SweepSummary, error) {
	flagged, err := s.items.ListPendingFulfillment(ctx)
	if err != nil {
		return nil, err
	}

	summary := &SweepSummary{Results: make([]ItemResult, 0, len(flagged))}
	var itemErrs error

	for _, item := range flagged {
		result := s.processItem(ctx, item.ID)
		summary.Results = append(summary.Results, result)
		switch {
		case result.Error != "":
			summary.Errors++
			itemErrs = multierr.Append(itemErrs, fmt.Errorf("item %s: %s", item.ID, result.Error))
		case result.OrderID != nil:
			summary.Processed++
		default:
			summary.Skipped++
		}
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"flagged":   len(flagged),
		"processed": summary.Processed,
		"skipped":   summary.Skipped,
		"errors":    summary.Errors,
	})
	if itemErrs != nil {
		s.logg.Error(logCtx, "order sweep finished with item failures", itemErrs)
	} else {
		s.logg.Info(logCtx, "order sweep finished")
	}
	return summary, nil
}

func (s *sweeper) processItem(ctx context.Context, itemID uuid.UUID) ItemResult {
	result := ItemResult{ItemID: itemID}
	ctx = s.logg.WithItemID(ctx, itemID.String())

	// Re-read and re-derive: the pending flag is eventually consumed, so the
	// counters are re-checked before money is committed to an order.
	item, err := s.items.FindByID(ctx, itemID)
	if err != nil {
		result.Outcome = "error"
		result.Error = err.Error()
		return result
	}
	if item == nil || item.FulfillmentStatus != enums.FulfillmentStatusPending {
		result.Outcome = "skipped"
		return result
	}
	if !catalog.IsFullyFunded(item) {
		// Left flagged for operator attention rather than unflagged silently.
		s.logg.Warn(ctx, "pending item is not fully funded, leaving flagged")
		result.Outcome = "skipped"
		return result
	}

	address, err := s.resolveShippingAddress(ctx, item)
	if err != nil {
		result.Outcome = "error"
		result.Error = err.Error()
		return result
	}

	order := s.buildOrder(item, address)
	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.orders.InsertTx(tx, order); err != nil {
			return err
		}
		won, err := s.items.CompareAndSetFulfillment(tx, item.ID,
			enums.FulfillmentStatusPending, enums.FulfillmentStatusProcessing, &order.ID)
		if err != nil {
			return err
		}
		if !won {
			return errLostRace
		}
		return s.emitOrderCreated(ctx, tx, order)
	})
	if txErr != nil {
		if errors.Is(txErr, errLostRace) {
			result.Outcome = "skipped"
			return result
		}
		result.Outcome = "error"
		result.Error = txErr.Error()
		return result
	}

	result.OrderID = &order.ID
	result.Outcome = "ordered"
	s.logg.Info(s.logg.WithField(ctx, "order_id", order.ID.String()), "fulfillment order created")
	return result
}

func (s *sweeper) resolveShippingAddress(ctx context.Context, item *models.FundableItem) (types.Address, error) {
	if item.VendorName != "" {
		vendor, err := s.vendors.FindByVendorName(ctx, item.VendorName)
		if err != nil {
			return types.Address{}, err
		}
		if vendor != nil && vendor.DefaultShippingAddress.Validate() == nil {
			return vendor.DefaultShippingAddress, nil
		}
	}
	return s.orgAddress(), nil
}

func (s *sweeper) orgAddress() types.Address {
	return types.Address{
		Name:       s.org.ShipName,
		Line1:      s.org.ShipLine1,
		City:       s.org.ShipCity,
		State:      s.org.ShipState,
		PostalCode: s.org.ShipPostalCode,
		Country:    s.org.ShipCountry,
	}
}

func (s *sweeper) buildOrder(item *models.FundableItem, address types.Address) *models.FulfillmentOrder {
	total, source := fundedTotal(item)
	quantity := catalog.DisplayQuantityFunded(item)

	return &models.FulfillmentOrder{
		ID:     uuid.New(),
		ItemID: item.ID,
		Status: enums.OrderStatusProcessing,
		Origin: enums.OrderOriginAuto,
		Items: []models.OrderLineItem{{
			ItemID:         item.ID,
			Title:          item.Title,
			Quantity:       quantity,
			UnitPriceCents: item.UnitPriceCents,
			TotalCents:     total,
		}},
		VendorName:      item.VendorName,
		VendorURL:       item.VendorURL,
		ShippingAddress: address,
		TotalCents:      total,
		FundingSource:   source,
	}
}

// fundedTotal derives the order total and funding source from the item's
// counters by mode. Mixed-mode items are treated as pool funded only when the
// pool goal itself was met.
func fundedTotal(item *models.FundableItem) (int64, enums.FundingSource) {
	switch item.FundingMode {
	case enums.FundingModePool:
		return item.PoolFundedCents, enums.FundingSourcePool
	case enums.FundingModeBoth:
		if catalog.PoolGoalMet(item) {
			return item.PoolFundedCents, enums.FundingSourcePool
		}
		return item.UnitPriceCents * int64(item.QuantityFunded), enums.FundingSourceUnitDonations
	default:
		return item.UnitPriceCents * int64(item.QuantityFunded), enums.FundingSourceUnitDonations
	}
}

func (s *sweeper) emitOrderCreated(ctx context.Context, tx *gorm.DB, order *models.FulfillmentOrder) error {
	payload := payloads.OrderCreatedEvent{
		OrderID:         order.ID,
		ItemIDs:         []uuid.UUID{order.ItemID},
		VendorName:      order.VendorName,
		VendorURL:       order.VendorURL,
		TotalCents:      order.TotalCents,
		FundingSource:   order.FundingSource,
		ShippingAddress: order.ShippingAddress,
		Origin:          order.Origin,
		CreatedAt:       time.Now().UTC(),
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateFulfillmentOrder,
		AggregateID:   order.ID,
		Source:        "orders",
		Data:          payload,
	})
}
