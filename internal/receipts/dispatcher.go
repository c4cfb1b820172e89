package receipts

import (
	"context"
	"fmt"

	"github.com/manafoundation/wishlist-backend/pkg/logger"
	"github.com/manafoundation/wishlist-backend/pkg/outbox/payloads"
	"github.com/manafoundation/wishlist-backend/pkg/types"
)

// Dispatcher delivers a thank-you receipt to the donor. Implementations are
// external (email provider, CRM webhook); delivery is best effort and must
// never influence funding state.
type Dispatcher interface {
	Dispatch(ctx context.Context, receipt payloads.ReceiptPendingEvent) error
}

// LogDispatcher writes the receipt to the structured log instead of sending
// email. Used in development and as the default until a provider is wired.
type LogDispatcher struct {
	logg *logger.Logger
}

func NewLogDispatcher(logg *logger.Logger) (*LogDispatcher, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &LogDispatcher{logg: logg}, nil
}

func (d *LogDispatcher) Dispatch(ctx context.Context, receipt payloads.ReceiptPendingEvent) error {
	logCtx := d.logg.WithFields(ctx, map[string]any{
		"donation_id":  receipt.DonationID.String(),
		"donor_email":  receipt.DonorEmail,
		"kind":         string(receipt.Kind),
		"amount_cents": receipt.AmountCents,
		"amount":       types.FormatUSD(receipt.AmountCents),
	})
	d.logg.Info(logCtx, "receipt dispatched (log only)")
	return nil
}
