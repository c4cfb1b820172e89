package checkout

// Session metadata keys. The payment provider echoes these back on the
// captured event; the webhook boundary reconstructs the donation intent from
// them, so both sides must agree on the names.
const (
	MetaKind        = "kind"
	MetaItemID      = "itemId"
	MetaQuantity    = "quantity"
	MetaAmountCents = "amountMinorUnits"
	MetaItemTitle   = "itemTitle"
	MetaDonorEmail  = "donorEmail"
	MetaDonorName   = "donorName"
	MetaCampaignID  = "campaignId"
)
