package enums

// FundingSource tags which counter paid for a fulfillment order.
type FundingSource string

const (
	FundingSourcePool          FundingSource = "pool"
	FundingSourceUnitDonations FundingSource = "unit_donations"
)

// IsValid reports whether the value is a known FundingSource.
func (f FundingSource) IsValid() bool {
	return f == FundingSourcePool || f == FundingSourceUnitDonations
}
