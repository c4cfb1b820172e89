package enums

import "fmt"

// DonationKind distinguishes how a payment applies to the catalog.
type DonationKind string

const (
	DonationKindUnitPurchase     DonationKind = "unit_purchase"
	DonationKindPoolContribution DonationKind = "pool_contribution"
	DonationKindGeneralGift      DonationKind = "general_gift"
)

var validDonationKinds = []DonationKind{
	DonationKindUnitPurchase,
	DonationKindPoolContribution,
	DonationKindGeneralGift,
}

// String implements fmt.Stringer.
func (d DonationKind) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DonationKind.
func (d DonationKind) IsValid() bool {
	for _, candidate := range validDonationKinds {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDonationKind converts raw input into a DonationKind.
func ParseDonationKind(value string) (DonationKind, error) {
	for _, candidate := range validDonationKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid donation kind %q", value)
}
