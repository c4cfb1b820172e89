package enums

// DonorTier is the coarse classification assigned on first donation.
type DonorTier string

const (
	DonorTierGeneral DonorTier = "general"
	DonorTierMajor   DonorTier = "major"
)

// DonorTierForKind picks the initial tier from the first donation's kind.
func DonorTierForKind(kind DonationKind) DonorTier {
	if kind == DonationKindUnitPurchase {
		return DonorTierMajor
	}
	return DonorTierGeneral
}
