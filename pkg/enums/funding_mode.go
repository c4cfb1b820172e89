package enums

import "fmt"

// FundingMode declares which funding paths a catalog item accepts.
type FundingMode string

const (
	FundingModeUnit FundingMode = "unit"
	FundingModePool FundingMode = "pool"
	FundingModeBoth FundingMode = "both"
)

var validFundingModes = []FundingMode{
	FundingModeUnit,
	FundingModePool,
	FundingModeBoth,
}

// AllowsUnit reports whether per-unit purchases are accepted.
func (f FundingMode) AllowsUnit() bool {
	return f == FundingModeUnit || f == FundingModeBoth
}

// AllowsPool reports whether pooled contributions are accepted.
func (f FundingMode) AllowsPool() bool {
	return f == FundingModePool || f == FundingModeBoth
}

// IsValid reports whether the value is a known FundingMode.
func (f FundingMode) IsValid() bool {
	for _, candidate := range validFundingModes {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParseFundingMode converts raw input into a FundingMode.
func ParseFundingMode(value string) (FundingMode, error) {
	for _, candidate := range validFundingModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid funding mode %q", value)
}
