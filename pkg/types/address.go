package types

import (
	"fmt"
	"strings"
)

// Address is the shipping destination snapshot stored on fulfillment orders
// and vendor configurations. Persisted as jsonb.
type Address struct {
	Name       string  `json:"name"`
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
}

// Validate checks the fields required to actually ship something.
func (a Address) Validate() error {
	if strings.TrimSpace(a.Line1) == "" {
		return fmt.Errorf("address: missing line1")
	}
	if strings.TrimSpace(a.City) == "" {
		return fmt.Errorf("address: missing city")
	}
	if strings.TrimSpace(a.State) == "" {
		return fmt.Errorf("address: missing state")
	}
	if strings.TrimSpace(a.PostalCode) == "" {
		return fmt.Errorf("address: missing postal_code")
	}
	return nil
}

// String renders the address as a shipping label block.
func (a Address) String() string {
	lines := []string{}
	if a.Name != "" {
		lines = append(lines, a.Name)
	}
	lines = append(lines, a.Line1)
	if a.Line2 != nil && *a.Line2 != "" {
		lines = append(lines, *a.Line2)
	}
	lines = append(lines, fmt.Sprintf("%s, %s %s", a.City, a.State, a.PostalCode))
	if a.Country != "" && a.Country != "US" {
		lines = append(lines, a.Country)
	}
	return strings.Join(lines, "\n")
}
