package enums

// OrderOrigin records whether the sweep or an operator created the order.
type OrderOrigin string

const (
	OrderOriginAuto   OrderOrigin = "auto"
	OrderOriginManual OrderOrigin = "manual"
)

// IsValid reports whether the value is a known OrderOrigin.
func (o OrderOrigin) IsValid() bool {
	return o == OrderOriginAuto || o == OrderOriginManual
}
