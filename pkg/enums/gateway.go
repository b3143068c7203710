package enums

// Gateway identifies the mobile-money provider that issued a payment attempt.
type Gateway string

const (
	GatewayA Gateway = "gateway_a"
	GatewayB Gateway = "gateway_b"
)

// String implements fmt.Stringer.
func (g Gateway) String() string {
	return string(g)
}

// IsValid reports whether the value is a known Gateway.
func (g Gateway) IsValid() bool {
	switch g {
	case GatewayA, GatewayB:
		return true
	default:
		return false
	}
}
