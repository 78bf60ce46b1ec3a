package enums

import "fmt"

// AccessPassTier selects how a catalog-wide access pass is billed. One-time
// tiers settle through the payment-intent path, recurring tiers through the
// provider's subscription path.
type AccessPassTier string

const (
	AccessPassTierLifetime AccessPassTier = "lifetime"
	AccessPassTierMonthly  AccessPassTier = "monthly"
	AccessPassTierYearly   AccessPassTier = "yearly"
)

var validAccessPassTiers = []AccessPassTier{
	AccessPassTierLifetime,
	AccessPassTierMonthly,
	AccessPassTierYearly,
}

// String implements fmt.Stringer.
func (t AccessPassTier) String() string {
	return string(t)
}

// IsValid reports whether the value is a known AccessPassTier.
func (t AccessPassTier) IsValid() bool {
	for _, candidate := range validAccessPassTiers {
		if candidate == t {
			return true
		}
	}
	return false
}

// IsRecurring reports whether the tier bills on a recurring interval.
func (t AccessPassTier) IsRecurring() bool {
	return t == AccessPassTierMonthly || t == AccessPassTierYearly
}

// ParseAccessPassTier converts raw input into an AccessPassTier.
func ParseAccessPassTier(value string) (AccessPassTier, error) {
	for _, candidate := range validAccessPassTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid access pass tier %q", value)
}
