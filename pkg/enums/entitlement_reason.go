package enums

// EntitlementReason explains the outcome of a download-eligibility check.
// The checker evaluates reasons in a fixed precedence order: freeProduct
// short-circuits everything, an inactive license blocks regardless of
// remaining quota.
type EntitlementReason string

const (
	EntitlementReasonFreeProduct   EntitlementReason = "freeProduct"
	EntitlementReasonLicensed      EntitlementReason = "licensed"
	EntitlementReasonNoLicense     EntitlementReason = "noLicense"
	EntitlementReasonInactive      EntitlementReason = "licenseInactive"
	EntitlementReasonLimitExceeded EntitlementReason = "downloadLimitExceeded"
)

// String implements fmt.Stringer.
func (e EntitlementReason) String() string {
	return string(e)
}

// Allows reports whether the reason corresponds to a granted download.
func (e EntitlementReason) Allows() bool {
	return e == EntitlementReasonFreeProduct || e == EntitlementReasonLicensed
}
