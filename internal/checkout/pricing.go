package checkout

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/assetdeck/assetdeck-backend/pkg/config"
	"github.com/assetdeck/assetdeck-backend/pkg/db/models"
	"github.com/assetdeck/assetdeck-backend/pkg/enums"
)

// unitPriceCents locks the charge for one unit of a product under the chosen
// license tier. The effective catalog price (sale over list) is scaled by the
// tier multiplier with decimal math so fractional multipliers never drift.
func unitPriceCents(product models.Product, licenseType enums.LicenseType, cfg config.LicensingConfig) (int, error) {
	if product.Freebie {
		return 0, nil
	}

	multiplier := cfg.BasicMultiplier
	if licenseType == enums.LicenseTypeExtended {
		multiplier = cfg.ExtendedMultiplier
	}

	mult, err := decimal.NewFromString(multiplier)
	if err != nil {
		return 0, fmt.Errorf("invalid %s multiplier %q: %w", licenseType, multiplier, err)
	}
	if mult.IsNegative() {
		return 0, fmt.Errorf("%s multiplier must be non-negative", licenseType)
	}

	base := decimal.NewFromInt(int64(product.EffectivePriceCents()))
	return int(base.Mul(mult).Round(0).IntPart()), nil
}
