package orders

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/assetdeck/assetdeck-backend/pkg/enums"
)

// Provider metadata keys. The payment intent metadata must round-trip enough
// state to rebuild the order when the asynchronous confirmation arrives.
const (
	metaUserID      = "user_id"
	metaLicenseType = "license_type"
	metaCurrency    = "currency"
	metaAmountCents = "amount_cents"
	metaItems       = "items"
)

type metadataItem struct {
	ProductID      string `json:"p"`
	Title          string `json:"t"`
	Quantity       int    `json:"q"`
	UnitPriceCents int    `json:"c"`
}

// EncodeMetadata flattens a confirmation into provider metadata.
func EncodeMetadata(conf Confirmation) (map[string]string, error) {
	items := make([]metadataItem, 0, len(conf.Items))
	for _, item := range conf.Items {
		items = append(items, metadataItem{
			ProductID:      item.ProductID.String(),
			Title:          item.Title,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		})
	}

	encoded, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encoding order items: %w", err)
	}

	return map[string]string{
		metaUserID:      conf.UserID.String(),
		metaLicenseType: string(conf.LicenseType),
		metaCurrency:    string(conf.Currency),
		metaAmountCents: strconv.FormatInt(conf.AmountCents, 10),
		metaItems:       string(encoded),
	}, nil
}

// DecodeMetadata rebuilds a confirmation from provider metadata. The intent
// id is carried by the event itself, not the metadata.
func DecodeMetadata(paymentIntentID string, metadata map[string]string) (Confirmation, error) {
	var conf Confirmation

	userID, err := uuid.Parse(metadata[metaUserID])
	if err != nil {
		return conf, fmt.Errorf("invalid user_id metadata: %w", err)
	}

	licenseType, err := enums.ParseLicenseType(metadata[metaLicenseType])
	if err != nil {
		return conf, fmt.Errorf("invalid license_type metadata: %w", err)
	}

	currency, err := enums.ParseCurrency(metadata[metaCurrency])
	if err != nil {
		return conf, fmt.Errorf("invalid currency metadata: %w", err)
	}

	amount, err := strconv.ParseInt(metadata[metaAmountCents], 10, 64)
	if err != nil {
		return conf, fmt.Errorf("invalid amount_cents metadata: %w", err)
	}

	var rawItems []metadataItem
	if err := json.Unmarshal([]byte(metadata[metaItems]), &rawItems); err != nil {
		return conf, fmt.Errorf("invalid items metadata: %w", err)
	}
	if len(rawItems) == 0 {
		return conf, fmt.Errorf("items metadata is empty")
	}

	items := make([]ConfirmationItem, 0, len(rawItems))
	for _, raw := range rawItems {
		productID, err := uuid.Parse(raw.ProductID)
		if err != nil {
			return conf, fmt.Errorf("invalid product id in items metadata: %w", err)
		}
		items = append(items, ConfirmationItem{
			ProductID:      productID,
			Title:          raw.Title,
			Quantity:       raw.Quantity,
			UnitPriceCents: raw.UnitPriceCents,
		})
	}

	return Confirmation{
		PaymentIntentID: paymentIntentID,
		UserID:          userID,
		LicenseType:     licenseType,
		Currency:        currency,
		AmountCents:     amount,
		Items:           items,
	}, nil
}
