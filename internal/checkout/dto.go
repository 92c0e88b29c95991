package checkout

import (
	"github.com/shopspring/decimal"

	product "github.com/angelmondragon/storefront/internal/products"
)

// PreviewLine is one grouped basket entry.
type PreviewLine struct {
	Product   product.ProductDTO `json:"product"`
	Quantity  int                `json:"quantity"`
	LineTotal decimal.Decimal    `json:"line_total"`
}

// Preview is the read-only view of a basket before checkout.
type Preview struct {
	Lines []PreviewLine   `json:"lines"`
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}
