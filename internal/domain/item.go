package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Money is exchanged with the UI as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

type Item struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Stock       int             `json:"stock"`
	ImageURL    string          `json:"image_url"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
