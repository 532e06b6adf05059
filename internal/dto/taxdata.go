package dto

import "encoding/json"

type SaveTaxDataRequest struct {
	Year int             `json:"year" validate:"required"`
	Data json.RawMessage `json:"data" validate:"required"`
}

type TaxDataResponse struct {
	ID        string          `json:"id"`
	Year      int             `json:"year"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt string          `json:"updated_at"`
}
