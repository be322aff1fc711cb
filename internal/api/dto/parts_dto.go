package dto

// CreatePartRequest payload.
type CreatePartRequest struct {
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Stock     int64  `json:"stock"`
}

// AddPartRequest payload for POST /tickets/:id/parts.
type AddPartRequest struct {
	PartID   string `json:"part_id"`
	Quantity int64  `json:"quantity"`
}
