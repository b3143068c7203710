package types

// DigitalItem is one deliverable of a digital order: the name shown to the
// customer and the signed URL they download from.
type DigitalItem struct {
	ProductName string `json:"productName"`
	DownloadURL string `json:"downloadUrl"`
}

// DigitalItems is stored as a jsonb column on orders.
type DigitalItems []DigitalItem
