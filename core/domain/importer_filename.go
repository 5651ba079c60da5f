package domain

// IdentifierType tags how the id embedded in a filename resolves to
// catalog SKUs.
type IdentifierType string

const (
	IdentifierSkuID        IdentifierType = "SkuId"
	IdentifierSkuRefID     IdentifierType = "SkuRefId"
	IdentifierProductRefID IdentifierType = "ProductRefId"
	IdentifierProductID    IdentifierType = "ProductId"
)

// Known reports whether the tag is one of the four recognized literals.
func (t IdentifierType) Known() bool {
	switch t {
	case IdentifierSkuID, IdentifierSkuRefID, IdentifierProductRefID, IdentifierProductID:
		return true
	}
	return false
}

// ParsedFilename is the transient result of parsing an uploaded image's
// filename. Derived once per file, never persisted.
type ParsedFilename struct {
	IdentifierType  IdentifierType
	IdentifierValue string
	ImageName       string
	ImageLabel      string
	IsMain          bool
}

// SkuImage is the image-attach payload for a single SKU.
type SkuImage struct {
	IsMain bool   `json:"IsMain"`
	Label  string `json:"Label"`
	Name   string `json:"Name"`
	Text   string `json:"Text"`
	URL    string `json:"Url"`
}
