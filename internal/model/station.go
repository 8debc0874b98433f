package model

import "strings"

type Brand string

const (
	BrandA     Brand = "BRAND_A"
	BrandB     Brand = "BRAND_B"
	BrandOther Brand = "Other"
)

// NormalizeBrand folds free-text brand values ("brand a", "Brand-B") onto the known set.
func NormalizeBrand(raw string) Brand {
	key := strings.ToUpper(strings.TrimSpace(raw))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	switch Brand(key) {
	case BrandA:
		return BrandA
	case BrandB:
		return BrandB
	default:
		return BrandOther
	}
}

// StoredBrand is the brand text written to the sheet: the canonical spelling
// for a known brand, otherwise the trimmed input as given.
func StoredBrand(raw string) string {
	if b := NormalizeBrand(raw); b != BrandOther {
		return string(b)
	}
	return strings.TrimSpace(raw)
}

type Station struct {
	RowNumber int     `json:"-"`
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Brand     string  `json:"brand"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

type Technician struct {
	RowNumber int    `json:"-"`
	Name      string `json:"name"`
}
