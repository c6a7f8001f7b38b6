package models

import (
	"github.com/buitanphat247/crawl-data-thegioididong/internal/normalize"
)

// ListingRecord is one product row scraped from a category listing page.
type ListingRecord struct {
	ID          string          `json:"id"`
	ProductCode string          `json:"productCode"`
	Name        normalize.Value `json:"name"`
	Brand       normalize.Value `json:"brand"`
	Price       normalize.Value `json:"price"`
	PriceOld    normalize.Value `json:"priceOld"`
	Discount    normalize.Value `json:"discount"`
	Image       string          `json:"image"`
	Link        string          `json:"link"`
	Rating      normalize.Value `json:"rating"`
	Sold        normalize.Value `json:"sold"`
	Gift        normalize.Value `json:"gift"`
	Color       normalize.Value `json:"color"`
	DataPrice   string          `json:"dataPrice"`
	Compare     normalize.Value `json:"compare"`
	Label       normalize.Value `json:"label"`
	DataIndex   string          `json:"dataIndex"`
	DataPos     string          `json:"dataPos"`
}

// Normalize re-applies multi-line normalization to every free-text field.
func (r *ListingRecord) Normalize() {
	for _, v := range []*normalize.Value{
		&r.Name, &r.Brand, &r.Price, &r.PriceOld, &r.Discount,
		&r.Rating, &r.Sold, &r.Gift, &r.Color, &r.Compare, &r.Label,
	} {
		*v = normalize.Text(v.String())
	}
}

type SpecItem struct {
	Label string          `json:"label"`
	Value normalize.Value `json:"value"`
}

type SpecGroup struct {
	Category string     `json:"category"`
	Items    []SpecItem `json:"items"`
}

type StorageOption struct {
	Option   string `json:"option"`
	IsActive bool   `json:"isActive"`
}

type ColorOption struct {
	Name        string `json:"name"`
	IsActive    bool   `json:"isActive"`
	ColorCode   string `json:"colorCode"`
	ProductCode string `json:"productCode"`
	ColorStyle  string `json:"colorStyle"`
}

// DetailRecord is everything scraped from a product detail page.
type DetailRecord struct {
	Title          string          `json:"title"`
	Price          string          `json:"price"`
	PriceOld       string          `json:"priceOld"`
	Discount       string          `json:"discount"`
	Label          string          `json:"label"`
	Rating         string          `json:"rating"`
	Sold           string          `json:"sold"`
	Specifications []SpecGroup     `json:"specifications"`
	StorageOptions []StorageOption `json:"storageOptions"`
	ColorOptions   []ColorOption   `json:"colorOptions"`
	Images         []string        `json:"images"`
}

// Detail fields a category can require for a record to be kept.
const (
	FieldTitle          = "title"
	FieldPrice          = "price"
	FieldLabel          = "label"
	FieldSpecifications = "specifications"
)

// HasField reports whether the named field carries a non-empty value.
func (d *DetailRecord) HasField(field string) bool {
	if d == nil {
		return false
	}
	switch field {
	case FieldTitle:
		return d.Title != ""
	case FieldPrice:
		return d.Price != ""
	case FieldLabel:
		return d.Label != ""
	case FieldSpecifications:
		return len(d.Specifications) > 0
	default:
		return false
	}
}

// NormalizeSpecs applies multi-line normalization to every spec value.
func (d *DetailRecord) NormalizeSpecs() {
	for g := range d.Specifications {
		for i := range d.Specifications[g].Items {
			item := &d.Specifications[g].Items[i]
			item.Value = normalize.Text(item.Value.String())
		}
	}
}

// EnrichedProduct is a listing row joined with its accepted detail record.
type EnrichedProduct struct {
	ListingRecord
	Detail *DetailRecord `json:"detail"`
}
