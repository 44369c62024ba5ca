package models

import "sort"

// Listing is the structured data extracted from one source listing page.
// Optional fields are nil when the page did not provide them.
type Listing struct {
	URL         string          `json:"url"`
	ListingID   string          `json:"listing_id"`
	Title       *string         `json:"title"`
	Price       *string         `json:"price"`
	Address     *string         `json:"address"`
	Description *string         `json:"description"`
	Images      []string        `json:"images"`
	Attributes  map[string]bool `json:"attributes"`
}

// AttributeNames returns the attribute names that are present, sorted.
func (l *Listing) AttributeNames() []string {
	names := make([]string, 0, len(l.Attributes))
	for name, present := range l.Attributes {
		if present {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// PartialListing is what a single extraction strategy could recover.
type PartialListing struct {
	Title       *string
	Price       *string
	Address     *string
	Description *string
	Attributes  map[string]bool
}

// Merge fills every field still nil in p from other. Attributes from other
// are added only when p has none.
func (p PartialListing) Merge(other PartialListing) PartialListing {
	if p.Title == nil {
		p.Title = other.Title
	}
	if p.Price == nil {
		p.Price = other.Price
	}
	if p.Address == nil {
		p.Address = other.Address
	}
	if p.Description == nil {
		p.Description = other.Description
	}
	if len(p.Attributes) == 0 && len(other.Attributes) > 0 {
		p.Attributes = other.Attributes
	}
	return p
}

// Complete reports whether every scalar field is populated.
func (p PartialListing) Complete() bool {
	return p.Title != nil && p.Price != nil && p.Address != nil && p.Description != nil
}

// StringValue dereferences an optional field, returning fallback when nil.
func StringValue(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
