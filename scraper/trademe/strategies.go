package trademe

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"listing-publisher/models"
)

// strategy recovers whatever listing fields it can from a rendered page.
type strategy struct {
	name    string
	extract func(doc *goquery.Document) models.PartialListing
}

// strategies are applied in priority order; the first non-nil value per field wins.
var strategies = []strategy{
	{name: "json-ld", extract: fromJSONLD},
	{name: "next-data", extract: fromNextData},
	{name: "dom", extract: fromDOM},
}

// Extract runs every strategy against doc and merges the results field by
// field. The returned names list the strategies that contributed a field.
func Extract(doc *goquery.Document) (models.PartialListing, []string) {
	var merged models.PartialListing
	var used []string

	for _, s := range strategies {
		if merged.Complete() && len(merged.Attributes) > 0 {
			break
		}
		part := s.extract(doc)
		before := merged
		merged = merged.Merge(part)
		if contributed(before, merged) {
			used = append(used, s.name)
		}
	}
	return merged, used
}

func contributed(before, after models.PartialListing) bool {
	return (before.Title == nil && after.Title != nil) ||
		(before.Price == nil && after.Price != nil) ||
		(before.Address == nil && after.Address != nil) ||
		(before.Description == nil && after.Description != nil) ||
		(len(before.Attributes) == 0 && len(after.Attributes) > 0)
}

// ── Tier 1: JSON-LD ──────────────────────────────────────────────────────

var jsonLDTypes = map[string]struct{}{
	"Product":               {},
	"Residence":             {},
	"RentAction":            {},
	"Place":                 {},
	"Apartment":             {},
	"House":                 {},
	"SingleFamilyResidence": {},
	"Accommodation":         {},
}

type jsonLDNode struct {
	Type           json.RawMessage `json:"@type"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Address        json.RawMessage `json:"address"`
	Offers         json.RawMessage `json:"offers"`
	Bedrooms       json.RawMessage `json:"numberOfBedrooms"`
	Bathrooms      json.RawMessage `json:"numberOfBathroomsTotal"`
	AmenityFeature []jsonLDFeature `json:"amenityFeature"`
	Graph          []jsonLDNode    `json:"@graph"`
}

type jsonLDFeature struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

type jsonLDAddress struct {
	StreetAddress   string `json:"streetAddress"`
	AddressLocality string `json:"addressLocality"`
	AddressRegion   string `json:"addressRegion"`
}

type jsonLDOffer struct {
	Price         json.RawMessage `json:"price"`
	PriceCurrency string          `json:"priceCurrency"`
}

func fromJSONLD(doc *goquery.Document) models.PartialListing {
	var out models.PartialListing
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		node := pickJSONLDNode([]byte(s.Text()))
		if node == nil {
			return true
		}
		out = out.Merge(node.partial())
		return !out.Complete()
	})
	return out
}

// pickJSONLDNode accepts a single object, a list, or an @graph wrapper and
// returns the first node describing the listing.
func pickJSONLDNode(raw []byte) *jsonLDNode {
	var nodes []jsonLDNode
	if err := json.Unmarshal(raw, &nodes); err != nil {
		var single jsonLDNode
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil
		}
		if len(single.Graph) == 0 {
			if len(single.Type) == 0 || single.hasListingType() {
				return &single
			}
			return nil
		}
		nodes = single.Graph
	}
	for i := range nodes {
		if nodes[i].hasListingType() {
			return &nodes[i]
		}
	}
	return nil
}

func (n *jsonLDNode) hasListingType() bool {
	var one string
	if err := json.Unmarshal(n.Type, &one); err == nil {
		_, ok := jsonLDTypes[one]
		return ok
	}
	var many []string
	if err := json.Unmarshal(n.Type, &many); err == nil {
		for _, t := range many {
			if _, ok := jsonLDTypes[t]; ok {
				return true
			}
		}
	}
	return false
}

func (n *jsonLDNode) partial() models.PartialListing {
	p := models.PartialListing{
		Title:       optional(n.Name),
		Description: optional(n.Description),
		Address:     jsonLDAddressText(n.Address),
		Price:       jsonLDPrice(n.Offers),
	}

	attrs := make(map[string]bool)
	if v := scalarText(n.Bedrooms); v != "" {
		attrs[v+" bedrooms"] = true
	}
	if v := scalarText(n.Bathrooms); v != "" {
		attrs[v+" bathrooms"] = true
	}
	for _, f := range n.AmenityFeature {
		if name := normaliseText(f.Name); name != "" && f.Value != false {
			attrs[name] = true
		}
	}
	if len(attrs) > 0 {
		p.Attributes = attrs
	}
	return p
}

func jsonLDAddressText(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return optional(s)
	}
	var a jsonLDAddress
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil
	}
	if a.StreetAddress != "" {
		return optional(a.StreetAddress)
	}
	parts := make([]string, 0, 2)
	for _, p := range []string{a.AddressLocality, a.AddressRegion} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return optional(strings.Join(parts, ", "))
}

func jsonLDPrice(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	var offer jsonLDOffer
	if err := json.Unmarshal(raw, &offer); err != nil {
		var offers []jsonLDOffer
		if err := json.Unmarshal(raw, &offers); err != nil || len(offers) == 0 {
			return nil
		}
		offer = offers[0]
	}
	price := scalarText(offer.Price)
	if price == "" {
		return nil
	}
	if _, err := strconv.ParseFloat(price, 64); err == nil {
		price = "$" + price
	}
	return optional(price)
}

// scalarText renders a JSON string or number as text; anything else is "".
func scalarText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}

// ── Tier 2: framework hydration payload ─────────────────────────────────

func fromNextData(doc *goquery.Document) models.PartialListing {
	raw := doc.Find(`script#__NEXT_DATA__`).First().Text()
	if strings.TrimSpace(raw) == "" {
		return models.PartialListing{}
	}
	var blob map[string]any
	if err := json.Unmarshal([]byte(raw), &blob); err != nil {
		return models.PartialListing{}
	}

	pageProps := objectAt(blob, "props", "pageProps")
	listing := objectAt(pageProps, "listing")
	if listing == nil {
		listing = objectAt(pageProps, "data")
	}
	if listing == nil {
		listing = pageProps
	}
	if listing == nil {
		return models.PartialListing{}
	}

	return models.PartialListing{
		Title:       firstText(listing, "title", "name"),
		Description: firstText(listing, "description", "body"),
		Address:     firstText(listing, "address", "location"),
		Price:       hydrationPrice(listing),
		Attributes:  hydrationAttributes(listing["attributes"]),
	}
}

// objectAt walks nested objects by key, returning nil on any shape mismatch.
func objectAt(m map[string]any, path ...string) map[string]any {
	cur := m
	for _, key := range path {
		if cur == nil {
			return nil
		}
		next, ok := cur[key].(map[string]any)
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

// firstText returns the first key whose value renders as non-empty text.
// Nested address-like objects are flattened through their common keys.
func firstText(m map[string]any, keys ...string) *string {
	for _, key := range keys {
		switch v := m[key].(type) {
		case string:
			if s := optional(v); s != nil {
				return s
			}
		case float64:
			return optional(strconv.FormatFloat(v, 'f', -1, 64))
		case map[string]any:
			if s := firstText(v, "displayAddress", "streetAddress", "display", "text", "value"); s != nil {
				return s
			}
		}
	}
	return nil
}

func hydrationPrice(listing map[string]any) *string {
	if v, ok := listing["price"].(float64); ok {
		return optional("$" + strconv.FormatFloat(v, 'f', -1, 64))
	}
	return firstText(listing, "price", "priceDisplay")
}

func hydrationAttributes(v any) map[string]bool {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	attrs := make(map[string]bool)
	for _, item := range list {
		switch a := item.(type) {
		case string:
			if name := normaliseText(a); name != "" {
				attrs[name] = true
			}
		case map[string]any:
			name := firstText(a, "displayName", "name", "label")
			if name == nil {
				continue
			}
			if val := firstText(a, "displayValue", "value"); val != nil {
				attrs[*name+": "+*val] = true
			} else {
				attrs[*name] = true
			}
		}
	}
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}

// ── Tier 3: DOM heuristics ───────────────────────────────────────────────

var descriptionClassHints = []string{"description", "listing-body", "listingbody"}

func fromDOM(doc *goquery.Document) models.PartialListing {
	var out models.PartialListing

	if h1 := doc.Find("h1").First(); h1.Length() > 0 {
		out.Title = optional(h1.Text())
	}
	if out.Title != nil {
		out.Address = addressFromTitle(*out.Title)
	}

	doc.Find("div, span, p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if price := findWeeklyPrice(s.Text()); price != "" {
			out.Price = optional(price)
			return false
		}
		return true
	})

	doc.Find("[class]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		class := strings.ToLower(s.AttrOr("class", ""))
		for _, hint := range descriptionClassHints {
			if strings.Contains(class, hint) {
				if d := optional(s.Text()); d != nil {
					out.Description = d
					return false
				}
			}
		}
		return true
	})

	if attrs := parseAttributes(doc.Find("body").Text()); len(attrs) > 0 {
		out.Attributes = attrs
	}
	return out
}
