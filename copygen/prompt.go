package copygen

import (
	"strings"
	"text/template"

	"listing-publisher/models"
)

var promptTemplate = template.Must(template.New("prompt").Parse(`Generate social media posts for this rental listing.

LISTING DATA:
Title: {{.Title}}
Price: {{.Price}}
Address: {{.Address}}
Description: {{.Description}}
Features: {{.Features}}

Generate TWO posts:

1. FACEBOOK POST:
- Lead with the key selling point (location, price, or standout feature)
- 80-150 words, informative but scannable
- Include the listing link at the end: {{.URL}}
- End with a clear call to action (e.g. "Message us to book a viewing")
- 0-1 hashtags max (hashtags don't help on Facebook)
- Use 2-3 relevant emoji as visual markers, not decoratively

2. INSTAGRAM CAPTION:
- First 125 characters are the hook (this shows before "more" is tapped)
- 60-100 words total caption
- Lifestyle-focused: help the reader imagine living there
- 5-7 hashtags at the end: mix of #ForRent, #[Suburb]Rentals, #NZProperty, #[City]Living, and 2 feature-specific (e.g. #PetFriendly, #CityViews)
- DO NOT include a link (links aren't clickable in Instagram captions)
- Instead end with "Link in bio" or "DM for details"
- Use 3-4 emoji as visual signposts

Respond in JSON only, no markdown fences:
{"facebook": "post text here", "instagram": "caption text here"}`))

type promptData struct {
	Title       string
	Price       string
	Address     string
	Description string
	Features    string
	URL         string
}

// BuildPrompt renders the generation prompt for l. Missing fields render as N/A.
func BuildPrompt(l *models.Listing) string {
	features := strings.Join(l.AttributeNames(), ", ")
	if features == "" {
		features = "N/A"
	}

	var b strings.Builder
	// The template is static and every field is a string, so Execute cannot fail.
	_ = promptTemplate.Execute(&b, promptData{
		Title:       models.StringValue(l.Title, "N/A"),
		Price:       models.StringValue(l.Price, "N/A"),
		Address:     models.StringValue(l.Address, "N/A"),
		Description: models.StringValue(l.Description, "N/A"),
		Features:    features,
		URL:         l.URL,
	})
	return b.String()
}
