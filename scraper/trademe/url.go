package trademe

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"listing-publisher/models"
)

const siteDomain = "trademe.co.nz"

var listingIDRegexp = regexp.MustCompile(`/listing/(\d+)`)

// ValidateURL checks that raw is an http(s) URL on the TradeMe domain and
// returns it trimmed. No network call is made.
func ValidateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: %q is not an absolute URL", models.ErrInvalidURL, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: only http(s) TradeMe links are accepted", models.ErrInvalidURL)
	}
	host := strings.ToLower(u.Hostname())
	if host != siteDomain && !strings.HasSuffix(host, "."+siteDomain) {
		return "", fmt.Errorf("%w: host %q is not %s", models.ErrInvalidURL, host, siteDomain)
	}
	return raw, nil
}

// ListingID pulls the numeric listing id out of a TradeMe listing URL.
func ListingID(raw string) (string, error) {
	m := listingIDRegexp.FindStringSubmatch(raw)
	if len(m) < 2 {
		return "", fmt.Errorf("%w: no listing id in %q", models.ErrInvalidURL, raw)
	}
	return m[1], nil
}
