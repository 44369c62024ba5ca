package trademe

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"listing-publisher/utils"
)

const (
	photoHost      = "trademe.tmcdn.co.nz/photoserver"
	fullSizePrefix = "https://trademe.tmcdn.co.nz/photoserver/plus/"
)

var photoIDRegexp = regexp.MustCompile(`/(\d+)\.(?:jpe?g|webp|png)`)

// gallerySources lists every element/attribute pair that may carry a
// listing photo. Lazy-loaded galleries keep the real URL in data-* attributes.
var gallerySources = []struct {
	selector string
	attr     string
	srcset   bool
}{
	{"img", "src", false},
	{"img", "data-src", false},
	{"img", "data-lazy-src", false},
	{"img", "srcset", true},
	{"img", "data-srcset", true},
	{"source", "srcset", true},
	{`meta[property="og:image"]`, "content", false},
	{`link[rel="preload"][as="image"]`, "href", false},
}

// CollectImages scans the page for CDN listing photos, rewrites each to its
// full-size URL and de-duplicates while keeping first-seen order.
func CollectImages(doc *goquery.Document) []string {
	seen := utils.NewURLSet()

	// Document order matters, so walk all candidate elements once instead
	// of one selector at a time.
	doc.Find("img, source, meta, link").Each(func(_ int, s *goquery.Selection) {
		for _, src := range gallerySources {
			if !s.Is(src.selector) {
				continue
			}
			val, ok := s.Attr(src.attr)
			if !ok || val == "" {
				continue
			}
			for _, candidate := range splitSrc(val, src.srcset) {
				if full := fullSizePhotoURL(candidate); full != "" {
					seen.Add(full)
				}
			}
		}
	})
	return seen.Ordered()
}

func splitSrc(val string, srcset bool) []string {
	if !srcset {
		return []string{strings.TrimSpace(val)}
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		fields := strings.Fields(part)
		if len(fields) > 0 {
			out = append(out, fields[0])
		}
	}
	return out
}

// fullSizePhotoURL maps any photoserver size variant to the /plus/ variant.
func fullSizePhotoURL(src string) string {
	if !strings.Contains(src, photoHost) {
		return ""
	}
	m := photoIDRegexp.FindStringSubmatch(src)
	if len(m) < 2 {
		return ""
	}
	return fullSizePrefix + m[1] + ".jpg"
}
