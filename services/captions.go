package services

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"listing-publisher/models"
	"listing-publisher/utils"
)

// HookLength is how much of an Instagram caption shows before "more".
const HookLength = 125

// captionRules are the per-platform bounds the generated copy should meet.
// They are reported, never enforced.
type captionRules struct {
	minWords, maxWords       int
	minHashtags, maxHashtags int
	requireURL               bool
	forbidURL                bool
	hook                     bool
}

var rules = map[models.Platform]captionRules{
	models.Facebook:  {minWords: 80, maxWords: 150, minHashtags: 0, maxHashtags: 1, requireURL: true},
	models.Instagram: {minWords: 60, maxWords: 100, minHashtags: 5, maxHashtags: 7, forbidURL: true, hook: true},
}

var (
	hashtagPattern = regexp.MustCompile(`(?:^|\s)#[\p{L}\p{N}_]+`)
	urlPattern     = regexp.MustCompile(`(?i)\bhttps?://\S+`)
)

// CaptionService evaluates generated copy against the platform constraints.
type CaptionService struct {
	logger *utils.Logger
	out    io.Writer
}

func NewCaptionService(logger *utils.Logger) *CaptionService {
	return &CaptionService{logger: logger, out: os.Stdout}
}

// Check builds the constraint report for pair. listingURL is the canonical
// link the Facebook post must carry.
func (s *CaptionService) Check(pair models.CaptionPair, listingURL string) *models.CaptionReport {
	report := &models.CaptionReport{}
	for _, p := range models.Platforms {
		pr := checkCaption(p, pair.For(p), listingURL)
		if !pr.Passed() {
			s.logger.Warn("[captions] %s caption misses %d constraint(s)", p, failed(pr))
		}
		report.Platforms = append(report.Platforms, pr)
	}
	return report
}

func checkCaption(p models.Platform, text, listingURL string) models.PlatformReport {
	r := rules[p]
	pr := models.PlatformReport{
		Platform: p,
		Words:    len(strings.Fields(text)),
		Hashtags: len(hashtagPattern.FindAllString(text, -1)),
		HasURL:   urlPattern.MatchString(text),
	}

	pr.Checks = append(pr.Checks,
		models.CaptionCheck{
			Name:   "words",
			Pass:   pr.Words >= r.minWords && pr.Words <= r.maxWords,
			Detail: fmt.Sprintf("%d (want %d-%d)", pr.Words, r.minWords, r.maxWords),
		},
		models.CaptionCheck{
			Name:   "hashtags",
			Pass:   pr.Hashtags >= r.minHashtags && pr.Hashtags <= r.maxHashtags,
			Detail: fmt.Sprintf("%d (want %d-%d)", pr.Hashtags, r.minHashtags, r.maxHashtags),
		},
	)

	switch {
	case r.requireURL:
		pass := listingURL != "" && strings.Contains(text, listingURL)
		pr.Checks = append(pr.Checks, models.CaptionCheck{Name: "link", Pass: pass, Detail: "must include listing URL"})
	case r.forbidURL:
		pr.Checks = append(pr.Checks, models.CaptionCheck{Name: "link", Pass: !pr.HasURL, Detail: "must not include a URL"})
	}

	if r.hook {
		pr.Hook = hook(text)
		pr.Checks = append(pr.Checks, models.CaptionCheck{
			Name:   "hook",
			Pass:   strings.TrimSpace(pr.Hook) != "",
			Detail: fmt.Sprintf("first %d characters", HookLength),
		})
	}
	return pr
}

// hook returns the first HookLength characters, cut on a rune boundary.
func hook(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= HookLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:HookLength])
}

func failed(pr models.PlatformReport) int {
	n := 0
	for _, c := range pr.Checks {
		if !c.Pass {
			n++
		}
	}
	return n
}

// Print writes the captions and their report in the terminal review format.
func (s *CaptionService) Print(pair models.CaptionPair, r *models.CaptionReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(s.out, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(s.out, "\033[1;35m  ✍  GENERATED COPY\033[0m\n")
	fmt.Fprintf(s.out, "\033[1;35m%s\033[0m\n\n", sep)

	for _, pr := range r.Platforms {
		fmt.Fprintf(s.out, "\033[1;33m  %s\033[0m\n", strings.ToUpper(string(pr.Platform)))
		fmt.Fprintf(s.out, "  %s\n", thin)
		for _, line := range strings.Split(pair.For(pr.Platform), "\n") {
			fmt.Fprintf(s.out, "  %s\n", line)
		}
		fmt.Fprintf(s.out, "  %s\n", thin)
		for _, c := range pr.Checks {
			mark := "\033[1;32m✓\033[0m"
			if !c.Pass {
				mark = "\033[1;31m✗\033[0m"
			}
			fmt.Fprintf(s.out, "  %s %-9s %s\n", mark, c.Name, c.Detail)
		}
		if pr.Hook != "" {
			fmt.Fprintf(s.out, "  Preview: %s\n", truncate(pr.Hook, 80))
		}
		fmt.Fprintln(s.out)
	}

	fmt.Fprintf(s.out, "\033[1;35m%s\033[0m\n\n", sep)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
