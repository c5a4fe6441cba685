package utils

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// MarkupPolicy is the allow-list filter applied to email HTML bodies after
// the regex pre-pass has removed dangerous elements. Disallowed tags are
// stripped while their text content is kept.
var MarkupPolicy *bluemonday.Policy

var (
	// Whole script/style elements, including multi-line content.
	scriptPattern   = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script>`)
	stylePattern    = regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style>`)
	danglingPattern = regexp.MustCompile(`(?i)</?(?:script|style)\b[^>]*>`)

	// 3+ consecutive breaks collapse to exactly two.
	brRunPattern      = regexp.MustCompile(`(?i)(?:<br\s*/?>\s*){3,}`)
	newlineRunPattern = regexp.MustCompile(`\n{3,}`)

	// Degenerate empty block elements, with or without attributes. RE2 has
	// no backreferences, so one pattern per tag.
	emptyBlockPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<p\b[^>]*>\s*</p>`),
		regexp.MustCompile(`(?i)<div\b[^>]*>\s*</div>`),
		regexp.MustCompile(`(?i)<span\b[^>]*>\s*</span>`),
	}
)

func init() {
	MarkupPolicy = bluemonday.NewPolicy()

	// Basic structural and formatting tags for email content
	MarkupPolicy.AllowElements("p", "br", "div", "span", "a", "strong", "em", "ul", "li")
	MarkupPolicy.AllowElements("b", "i", "u", "s", "code", "pre", "blockquote", "ol", "img")
	MarkupPolicy.AllowElements("h1", "h2", "h3", "h4", "h5", "h6")

	MarkupPolicy.AllowAttrs("href", "title").OnElements("a")
	MarkupPolicy.AllowAttrs("src", "alt", "style").OnElements("img")
	MarkupPolicy.AllowAttrs("style").Globally()

	// Require URLs to be safe
	MarkupPolicy.RequireParseableURLs(true)
	MarkupPolicy.AllowURLSchemes("http", "https", "mailto")
}

// SanitizeHTML cleans an email HTML body for client rendering. The stages run
// in a fixed order: script/style removal, invisible-character stripping, the
// allow-list filter, then whitespace collapsing. Output is stable under
// re-application.
func SanitizeHTML(html string) string {
	// Stage 1: remove dangerous elements before the allow-list filter sees
	// them, so obfuscated markup cannot smuggle content past it.
	html = scriptPattern.ReplaceAllString(html, "")
	html = stylePattern.ReplaceAllString(html, "")
	html = danglingPattern.ReplaceAllString(html, "")

	// Stage 2: strip zero-width and bidi-control characters used to
	// obfuscate phishing text.
	html = stripInvisible(html)

	// Stage 3: allow-list markup filter.
	html = MarkupPolicy.Sanitize(html)

	// Stage 4: collapse degenerate empty blocks. Removing an inner empty
	// element can make its parent empty, so loop until stable.
	for {
		before := html
		for _, pattern := range emptyBlockPatterns {
			html = pattern.ReplaceAllString(html, "")
		}
		if html == before {
			break
		}
	}

	// Stage 5: limit vertical whitespace from quoted-reply chains.
	html = brRunPattern.ReplaceAllString(html, "<br><br>")
	html = newlineRunPattern.ReplaceAllString(html, "\n\n")

	return html
}

// stripInvisible removes zero-width and bidirectional-control runes.
func stripInvisible(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 0x200B && r <= 0x200F: // zero-width space/joiners, LRM, RLM
			return -1
		case r >= 0x202A && r <= 0x202E: // bidi embedding and override controls
			return -1
		case r >= 0x2060 && r <= 0x2064: // word joiner and invisible operators
			return -1
		case r >= 0x2066 && r <= 0x2069: // bidi isolate controls
			return -1
		case r == 0xFEFF: // zero-width no-break space
			return -1
		}
		return r
	}, s)
}

// StripTags removes all markup from content, keeping only text. Used to turn
// an HTML body into plain text for classification.
func StripTags(html string) string {
	return strings.TrimSpace(bluemonday.StrictPolicy().Sanitize(html))
}
