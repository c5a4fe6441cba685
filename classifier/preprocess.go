package classifier

import (
	"regexp"
	"strings"
)

// The exact same normalization must run at training-artifact generation time
// and at inference time. Any drift between the two silently degrades every
// prediction, so this is the single implementation both sides use.

var nonAlphaPattern = regexp.MustCompile(`[^a-z\s]`)

// stopwords is the fixed English stopword list shared with training.
var stopwords = map[string]bool{
	"i": true, "me": true, "my": true, "myself": true, "we": true, "our": true,
	"ours": true, "ourselves": true, "you": true, "your": true, "yours": true,
	"yourself": true, "yourselves": true, "he": true, "him": true, "his": true,
	"himself": true, "she": true, "her": true, "hers": true, "herself": true,
	"it": true, "its": true, "itself": true, "they": true, "them": true,
	"their": true, "theirs": true, "themselves": true, "what": true, "which": true,
	"who": true, "whom": true, "this": true, "that": true, "these": true,
	"those": true, "am": true, "is": true, "are": true, "was": true, "were": true,
	"be": true, "been": true, "being": true, "have": true, "has": true, "had": true,
	"having": true, "do": true, "does": true, "did": true, "doing": true, "a": true,
	"an": true, "the": true, "and": true, "but": true, "if": true, "or": true,
	"because": true, "as": true, "until": true, "while": true, "of": true,
	"at": true, "by": true, "for": true, "with": true, "about": true, "against": true,
	"between": true, "into": true, "through": true, "during": true, "before": true,
	"after": true, "above": true, "below": true, "to": true, "from": true,
	"up": true, "down": true, "in": true, "out": true, "on": true, "off": true,
	"over": true, "under": true, "again": true, "further": true, "then": true,
	"once": true,
}

// Normalize lowercases text, drops non-letter characters, removes stopwords
// and applies light suffix lemmatization. Returns the normalized tokens
// joined by single spaces.
func Normalize(text string) string {
	return strings.Join(Tokenize(text), " ")
}

// Tokenize returns the normalized token sequence for text.
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	text = nonAlphaPattern.ReplaceAllString(text, " ")

	var tokens []string
	for _, token := range strings.Fields(text) {
		if stopwords[token] {
			continue
		}
		tokens = append(tokens, lemmatize(token))
	}
	return tokens
}

// lemmatize strips common inflectional suffixes. Short tokens are left alone
// so words like "ring" and "red" survive intact.
func lemmatize(token string) string {
	switch {
	case len(token) > 5 && strings.HasSuffix(token, "ing"):
		return token[:len(token)-3]
	case len(token) > 4 && strings.HasSuffix(token, "ies"):
		return token[:len(token)-3] + "y"
	case len(token) > 4 && strings.HasSuffix(token, "ed"):
		return token[:len(token)-2]
	case len(token) > 3 && strings.HasSuffix(token, "s") && !strings.HasSuffix(token, "ss"):
		return token[:len(token)-1]
	}
	return token
}
