package matching

import (
	"strings"
	"unicode"
)

// stopWords are dropped before any keyword comparison.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"of": true, "in": true, "on": true, "at": true, "to": true, "for": true,
	"by": true, "with": true, "from": true, "as": true, "into": true, "than": true,
	"is": true, "are": true, "was": true, "were": true, "be": true, "been": true,
	"will": true, "would": true, "shall": true, "should": true, "can": true, "could": true,
	"do": true, "does": true, "did": true, "has": true, "have": true, "had": true,
	"it": true, "its": true, "this": true, "that": true, "these": true, "those": true,
	"what": true, "which": true, "who": true, "whom": true, "when": true, "where": true,
	"how": true, "if": true, "before": true, "after": true, "above": true, "below": true,
	"vs": true, "versus": true, "any": true, "more": true, "less": true, "most": true,
	"not": true, "no": true, "yes": true, "there": true, "their": true, "they": true,
	"he": true, "she": true, "his": true, "her": true,
}

// salientTerms are high-signal entities. Each one present in both titles
// adds a bonus on top of the token overlap score.
var salientTerms = []string{
	// politics
	"trump", "biden", "harris", "vance", "desantis", "newsom", "obama", "pelosi",
	"putin", "zelensky", "netanyahu", "xi jinping", "modi", "macron", "starmer", "milei",
	"senate", "house", "supreme court", "electoral college", "impeachment",
	"ukraine", "russia", "israel", "gaza", "iran", "china", "taiwan", "brexit",
	// economics
	"fed", "fomc", "interest rate", "recession", "inflation", "cpi", "gdp",
	"unemployment", "tariff", "shutdown", "debt ceiling",
	// crypto
	"bitcoin", "btc", "ethereum", "eth", "solana", "sol", "dogecoin", "xrp", "etf",
	"binance", "coinbase", "tether",
	// sports
	"super bowl", "world series", "stanley cup", "nba finals", "world cup",
	"champions league", "premier league", "wimbledon", "olympics",
	"chiefs", "eagles", "49ers", "cowboys", "ravens", "bills", "lions",
	"lakers", "celtics", "warriors", "knicks", "nuggets", "thunder",
	"yankees", "dodgers", "astros", "mets",
	"real madrid", "barcelona", "manchester city", "arsenal", "liverpool",
	// entertainment and tech
	"oscars", "grammys", "emmys", "taylor swift", "beyonce", "drake",
	"openai", "chatgpt", "gpt", "tesla", "spacex", "musk", "apple", "nvidia",
}

// normalize lower-cases s, drops everything that is not a letter, digit or
// space, and collapses runs of whitespace.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// meaningfulWords returns the normalised words of title with stop words
// removed, in title order.
func meaningfulWords(title string) []string {
	fields := strings.Fields(normalize(title))
	out := fields[:0]
	for _, w := range fields {
		if !stopWords[w] {
			out = append(out, w)
		}
	}
	return out
}

// Keywords returns the keyword set of a title.
func Keywords(title string) map[string]struct{} {
	words := meaningfulWords(title)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// TitleKey is the grouping key for titles that were never matched: the
// first five meaningful words of the normalised title. It is empty when the
// title has no meaningful words.
func TitleKey(title string) string {
	words := meaningfulWords(title)
	if len(words) > 5 {
		words = words[:5]
	}
	return strings.Join(words, " ")
}

// containsTerm reports whether the salient term occurs in the normalised
// title as whole words.
func containsTerm(normalized, term string) bool {
	return strings.Contains(" "+normalized+" ", " "+term+" ")
}
