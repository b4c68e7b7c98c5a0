// Package similarity scores how alike two descriptions are using pairwise TF-IDF
// weighting and cosine similarity.
package similarity

import (
	"strings"
	"unicode"
)

// stopWords is the English stop-word list dropped before weighting.
var stopWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		about above after again all also am an and another any are as at be because been
		before being below between both but by came can cannot come could did do does doing
		during each few for from further get got has had he have her here him himself his how
		if in into is it its itself like make many me might more most much must my myself
		never now of on only or other our ours ourselves out over own said same see should
		since so some still such take than that the their theirs them themselves then there
		these they this those through to too under until up very was way we well were what
		where which while who whom why with would you your yours yourself
		a b c d e f g h i j k l m n o p q r s t u v w x y z $ 0 1 2 3 4 5 6 7 8 9 _`) {
		stopWords[w] = struct{}{}
	}
}

// Tokenize lowercases text, splits it on word boundaries and drops stop words.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	tokens := fields[:0]
	for _, f := range fields {
		if _, stop := stopWords[f]; stop {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// IsStopWord reports whether a lowercase token is ignored by Tokenize.
func IsStopWord(token string) bool {
	_, ok := stopWords[token]
	return ok
}
