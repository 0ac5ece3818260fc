package fabric

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// alias maps one spelling, English or German, onto a canonical English token.
type alias struct {
	phrase    string
	canonical string
}

// lexicon is a fixed set of aliases ordered longest phrase first, so that
// "dark blue" wins over "blue" when both match the same text.
type lexicon struct {
	aliases []alias
}

type tokenMatch struct {
	canonical  string
	start, end int
}

// inflectionSuffixes are German adjective and plural endings accepted after an alias,
// so "grauen" and "karierte" still match "grau" and "kariert".
var inflectionSuffixes = []string{"en", "er", "es", "em", "e", "n", "s", ""}

func newLexicon(entries map[string][]string) lexicon {
	var l lexicon
	for canonical, phrases := range entries {
		l.aliases = append(l.aliases, alias{phrase: canonical, canonical: canonical})
		for _, phrase := range phrases {
			l.aliases = append(l.aliases, alias{phrase: phrase, canonical: canonical})
		}
	}
	sort.Slice(l.aliases, func(i, j int) bool {
		if len(l.aliases[i].phrase) != len(l.aliases[j].phrase) {
			return len(l.aliases[i].phrase) > len(l.aliases[j].phrase)
		}
		return l.aliases[i].phrase < l.aliases[j].phrase
	})
	return l
}

// extract returns non-overlapping matches in text order. text must already be lowercase.
func (l lexicon) extract(text string) []tokenMatch {
	return l.extractMasked(text, make([]bool, len(text)))
}

// extractMasked is extract with a caller-owned mask of byte positions already claimed
// by another lexicon. Matched ranges are added to the mask.
func (l lexicon) extractMasked(text string, mask []bool) []tokenMatch {
	var matches []tokenMatch
	for _, a := range l.aliases {
		for offset := 0; offset < len(text); {
			idx := strings.Index(text[offset:], a.phrase)
			if idx < 0 {
				break
			}
			start := offset + idx
			offset = start + len(a.phrase)

			if !wordBoundaryBefore(text, start) {
				continue
			}
			end, ok := matchEnd(text, start+len(a.phrase))
			if !ok || claimed(mask, start, end) {
				continue
			}
			for i := start; i < end; i++ {
				mask[i] = true
			}
			matches = append(matches, tokenMatch{canonical: a.canonical, start: start, end: end})
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].start < matches[j].start })
	return matches
}

// canonicalSet returns the sorted distinct canonical tokens found in text.
func (l lexicon) canonicalSet(text string) []string {
	matches := l.extract(strings.ToLower(text))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.canonical)
	}
	return normalizeSet(out)
}

// normalize maps a single hint value onto its canonical token.
func (l lexicon) normalize(raw string) (string, bool) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return "", false
	}
	for _, a := range l.aliases {
		if a.phrase == value {
			return a.canonical, true
		}
	}
	if matches := l.extract(value); len(matches) > 0 {
		return matches[0].canonical, true
	}
	return "", false
}

// normalizeAll maps hint values and drops the ones outside the vocabulary.
func (l lexicon) normalizeAll(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, value := range raw {
		if canonical, ok := l.normalize(value); ok {
			out = append(out, canonical)
		}
	}
	return out
}

func wordBoundaryBefore(text string, pos int) bool {
	if pos == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:pos])
	return !isWordRune(r)
}

// matchEnd extends a match over an optional inflection suffix and checks the right boundary.
func matchEnd(text string, pos int) (int, bool) {
	for _, suffix := range inflectionSuffixes {
		if !strings.HasPrefix(text[pos:], suffix) {
			continue
		}
		end := pos + len(suffix)
		if end == len(text) {
			return end, true
		}
		r, _ := utf8.DecodeRuneInString(text[end:])
		if !isWordRune(r) {
			return end, true
		}
	}
	return 0, false
}

func claimed(mask []bool, start, end int) bool {
	for i := start; i < end; i++ {
		if mask[i] {
			return true
		}
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// vocabulary bundles every lexicon the criteria builder understands.
type vocabulary struct {
	colors      lexicon
	patterns    lexicon
	materials   lexicon
	garments    lexicon
	occasions   lexicon
	seasons     lexicon
	lightweight lexicon
}

var defaultVocabulary = vocabulary{
	colors: newLexicon(map[string][]string{
		"navy":        {"marine", "marineblau", "navyblau", "navy blue", "dunkelmarine"},
		"dark blue":   {"dunkelblau"},
		"light blue":  {"hellblau"},
		"blue":        {"blau"},
		"dark grey":   {"dark gray", "dunkelgrau"},
		"light grey":  {"light gray", "hellgrau"},
		"grey":        {"gray", "grau", "mittelgrau", "mid grey", "mid gray"},
		"charcoal":    {"anthracite", "anthrazit"},
		"black":       {"schwarz"},
		"white":       {"weiß", "weiss"},
		"cream":       {"creme", "ecru"},
		"dark brown":  {"dunkelbraun"},
		"light brown": {"hellbraun"},
		"brown":       {"braun"},
		"beige":       {"sand", "sandfarben"},
		"camel":       {"kamel"},
		"dark green":  {"dunkelgrün"},
		"green":       {"grün", "gruen"},
		"olive":       {"oliv", "olivgrün"},
		"burgundy":    {"bordeaux", "weinrot", "burgunder"},
		"red":         {"rot"},
	}),
	patterns: newLexicon(map[string][]string{
		"solid":        {"plain", "uni", "einfarbig"},
		"herringbone":  {"fischgrat", "fischgrät", "fischgratmuster", "fischgrätmuster"},
		"twill":        {"köper", "koeper"},
		"check":        {"checked", "karo", "kariert", "plaid"},
		"glen check":   {"glencheck", "glen plaid", "glenurquhart"},
		"houndstooth":  {"pepita", "hahnentritt"},
		"pinstripe":    {"pin stripe", "nadelstreifen"},
		"chalk stripe": {"chalkstripe", "kreidestreifen"},
		"stripe":       {"striped", "streifen", "gestreift"},
		"textured":     {"struktur", "strukturiert"},
		"tweed":        {},
		"birdseye":     {"bird's eye", "vogelauge"},
	}),
	materials: newLexicon(map[string][]string{
		"wool":     {"wolle", "schurwolle", "merino", "merinowolle", "virgin wool", "new wool"},
		"linen":    {"leinen"},
		"cotton":   {"baumwolle", "chino"},
		"cashmere": {"kaschmir"},
		"silk":     {"seide"},
		"mohair":   {},
	}),
	garments: newLexicon(map[string][]string{
		string(GarmentSuit):     {"suiting", "anzug", "anzüge", "business suit"},
		string(GarmentJacket):   {"sakko", "blazer", "jackett"},
		string(GarmentTrousers): {"pants", "hose", "hosen", "chinos"},
		string(GarmentVest):     {"waistcoat", "weste"},
		string(GarmentCoat):     {"overcoat", "mantel"},
		string(GarmentShirt):    {"hemd", "hemden"},
	}),
	occasions: newLexicon(map[string][]string{
		"wedding":  {"hochzeit", "trauung"},
		"business": {"office", "büro", "buero", "geschäftlich", "meeting"},
		"evening":  {"gala", "black tie", "abend", "abendveranstaltung", "dinner"},
		"casual":   {"freizeit", "leger"},
	}),
	seasons: newLexicon(map[string][]string{
		string(SeasonSummer):     {"sommer", "sommerlich"},
		string(SeasonWinter):     {"winterlich"},
		string(SeasonFourSeason): {"all season", "all-season", "ganzjährig", "four season", "4 season"},
	}),
	lightweight: newLexicon(map[string][]string{
		"light": {"lightweight", "airy", "breathable", "summer", "leicht", "luftig", "sommer", "sommerlich"},
	}),
}

var negationWords = map[string]struct{}{
	"not": {}, "no": {}, "without": {}, "never": {},
	"nicht": {}, "ohne": {}, "kein": {}, "keine": {}, "keinen": {},
	"keiner": {}, "keines": {}, "keinem": {},
}

// conditionalWords turn a following negation into an alternative ("wenn nicht navy, dann grau").
var conditionalWords = map[string]struct{}{
	"if": {}, "or": {}, "unless": {},
	"wenn": {}, "falls": {}, "oder": {},
}

var alternativePhrases = []string{
	"other fabric", "different fabric", "more fabric", "more options", "something else",
	"andere stoff", "anderen stoff", "weitere stoff", "andere optionen", "etwas anderes", "was anderes",
}

type negationKind int

const (
	notNegated negationKind = iota
	negated
	conditionallyNegated
)

// negationBefore inspects up to two words preceding pos for a negation word.
func negationBefore(text string, pos int) negationKind {
	words := strings.FieldsFunc(text[:pos], func(r rune) bool { return !isWordRune(r) })
	for back := 1; back <= 2 && back <= len(words); back++ {
		idx := len(words) - back
		if _, ok := negationWords[words[idx]]; !ok {
			continue
		}
		if idx > 0 {
			if _, ok := conditionalWords[words[idx-1]]; ok {
				return conditionallyNegated
			}
		}
		return negated
	}
	return notNegated
}

// utteranceTokens is everything the vocabulary recognized in one raw query.
type utteranceTokens struct {
	colors         []string
	excludedColors []string
	patterns       []string
	materials      []string
	garment        GarmentType
	occasion       string
	season         Season
	lightweight    bool
	alternative    bool
}

func (v vocabulary) parse(rawQuery string) utteranceTokens {
	text := strings.ToLower(strings.TrimSpace(rawQuery))
	var out utteranceTokens
	if text == "" {
		return out
	}

	mask := make([]bool, len(text))
	for _, m := range v.colors.extractMasked(text, mask) {
		switch negationBefore(text, m.start) {
		case negated:
			out.excludedColors = append(out.excludedColors, m.canonical)
		case notNegated:
			out.colors = append(out.colors, m.canonical)
		}
	}
	for _, m := range v.patterns.extractMasked(text, mask) {
		out.patterns = append(out.patterns, m.canonical)
	}
	for _, m := range v.materials.extractMasked(text, mask) {
		out.materials = append(out.materials, m.canonical)
	}
	if garments := v.garments.extractMasked(text, mask); len(garments) > 0 {
		out.garment = GarmentType(garments[0].canonical)
	}

	// cue lexicons overlap each other ("sommer" is both a season and a weight cue),
	// so each one gets its own copy of the token mask.
	if occasions := v.occasions.extractMasked(text, append([]bool(nil), mask...)); len(occasions) > 0 {
		out.occasion = occasions[0].canonical
	}
	if seasons := v.seasons.extractMasked(text, append([]bool(nil), mask...)); len(seasons) > 0 {
		out.season = Season(seasons[0].canonical)
	}
	out.lightweight = len(v.lightweight.extractMasked(text, append([]bool(nil), mask...))) > 0
	for _, phrase := range alternativePhrases {
		if strings.Contains(text, phrase) {
			out.alternative = true
			break
		}
	}

	out.colors = normalizeSet(out.colors)
	out.excludedColors = normalizeSet(out.excludedColors)
	out.patterns = normalizeSet(out.patterns)
	out.materials = normalizeSet(out.materials)
	return out
}

// normalizeSet lowercases, trims, dedupes and sorts tokens. It always returns a new slice.
func normalizeSet(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// union merges any number of token sets.
func union(sets ...[]string) []string {
	var all []string
	for _, s := range sets {
		all = append(all, s...)
	}
	return normalizeSet(all)
}

// subtract removes every token of remove from values.
func subtract(values, remove []string) []string {
	if len(remove) == 0 {
		return normalizeSet(values)
	}
	drop := make(map[string]struct{}, len(remove))
	for _, r := range remove {
		drop[r] = struct{}{}
	}
	kept := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := drop[v]; !ok {
			kept = append(kept, v)
		}
	}
	return normalizeSet(kept)
}
