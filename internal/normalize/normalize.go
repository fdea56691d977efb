package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Options enables or disables individual rewrite stages. Disabling a stage
// leaves its constructs untouched; later stages still run safely on the
// un-rewritten text.
type Options struct {
	Canonicalize        bool
	StripMarkup         bool
	ExpandContractions  bool
	ExpandIPAddresses   bool
	ExpandCurrency      bool
	ExpandPercent       bool
	ExpandScientific    bool
	ExpandTime          bool
	ExpandOrdinals      bool
	ExpandUnits         bool
	ExpandFractions     bool
	ExpandDecades       bool
	ExpandPhoneNumbers  bool
	ExpandRanges        bool
	SplitModelNames     bool
	ExpandRomanNumerals bool
	ExpandNumbers       bool
	FoldAccents         bool
	NormalizePunct      bool
	Lowercase           bool
}

// DefaultOptions enables every stage except lowercasing.
func DefaultOptions() Options {
	return Options{
		Canonicalize:        true,
		StripMarkup:         true,
		ExpandContractions:  true,
		ExpandIPAddresses:   true,
		ExpandCurrency:      true,
		ExpandPercent:       true,
		ExpandScientific:    true,
		ExpandTime:          true,
		ExpandOrdinals:      true,
		ExpandUnits:         true,
		ExpandFractions:     true,
		ExpandDecades:       true,
		ExpandPhoneNumbers:  true,
		ExpandRanges:        true,
		SplitModelNames:     true,
		ExpandRomanNumerals: true,
		ExpandNumbers:       true,
		FoldAccents:         true,
		NormalizePunct:      true,
		Lowercase:           false,
	}
}

// rule is one ordered rewrite stage. Rules are not commutative; the table
// order below is the execution order.
type rule struct {
	name    string
	enabled func(Options) bool
	apply   func(string, Options) string
}

// The stage order matters: IP addresses must be expanded before generic
// decimals, phone numbers before numeric ranges.
var rules = []rule{
	{"canonicalize", func(o Options) bool { return o.Canonicalize }, applyCanonicalize},
	{"strip-markup", func(o Options) bool { return o.StripMarkup }, applyStripMarkup},
	{"contractions", func(o Options) bool { return o.ExpandContractions }, applyContractions},
	{"ip-addresses", func(o Options) bool { return o.ExpandIPAddresses }, applyIPAddresses},
	{"currency", func(o Options) bool { return o.ExpandCurrency }, applyCurrency},
	{"percent", func(o Options) bool { return o.ExpandPercent }, applyPercent},
	{"scientific", func(o Options) bool { return o.ExpandScientific }, applyScientific},
	{"time-of-day", func(o Options) bool { return o.ExpandTime }, applyTime},
	{"ordinals", func(o Options) bool { return o.ExpandOrdinals }, applyOrdinals},
	{"units", func(o Options) bool { return o.ExpandUnits }, applyUnits},
	{"fractions", func(o Options) bool { return o.ExpandFractions }, applyFractions},
	{"decades", func(o Options) bool { return o.ExpandDecades }, applyDecades},
	{"phone-numbers", func(o Options) bool { return o.ExpandPhoneNumbers }, applyPhoneNumbers},
	{"ranges", func(o Options) bool { return o.ExpandRanges }, applyRanges},
	{"model-names", func(o Options) bool { return o.SplitModelNames }, applyModelNames},
	{"roman-numerals", func(o Options) bool { return o.ExpandRomanNumerals }, applyRomanNumerals},
	{"numbers", func(o Options) bool { return o.ExpandNumbers }, applyNumbers},
	{"fold-accents", func(o Options) bool { return o.FoldAccents }, applyFoldAccents},
	{"punctuation", func(o Options) bool { return o.NormalizePunct }, applyPunctuation},
	{"lowercase", func(o Options) bool { return o.Lowercase }, applyLowercase},
}

// Normalize rewrites text into a speakable form by running the enabled
// stages in order. It is total: malformed constructs are left as-is and
// no input produces an error.
func Normalize(text string, opts Options) string {
	for _, r := range rules {
		if r.enabled(opts) {
			text = r.apply(text, opts)
		}
	}
	return collapseWhitespace(text)
}

func applyCanonicalize(text string, _ Options) string {
	text = norm.NFC.String(text)
	replacer := strings.NewReplacer(
		"‘", "'", "’", "'",
		"“", `"`, "”", `"`,
		" ", " ",
	)
	return replacer.Replace(text)
}

func applyFoldAccents(text string, _ Options) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return folded
}

func applyPunctuation(text string, _ Options) string {
	replacer := strings.NewReplacer(
		"…", "...",
		"—", ", ",
		"–", ", ",
	)
	return replacer.Replace(text)
}

func applyLowercase(text string, _ Options) string {
	return strings.ToLower(text)
}

func collapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
