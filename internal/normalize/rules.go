package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	htmlTagRe = regexp.MustCompile(`<[^<>]+>`)
	urlRe     = regexp.MustCompile(`(?i)\b(?:https?://|www\.)[^\s<>"']+`)
	emailRe   = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)

	ipRe         = regexp.MustCompile(`\b(\d{1,3})\.(\d{1,3})\.(\d{1,3})\.(\d{1,3})\b`)
	currencyRe   = regexp.MustCompile(`([$\x{00a3}\x{20ac}\x{00a5}])\s?(\d+(?:,\d{3})*)(?:\.(\d{2})\b)?`)
	percentRe    = regexp.MustCompile(`(\d+(?:\.\d+)?)\s?%`)
	scientificRe = regexp.MustCompile(`\b(\d+(?:\.\d+)?)[eE]([+-]?\d+)\b`)
	timeRe       = regexp.MustCompile(`\b(\d{1,2}):(\d{2})(?:\s?([AaPp])(?:\.[Mm]\.?|[Mm]\b))?`)
	ordinalRe    = regexp.MustCompile(`\b(\d+)(st|nd|rd|th)\b`)
	unitRe       = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s?(km|cm|mm|kg|mg|lbs|lb|oz|ft|mi|ml|kb|mb|gb|tb|ghz|mhz|khz|hz|mph|kph|ms)\b`)
	fractionRe   = regexp.MustCompile(`\b(\d+)/(\d+)\b`)
	decadeRe     = regexp.MustCompile(`\b(\d{2})?(\d)0s\b`)
	phoneRe      = regexp.MustCompile(`\b(?:\+?1[-. ])?(?:\((\d{3})\)\s?|(\d{3})[-. ])(\d{3})[-. ](\d{4})\b`)
	rangeRe      = regexp.MustCompile(`\b(\d+)\s?-\s?(\d+)\b`)
	modelNameRe  = regexp.MustCompile(`\b([A-Za-z]{2,})-(\d+)\b`)
	romanRe      = regexp.MustCompile(`\b(Chapter|Part|Section|Act|Volume|Book|Phase|Episode|World War)\s+([IVXLCDM]+)\b`)
	numberRe     = regexp.MustCompile(`-?\d+(?:,\d{3})*(?:\.\d+)?`)
)

func applyStripMarkup(text string, _ Options) string {
	text = htmlTagRe.ReplaceAllString(text, " ")
	text = urlRe.ReplaceAllString(text, " ")
	return emailRe.ReplaceAllString(text, " ")
}

// Specific forms come first so the replacer prefers them over shorter
// overlapping entries ("she's" before "he's").
var contractionPairs = []struct{ from, to string }{
	{"can't", "cannot"},
	{"won't", "will not"},
	{"shan't", "shall not"},
	{"don't", "do not"},
	{"doesn't", "does not"},
	{"didn't", "did not"},
	{"couldn't", "could not"},
	{"wouldn't", "would not"},
	{"shouldn't", "should not"},
	{"mustn't", "must not"},
	{"needn't", "need not"},
	{"isn't", "is not"},
	{"aren't", "are not"},
	{"wasn't", "was not"},
	{"weren't", "were not"},
	{"hasn't", "has not"},
	{"haven't", "have not"},
	{"hadn't", "had not"},
	{"she's", "she is"},
	{"he's", "he is"},
	{"it's", "it is"},
	{"that's", "that is"},
	{"there's", "there is"},
	{"what's", "what is"},
	{"who's", "who is"},
	{"let's", "let us"},
	{"i'm", "i am"},
	{"i've", "i have"},
	{"i'll", "i will"},
	{"i'd", "i would"},
	{"you're", "you are"},
	{"we're", "we are"},
	{"they're", "they are"},
	{"you've", "you have"},
	{"we've", "we have"},
	{"they've", "they have"},
	{"you'll", "you will"},
	{"we'll", "we will"},
	{"they'll", "they will"},
}

var contractionReplacer = buildContractionReplacer()

func buildContractionReplacer() *strings.Replacer {
	args := make([]string, 0, len(contractionPairs)*4)
	for _, p := range contractionPairs {
		args = append(args, capitalize(p.from), capitalize(p.to))
		args = append(args, p.from, p.to)
	}
	return strings.NewReplacer(args...)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func applyContractions(text string, _ Options) string {
	return contractionReplacer.Replace(text)
}

func applyIPAddresses(text string, _ Options) string {
	return ipRe.ReplaceAllStringFunc(text, func(match string) string {
		groups := ipRe.FindStringSubmatch(match)
		words := make([]string, 0, 4)
		for _, octet := range groups[1:] {
			n, err := strconv.ParseInt(octet, 10, 64)
			if err != nil || n > 255 {
				return match
			}
			words = append(words, cardinalWords(n))
		}
		return strings.Join(words, " dot ")
	})
}

var currencyNames = map[string]struct{ unit, units, cent, cents string }{
	"$":      {"dollar", "dollars", "cent", "cents"},
	"£": {"pound", "pounds", "penny", "pence"},
	"€": {"euro", "euros", "cent", "cents"},
	"¥": {"yen", "yen", "sen", "sen"},
}

func applyCurrency(text string, _ Options) string {
	return currencyRe.ReplaceAllStringFunc(text, func(match string) string {
		groups := currencyRe.FindStringSubmatch(match)
		names, ok := currencyNames[groups[1]]
		if !ok {
			return match
		}
		whole, err := strconv.ParseInt(strings.ReplaceAll(groups[2], ",", ""), 10, 64)
		if err != nil {
			return match
		}
		var parts []string
		if whole > 0 || groups[3] == "" {
			unit := names.units
			if whole == 1 {
				unit = names.unit
			}
			parts = append(parts, cardinalWords(whole)+" "+unit)
		}
		if groups[3] != "" {
			cents, err := strconv.ParseInt(groups[3], 10, 64)
			if err != nil {
				return match
			}
			if cents > 0 {
				unit := names.cents
				if cents == 1 {
					unit = names.cent
				}
				parts = append(parts, cardinalWords(cents)+" "+unit)
			}
		}
		if len(parts) == 0 {
			return cardinalWords(0) + " " + names.units
		}
		return strings.Join(parts, " and ")
	})
}

func applyPercent(text string, _ Options) string {
	return percentRe.ReplaceAllStringFunc(text, func(match string) string {
		groups := percentRe.FindStringSubmatch(match)
		return numericWords(groups[1]) + " percent"
	})
}

func applyScientific(text string, _ Options) string {
	return scientificRe.ReplaceAllStringFunc(text, func(match string) string {
		groups := scientificRe.FindStringSubmatch(match)
		exp := groups[2]
		prefix := ""
		if strings.HasPrefix(exp, "-") {
			prefix = "minus "
			exp = exp[1:]
		}
		exp = strings.TrimPrefix(exp, "+")
		n, err := strconv.ParseInt(exp, 10, 64)
		if err != nil {
			return match
		}
		return numericWords(groups[1]) + " times ten to the power of " + prefix + cardinalWords(n)
	})
}

func applyTime(text string, _ Options) string {
	return timeRe.ReplaceAllStringFunc(text, func(match string) string {
		groups := timeRe.FindStringSubmatch(match)
		hour, err := strconv.ParseInt(groups[1], 10, 64)
		if err != nil || hour > 23 {
			return match
		}
		minute, err := strconv.ParseInt(groups[2], 10, 64)
		if err != nil || minute > 59 {
			return match
		}
		var spoken string
		switch {
		case minute == 0:
			spoken = cardinalWords(hour) + " o'clock"
		case minute < 10:
			spoken = cardinalWords(hour) + " oh " + cardinalWords(minute)
		default:
			spoken = cardinalWords(hour) + " " + cardinalWords(minute)
		}
		if groups[3] != "" {
			if strings.EqualFold(groups[3], "a") {
				spoken += " a m"
			} else {
				spoken += " p m"
			}
		}
		return spoken
	})
}

func applyOrdinals(text string, _ Options) string {
	return ordinalRe.ReplaceAllStringFunc(text, func(match string) string {
		groups := ordinalRe.FindStringSubmatch(match)
		n, err := strconv.ParseInt(groups[1], 10, 64)
		if err != nil {
			return match
		}
		return ordinalWords(n)
	})
}

var unitNames = map[string]struct{ singular, plural string }{
	"km":  {"kilometer", "kilometers"},
	"cm":  {"centimeter", "centimeters"},
	"mm":  {"millimeter", "millimeters"},
	"kg":  {"kilogram", "kilograms"},
	"mg":  {"milligram", "milligrams"},
	"lb":  {"pound", "pounds"},
	"lbs": {"pounds", "pounds"},
	"oz":  {"ounce", "ounces"},
	"ft":  {"foot", "feet"},
	"mi":  {"mile", "miles"},
	"ml":  {"milliliter", "milliliters"},
	"kb":  {"kilobyte", "kilobytes"},
	"mb":  {"megabyte", "megabytes"},
	"gb":  {"gigabyte", "gigabytes"},
	"tb":  {"terabyte", "terabytes"},
	"hz":  {"hertz", "hertz"},
	"khz": {"kilohertz", "kilohertz"},
	"mhz": {"megahertz", "megahertz"},
	"ghz": {"gigahertz", "gigahertz"},
	"mph": {"miles per hour", "miles per hour"},
	"kph": {"kilometers per hour", "kilometers per hour"},
	"ms":  {"millisecond", "milliseconds"},
}

func applyUnits(text string, _ Options) string {
	return unitRe.ReplaceAllStringFunc(text, func(match string) string {
		groups := unitRe.FindStringSubmatch(match)
		names, ok := unitNames[strings.ToLower(groups[2])]
		if !ok {
			return match
		}
		name := names.plural
		if groups[1] == "1" {
			name = names.singular
		}
		return numericWords(groups[1]) + " " + name
	})
}

var fractionNames = map[string]string{
	"1/2": "one half",
	"1/3": "one third",
	"2/3": "two thirds",
	"1/4": "one quarter",
	"3/4": "three quarters",
}

func applyFractions(text string, _ Options) string {
	return fractionRe.ReplaceAllStringFunc(text, func(match string) string {
		if name, ok := fractionNames[match]; ok {
			return name
		}
		groups := fractionRe.FindStringSubmatch(match)
		num, err1 := strconv.ParseInt(groups[1], 10, 64)
		den, err2 := strconv.ParseInt(groups[2], 10, 64)
		if err1 != nil || err2 != nil || den == 0 {
			return match
		}
		return cardinalWords(num) + " over " + cardinalWords(den)
	})
}

var decadeNames = [...]string{
	"hundreds", "tens", "twenties", "thirties", "forties",
	"fifties", "sixties", "seventies", "eighties", "nineties",
}

func applyDecades(text string, _ Options) string {
	return decadeRe.ReplaceAllStringFunc(text, func(match string) string {
		groups := decadeRe.FindStringSubmatch(match)
		digit, err := strconv.ParseInt(groups[2], 10, 64)
		if err != nil {
			return match
		}
		decade := decadeNames[digit]
		if groups[1] == "" {
			if digit == 0 {
				return match
			}
			return decade
		}
		century, err := strconv.ParseInt(groups[1], 10, 64)
		if err != nil {
			return match
		}
		if century == 20 && digit == 0 {
			return "two thousands"
		}
		return cardinalWords(century) + " " + decade
	})
}

func applyPhoneNumbers(text string, _ Options) string {
	return phoneRe.ReplaceAllStringFunc(text, func(match string) string {
		groups := phoneRe.FindStringSubmatch(match)
		area := groups[1]
		if area == "" {
			area = groups[2]
		}
		spoken := make([]string, 0, 3)
		for _, group := range []string{area, groups[3], groups[4]} {
			spoken = append(spoken, digitWords(group))
		}
		return strings.Join(spoken, ", ")
	})
}

func applyRanges(text string, _ Options) string {
	return rangeRe.ReplaceAllStringFunc(text, func(match string) string {
		groups := rangeRe.FindStringSubmatch(match)
		return groups[1] + " to " + groups[2]
	})
}

func applyModelNames(text string, _ Options) string {
	return modelNameRe.ReplaceAllString(text, "$1 $2")
}

func applyRomanNumerals(text string, _ Options) string {
	return romanRe.ReplaceAllStringFunc(text, func(match string) string {
		groups := romanRe.FindStringSubmatch(match)
		value := romanValue(groups[2])
		if value == 0 {
			return match
		}
		return groups[1] + " " + cardinalWords(value)
	})
}

var romanDigits = map[byte]int64{
	'I': 1, 'V': 5, 'X': 10, 'L': 50, 'C': 100, 'D': 500, 'M': 1000,
}

func romanValue(s string) int64 {
	var total, prev int64
	for i := len(s) - 1; i >= 0; i-- {
		v, ok := romanDigits[s[i]]
		if !ok {
			return 0
		}
		if v < prev {
			total -= v
		} else {
			total += v
			prev = v
		}
	}
	return total
}

func applyNumbers(text string, _ Options) string {
	return numberRe.ReplaceAllStringFunc(text, func(match string) string {
		return numericWords(match)
	})
}
