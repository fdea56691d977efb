package normalize

import (
	"strconv"
	"strings"
)

var smallNumbers = [...]string{
	"zero", "one", "two", "three", "four", "five", "six", "seven", "eight",
	"nine", "ten", "eleven", "twelve", "thirteen", "fourteen", "fifteen",
	"sixteen", "seventeen", "eighteen", "nineteen",
}

var tensNumbers = [...]string{
	"", "", "twenty", "thirty", "forty", "fifty", "sixty", "seventy",
	"eighty", "ninety",
}

var scaleNumbers = []struct {
	value int64
	name  string
}{
	{1_000_000_000_000, "trillion"},
	{1_000_000_000, "billion"},
	{1_000_000, "million"},
	{1_000, "thousand"},
}

// cardinalWords renders n as English cardinal words ("one hundred
// twenty-three"). Hyphenated tens, no "and".
func cardinalWords(n int64) string {
	if n < 0 {
		return "minus " + cardinalWords(-n)
	}
	if n < 20 {
		return smallNumbers[n]
	}
	if n < 100 {
		word := tensNumbers[n/10]
		if n%10 != 0 {
			word += "-" + smallNumbers[n%10]
		}
		return word
	}
	if n < 1000 {
		word := smallNumbers[n/100] + " hundred"
		if n%100 != 0 {
			word += " " + cardinalWords(n%100)
		}
		return word
	}
	for _, scale := range scaleNumbers {
		if n >= scale.value {
			word := cardinalWords(n/scale.value) + " " + scale.name
			if n%scale.value != 0 {
				word += " " + cardinalWords(n%scale.value)
			}
			return word
		}
	}
	return strconv.FormatInt(n, 10)
}

var irregularOrdinals = map[string]string{
	"one":    "first",
	"two":    "second",
	"three":  "third",
	"five":   "fifth",
	"eight":  "eighth",
	"nine":   "ninth",
	"twelve": "twelfth",
}

// ordinalWords renders n as an English ordinal ("twenty-first").
func ordinalWords(n int64) string {
	cardinal := cardinalWords(n)
	sep := " "
	idx := strings.LastIndexAny(cardinal, " -")
	last := cardinal
	if idx >= 0 {
		sep = cardinal[idx : idx+1]
		last = cardinal[idx+1:]
	}
	var ordinal string
	switch {
	case irregularOrdinals[last] != "":
		ordinal = irregularOrdinals[last]
	case strings.HasSuffix(last, "y"):
		ordinal = last[:len(last)-1] + "ieth"
	default:
		ordinal = last + "th"
	}
	if idx < 0 {
		return ordinal
	}
	return cardinal[:idx] + sep + ordinal
}

// digitWords reads a digit string one digit at a time ("four five six").
func digitWords(s string) string {
	words := make([]string, 0, len(s))
	for _, r := range s {
		if r < '0' || r > '9' {
			continue
		}
		words = append(words, smallNumbers[r-'0'])
	}
	return strings.Join(words, " ")
}

// yearWords reads a four-digit year the way it is spoken: 1984 becomes
// "nineteen eighty-four", 2005 becomes "two thousand five".
func yearWords(n int64) string {
	if n < 1100 || n > 2099 {
		return cardinalWords(n)
	}
	if n >= 2000 {
		if n == 2000 {
			return "two thousand"
		}
		if n < 2010 {
			return "two thousand " + smallNumbers[n-2000]
		}
		return "twenty " + cardinalWords(n%100)
	}
	high := n / 100
	low := n % 100
	switch {
	case low == 0:
		return cardinalWords(high) + " hundred"
	case low < 10:
		return cardinalWords(high) + " oh " + smallNumbers[low]
	default:
		return cardinalWords(high) + " " + cardinalWords(low)
	}
}

// numericWords converts a decimal string, optionally signed, with optional
// thousands separators and fractional part, into words. Anything it cannot
// parse is returned unchanged.
func numericWords(s string) string {
	// "1,234" is a grouped thousand, never a year.
	grouped := strings.Contains(s, ",")
	text := strings.ReplaceAll(s, ",", "")
	negative := strings.HasPrefix(text, "-")
	text = strings.TrimPrefix(text, "-")

	intPart := text
	fracPart := ""
	if idx := strings.IndexByte(text, '.'); idx >= 0 {
		intPart = text[:idx]
		fracPart = text[idx+1:]
	}

	n, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return s
	}

	var word string
	if fracPart == "" && !negative && !grouped && len(intPart) == 4 {
		word = yearWords(n)
	} else {
		word = cardinalWords(n)
	}
	if negative {
		word = "minus " + word
	}
	if fracPart != "" {
		word += " point " + digitWords(fracPart)
	}
	return word
}
