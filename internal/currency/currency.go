// Package currency implements the masked price input: digits typed by the
// user are read as integer cents and rendered with two decimals in the
// grouping of a locale.
package currency

import (
	"errors"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// ErrOverflow is returned when the digits do not fit in int64 cents.
var ErrOverflow = errors.New("currency: value out of range")

// DefaultLocale is the locale used by the package level helpers.
var DefaultLocale = language.BrazilianPortuguese

var defaultFormatter = NewFormatter(DefaultLocale)

// Formatter renders cents for a fixed locale.
type Formatter struct {
	printer *message.Printer
	tag     language.Tag
}

// NewFormatter returns a Formatter for tag.
func NewFormatter(tag language.Tag) *Formatter {
	return &Formatter{printer: message.NewPrinter(tag), tag: tag}
}

// ParseLocale resolves a BCP 47 tag such as "pt-BR", defaulting to
// DefaultLocale when it cannot be parsed.
func ParseLocale(s string) language.Tag {
	tag, err := language.Parse(s)
	if err != nil {
		return DefaultLocale
	}
	return tag
}

// Locale returns the formatter locale.
func (f *Formatter) Locale() language.Tag {
	return f.tag
}

// Format renders cents with exactly two decimals.
func (f *Formatter) Format(cents int64) string {
	negative := cents < 0
	if negative {
		cents = -cents
	}
	whole := cents / 100
	frac := cents % 100
	// Whole and fraction are formatted apart so values beyond float64
	// precision keep every digit.
	out := f.printer.Sprint(number.Decimal(whole)) + f.decimalSeparator() + twoDigits(frac)
	if negative {
		return "-" + out
	}
	return out
}

// Mask strips every non-digit from raw, reads the rest as cents and formats
// it. Only when the digits overflow int64 are the leading ones dropped.
func (f *Formatter) Mask(raw string) string {
	digits := Digits(raw)
	cents, err := parseDigits(digits)
	for errors.Is(err, ErrOverflow) {
		digits = digits[1:]
		cents, err = parseDigits(digits)
	}
	return f.Format(cents)
}

func (f *Formatter) decimalSeparator() string {
	// One-and-a-half rendered by the locale exposes its decimal separator.
	s := f.printer.Sprint(number.Decimal(1.5, number.Scale(1)))
	for _, r := range s {
		if r < '0' || r > '9' {
			return string(r)
		}
	}
	return "."
}

// Mask formats raw with the default locale.
func Mask(raw string) string {
	return defaultFormatter.Mask(raw)
}

// Format renders cents with the default locale.
func Format(cents int64) string {
	return defaultFormatter.Format(cents)
}

// Digits returns only the ASCII digits of s.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// Cents recovers integer cents from a masked string by dropping every
// non-digit.
func Cents(masked string) (int64, error) {
	return parseDigits(Digits(masked))
}

// Parse recovers the numeric price of a masked string.
func Parse(masked string) (float64, error) {
	cents, err := Cents(masked)
	if err != nil {
		return 0, err
	}
	return float64(cents) / 100, nil
}

func parseDigits(digits string) (int64, error) {
	if digits == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, ErrOverflow
	}
	return v, nil
}

func twoDigits(v int64) string {
	if v < 10 {
		return "0" + strconv.FormatInt(v, 10)
	}
	return strconv.FormatInt(v, 10)
}
