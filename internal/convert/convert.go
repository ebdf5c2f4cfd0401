// Package convert holds the pure value codecs between semantic answer
// values and the textual node representation each field type uses in
// the datasets tree. Nothing here performs I/O.
package convert

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/doctorfill-dev/doctorfill/internal/schema"
)

var (
	// ErrInvalidEnum reports a value outside a field's declared code set.
	ErrInvalidEnum = errors.New("value not in enum set")

	// ErrInvalidDate reports a date that matches none of the accepted
	// input patterns.
	ErrInvalidDate = errors.New("invalid date format")

	// ErrInvalidBool reports a value that is neither truthy nor falsy.
	ErrInvalidBool = errors.New("invalid boolean value")

	// ErrInvalidDecimal reports a value that does not parse as a number.
	ErrInvalidDecimal = errors.New("invalid decimal value")
)

// Truthy/falsy vocabularies for answer normalization. The forms are
// Swiss, so French markers sit alongside the technical ones.
var (
	truthy = map[string]bool{
		"oui": true, "yes": true, "true": true, "1": true,
		"on": true, "x": true, "checked": true, "vrai": true,
	}
	falsy = map[string]bool{
		"non": true, "no": true, "false": true, "0": true,
		"off": true, "": true, "faux": true,
	}
)

// Accepted date input shapes, normalized to day.month.year on encode.
var datePatterns = []struct {
	re  *regexp.Regexp
	dmy [3]int // group indices for day, month, year
}{
	{regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{4})$`), [3]int{1, 2, 3}},
	{regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`), [3]int{1, 2, 3}},
	{regexp.MustCompile(`^(\d{1,2})-(\d{1,2})-(\d{4})$`), [3]int{1, 2, 3}},
	{regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`), [3]int{3, 2, 1}},
}

const dateLayout = "02.01.2006"

// ParseBool normalizes a raw answer string into a boolean.
func ParseBool(raw string) (bool, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if truthy[s] {
		return true, nil
	}
	if falsy[s] {
		return false, nil
	}
	return false, fmt.Errorf("%w: %q", ErrInvalidBool, raw)
}

// EncodeBool renders a boolean using the sentinel pair the field
// declares. The engine never writes free text into boolean leaves.
func EncodeBool(v bool, style schema.BoolStyle) string {
	if style == schema.BoolStyleOnOff {
		if v {
			return "On"
		}
		return "Off"
	}
	if v {
		return "1"
	}
	return "0"
}

// DecodeBool is the strict inverse of EncodeBool.
func DecodeBool(s string, style schema.BoolStyle) (bool, error) {
	if style == schema.BoolStyleOnOff {
		switch s {
		case "On":
			return true, nil
		case "Off":
			return false, nil
		}
		return false, fmt.Errorf("%w: %q (want On/Off)", ErrInvalidBool, s)
	}
	switch s {
	case "1":
		return true, nil
	case "0":
		return false, nil
	}
	return false, fmt.Errorf("%w: %q (want 1/0)", ErrInvalidBool, s)
}

// EncodeEnum checks membership in the declared code set and returns
// the canonical code.
func EncodeEnum(raw string, set []string) (string, error) {
	v := strings.TrimSpace(raw)
	for _, code := range set {
		if strings.EqualFold(v, code) {
			return code, nil
		}
	}
	return "", fmt.Errorf("%w: %q not in %v", ErrInvalidEnum, raw, set)
}

// EncodeDate normalizes an accepted date string to day.month.year.
func EncodeDate(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	for _, p := range datePatterns {
		m := p.re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		day := pad2(m[p.dmy[0]])
		month := pad2(m[p.dmy[1]])
		year := m[p.dmy[2]]
		out := day + "." + month + "." + year
		// Reject shapes like 45.13.2020 that matched textually.
		if _, err := time.Parse(dateLayout, out); err != nil {
			return "", fmt.Errorf("%w: %q", ErrInvalidDate, raw)
		}
		return out, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDate, raw)
}

// DecodeDate parses the on-disk day.month.year representation.
func DecodeDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// EncodeDecimal renders a numeric value with a fixed fraction-digit
// count: 1.31 with precision 8 becomes "1.31000000".
func EncodeDecimal(v float64, precision int) string {
	return strconv.FormatFloat(v, 'f', precision, 64)
}

// ParseDecimal normalizes a raw answer (commas allowed as decimal
// separator, units stripped) into a float.
func ParseDecimal(raw string) (float64, error) {
	s := strings.TrimSpace(strings.ReplaceAll(raw, ",", "."))
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, nil
	}
	// Keep only numeric characters and retry; answers like "1.31 kg"
	// are common model output.
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	if v, err := strconv.ParseFloat(b.String(), 64); err == nil {
		return v, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidDecimal, raw)
}

// DecodeDecimal parses the fixed-width representation back to the
// canonical numeric value; trailing zeros disappear in the float.
func DecodeDecimal(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDecimal, s)
	}
	return v, nil
}

// WordCount counts whitespace-separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// SplitWords splits s after max words. tail is "" when s fits.
func SplitWords(s string, max int) (head, tail string) {
	words := strings.Fields(s)
	if max <= 0 || len(words) <= max {
		return strings.TrimSpace(s), ""
	}
	return strings.Join(words[:max], " "), strings.Join(words[max:], " ")
}

// EncodeScalar dispatches on the field type for single-value fields.
// Repeat and block fields are composed by the engine out of these
// scalar encodings.
func EncodeScalar(spec schema.FieldSpec, raw string) (string, error) {
	switch spec.Type {
	case schema.FieldTypeBoolean:
		v, err := ParseBool(raw)
		if err != nil {
			return "", err
		}
		return EncodeBool(v, spec.EffectiveBoolStyle()), nil
	case schema.FieldTypeEnum:
		return EncodeEnum(raw, spec.Enum)
	case schema.FieldTypeDate:
		return EncodeDate(raw)
	case schema.FieldTypeDecimal:
		v, err := ParseDecimal(raw)
		if err != nil {
			return "", err
		}
		return EncodeDecimal(v, spec.EffectivePrecision()), nil
	default:
		return strings.TrimSpace(raw), nil
	}
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}
