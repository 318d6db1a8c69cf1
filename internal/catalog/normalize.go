package catalog

import (
	"encoding/json"
	"fmt"
	"math/big"
	"mime"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"wildlifecore/pkg/domain"
)

// MaxImageBytes bounds a single uploaded image.
const MaxImageBytes = 10 << 20

var (
	numberPattern  = regexp.MustCompile(`^-?(\d+(\.\d*)?|\.\d+)$`)
	numberStripper = strings.NewReplacer(",", "", " ", "")
)

// NormalizeNumber returns the canonical form of a NUMBER value. Commas and
// spaces are ignored; the result always has an integer and a fraction part
// with redundant zeros removed, so mathematically equal inputs compare equal.
func NormalizeNumber(raw string) (string, error) {
	s := numberStripper.Replace(raw)
	if !numberPattern.MatchString(s) {
		return "", fmt.Errorf("%q is not a number", raw)
	}
	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, fracPart, _ := strings.Cut(s, ".")
	intPart = strings.TrimLeft(intPart, "0")
	if intPart == "" {
		intPart = "0"
	}
	fracPart = strings.TrimRight(fracPart, "0")
	if fracPart == "" {
		fracPart = "0"
	}
	canonical := intPart + "." + fracPart
	if negative && canonical != "0.0" {
		canonical = "-" + canonical
	}
	return canonical, nil
}

// numberValue parses a canonical NUMBER value for exact comparison.
func numberValue(canonical string) (*big.Rat, bool) {
	return new(big.Rat).SetString(canonical)
}

// ParseMonth accepts 1-12 or an English month name or three letter
// abbreviation in any case.
func ParseMonth(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 || n > 12 {
			return 0, fmt.Errorf("month %d out of range", n)
		}
		return n, nil
	}
	for m := time.January; m <= time.December; m++ {
		name := m.String()
		if strings.EqualFold(s, name) || strings.EqualFold(s, name[:3]) {
			return int(m), nil
		}
	}
	return 0, fmt.Errorf("%q is not a month", raw)
}

// ParseMonthRange parses "begin-end".
func ParseMonthRange(raw string) (domain.MonthRange, error) {
	beginRaw, endRaw, ok := strings.Cut(raw, "-")
	if !ok {
		return domain.MonthRange{}, fmt.Errorf("%q is not a begin-end month range", raw)
	}
	begin, err := ParseMonth(beginRaw)
	if err != nil {
		return domain.MonthRange{}, err
	}
	end, err := ParseMonth(endRaw)
	if err != nil {
		return domain.MonthRange{}, err
	}
	return domain.MonthRange{Begin: begin, End: end}, nil
}

// checkUpload enforces the image size and MIME constraints and returns the
// effective content type.
func checkUpload(up Upload) (string, error) {
	if len(up.Data) > MaxImageBytes {
		return "", fmt.Errorf("upload %q exceeds 10 MiB", up.Filename)
	}
	contentType := up.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(up.Data)
	}
	// Media types are case-insensitive; ParseMediaType lower-cases them.
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return "", fmt.Errorf("upload %q is not an image", up.Filename)
	}
	return mime.FormatMediaType(mediaType, params), nil
}

// normalizeValue validates raw against f and returns the value to store.
// IMAGE fields never arrive here; they carry uploads instead.
func normalizeValue(f domain.Field, raw string) (domain.FieldValue, error) {
	v := domain.FieldValue{FieldID: f.ID}
	switch f.Type {
	case domain.FieldText:
		v.Value = raw
	case domain.FieldNumber:
		canonical, err := NormalizeNumber(raw)
		if err != nil {
			return v, err
		}
		v.Value = canonical
	case domain.FieldEnum:
		if !f.HasOption(raw) {
			return v, fmt.Errorf("%q is not an option of %s", raw, f.Name)
		}
		v.Value = raw
	case domain.FieldMonthRange:
		months, err := ParseMonthRange(raw)
		if err != nil {
			return v, err
		}
		v.Value = months.String()
		v.Months = &months
	case domain.FieldImage:
		return v, fmt.Errorf("field %s expects a file", f.Name)
	default:
		return v, fmt.Errorf("field %s has unsupported type %s", f.Name, f.Type)
	}
	return v, nil
}

// typedValue renders a stored value for output.
func typedValue(f domain.Field, v domain.FieldValue) TypedValue {
	out := TypedValue{FieldID: f.ID, Field: f.Name, Type: f.Type, Value: v.Value}
	switch f.Type {
	case domain.FieldNumber:
		out.Number = json.Number(v.Value)
	case domain.FieldMonthRange:
		months := v.Months
		if months == nil {
			if parsed, err := ParseMonthRange(v.Value); err == nil {
				months = &parsed
			}
		}
		if months != nil {
			cpy := *months
			out.Months = &cpy
		}
	case domain.FieldText, domain.FieldEnum, domain.FieldImage:
	}
	return out
}

func problemReason(f domain.Field) string {
	switch f.Type {
	case domain.FieldNumber:
		return "invalid number"
	case domain.FieldEnum:
		return "invalid enum value"
	case domain.FieldMonthRange:
		return "invalid month range"
	default:
		return "invalid value"
	}
}
