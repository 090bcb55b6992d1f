package extract

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/vbonduro/cardscan/internal/domain"
)

var (
	digitsOnly   = regexp.MustCompile(`\D`)
	pinPattern   = regexp.MustCompile(`\b(\d{6})\b`)
	datePattern  = regexp.MustCompile(`^(\d{1,2})[./\- ](\d{1,2})[./\- ](\d{4})$`)
	spacePattern = regexp.MustCompile(`\s+`)
)

// Normalize tidies the values a backend returned: whitespace collapsed,
// the Aadhaar number grouped in fours, dates as DD/MM/YYYY and a PIN code
// recovered from the address when missing.
func Normalize(rec domain.ExtractedRecord) domain.ExtractedRecord {
	out := domain.ExtractedRecord{
		Name:         cleanString(rec.Name),
		AadharNumber: formatAadhaar(cleanString(rec.AadharNumber)),
		DOB:          formatDate(cleanString(rec.DOB)),
		Gender:       formatGender(cleanString(rec.Gender)),
		Address:      cleanString(rec.Address),
		FatherName:   cleanString(rec.FatherName),
		PinCode:      digitsOnly.ReplaceAllString(rec.PinCode, ""),
	}
	if len(out.PinCode) != 6 {
		out.PinCode = ""
	}
	if out.PinCode == "" && out.Address != nil {
		if m := pinPattern.FindAllStringSubmatch(*out.Address, -1); len(m) > 0 {
			out.PinCode = m[len(m)-1][1]
		}
	}
	return out
}

func cleanString(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(spacePattern.ReplaceAllString(*s, " "))
	v = strings.Trim(v, ",;:")
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, "null") || strings.EqualFold(v, "n/a") {
		return nil
	}
	return &v
}

func formatAadhaar(s *string) *string {
	if s == nil {
		return nil
	}
	d := digitsOnly.ReplaceAllString(*s, "")
	if len(d) != 12 {
		return s
	}
	v := d[0:4] + " " + d[4:8] + " " + d[8:12]
	return &v
}

func formatDate(s *string) *string {
	if s == nil {
		return nil
	}
	m := datePattern.FindStringSubmatch(*s)
	if m == nil {
		return s
	}
	v := pad2(m[1]) + "/" + pad2(m[2]) + "/" + m[3]
	return &v
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

func formatGender(s *string) *string {
	if s == nil {
		return nil
	}
	var v string
	switch strings.ToLower(*s) {
	case "m", "male", "पुरुष":
		v = "Male"
	case "f", "female", "महिला":
		v = "Female"
	case "t", "transgender":
		v = "Transgender"
	default:
		r := []rune(strings.ToLower(*s))
		r[0] = unicode.ToUpper(r[0])
		v = string(r)
	}
	return &v
}
