package extract

import (
	"regexp"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/vbonduro/cardscan/internal/domain"
)

var (
	aadhaarPattern  = regexp.MustCompile(`\b(\d{4}\s?\d{4}\s?\d{4})\b`)
	dobPattern      = regexp.MustCompile(`(\d{1,2}[/\-.]\d{1,2}[/\-.]\d{4})`)
	yobPattern      = regexp.MustCompile(`(?i)year\s*of\s*birth\s*[:\-]?\s*(\d{4})`)
	genderPattern   = regexp.MustCompile(`(?i)\b(male|female|transgender)\b`)
	relationPattern = regexp.MustCompile(`(?i)\b[SDCW]\s*/\s*O\s*[:\-]?\s*([^,\n]+)`)
	addressLabel    = regexp.MustCompile(`(?i)^\s*add?re?ss?\s*[:\-]\s*`)
)

// boilerplate lines printed on every card. OCR output garbles them, so
// they are matched by similarity rather than equality.
var boilerplate = []string{
	"government of india",
	"unique identification authority of india",
	"aadhaar",
	"mera aadhaar meri pehchan",
	"help@uidai.gov.in",
	"www.uidai.gov.in",
	"enrolment no",
	"vid",
}

const boilerplateThreshold = 0.85

// ParseText pulls card fields out of plain OCR text of the front and back
// faces, for backends that return text rather than structured fields.
func ParseText(front, back string) *domain.ExtractedRecord {
	rec := &domain.ExtractedRecord{}
	frontLines := lines(front)

	if m := aadhaarPattern.FindStringSubmatch(front + "\n" + back); m != nil {
		rec.AadharNumber = domain.StringPtr(m[1])
	}

	dobLine := -1
	for i, l := range frontLines {
		if m := dobPattern.FindStringSubmatch(l); m != nil {
			rec.DOB = domain.StringPtr(m[1])
			dobLine = i
			break
		}
		if m := yobPattern.FindStringSubmatch(l); m != nil {
			rec.DOB = domain.StringPtr(m[1])
			dobLine = i
			break
		}
	}

	if m := genderPattern.FindStringSubmatch(front); m != nil {
		rec.Gender = domain.StringPtr(m[1])
	}

	// The holder's name is printed directly above the date of birth.
	for i := dobLine - 1; i >= 0; i-- {
		if l := frontLines[i]; isNameLine(l) {
			rec.Name = domain.StringPtr(l)
			break
		}
	}

	if m := relationPattern.FindStringSubmatch(back); m != nil {
		rec.FatherName = domain.StringPtr(m[1])
	} else if m := relationPattern.FindStringSubmatch(front); m != nil {
		rec.FatherName = domain.StringPtr(m[1])
	}

	if addr := parseAddress(lines(back)); addr != "" {
		if m := pinPattern.FindAllStringSubmatch(addr, -1); len(m) > 0 {
			rec.PinCode = m[len(m)-1][1]
			addr = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(strings.Replace(addr, rec.PinCode, "", 1)), "-"))
		}
		rec.Address = domain.StringPtr(addr)
	}
	return rec
}

// parseAddress joins the lines following the "Address" label up to and
// including the line carrying the PIN code.
func parseAddress(backLines []string) string {
	start := -1
	for i, l := range backLines {
		if addressLabel.MatchString(l) {
			start = i
			break
		}
	}
	if start == -1 {
		return ""
	}

	var parts []string
	for i := start; i < len(backLines); i++ {
		l := backLines[i]
		if i == start {
			l = addressLabel.ReplaceAllString(l, "")
		}
		if isBoilerplate(l) || aadhaarPattern.MatchString(l) {
			break
		}
		if l = strings.TrimRight(l, ", "); l != "" {
			parts = append(parts, l)
		}
		if pinPattern.MatchString(l) {
			break
		}
	}
	return strings.Join(parts, ", ")
}

func isNameLine(l string) bool {
	if l == "" || isBoilerplate(l) {
		return false
	}
	if dobPattern.MatchString(l) || genderPattern.MatchString(l) || aadhaarPattern.MatchString(l) {
		return false
	}
	letters := 0
	for _, r := range l {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
			letters++
		case r == ' ' || r == '.':
		default:
			return false
		}
	}
	return letters >= 2
}

func isBoilerplate(l string) bool {
	lower := strings.ToLower(strings.TrimSpace(l))
	if lower == "" {
		return false
	}
	lev := metrics.NewLevenshtein()
	for _, b := range boilerplate {
		if strutil.Similarity(lower, b, lev) >= boilerplateThreshold {
			return true
		}
	}
	return false
}

func lines(s string) []string {
	raw := strings.Split(s, "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
