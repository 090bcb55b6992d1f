package extract

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/vbonduro/cardscan/internal/domain"
)

// keyMatchThreshold is the minimum Jaro-Winkler similarity for a model's
// key to be accepted as one of ours.
const keyMatchThreshold = 0.88

var canonicalKeys = []string{"name", "aadharnumber", "dob", "gender", "address", "pincode", "fathername"}

// keyAliases maps spellings models commonly use that are too far from the
// canonical key for fuzzy matching.
var keyAliases = map[string]string{
	"dateofbirth":   "dob",
	"birthdate":     "dob",
	"uid":           "aadharnumber",
	"uidnumber":     "aadharnumber",
	"postalcode":    "pincode",
	"zip":           "pincode",
	"zipcode":       "pincode",
	"fullname":      "name",
	"guardianname":  "fathername",
	"relativename":  "fathername",
	"careof":        "fathername",
	"sex":           "gender",
	"addressline":   "address",
	"fulladdress":   "address",
	"aadhaarnumber": "aadharnumber",
	"aadhaarno":     "aadharnumber",
	"aadharno":      "aadharnumber",
}

// ParseJSON reads the JSON object a model returned. Code fences and text
// around the object are tolerated, and keys are matched loosely so that
// "aadhaar_number" or "Date of Birth" still land in the right field.
func ParseJSON(raw string) (*domain.ExtractedRecord, error) {
	body := stripCodeFences(raw)
	if obj, ok := extractBalanced(body, '{', '}'); ok {
		body = obj
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return nil, fmt.Errorf("failed to parse model response: %w", err)
	}

	// Some models wrap the object, e.g. {"data": {...}}.
	if len(fields) == 1 {
		for _, v := range fields {
			if inner, ok := v.(map[string]any); ok {
				fields = inner
			}
		}
	}

	rec := &domain.ExtractedRecord{}
	for canonical, raw := range assignKeys(fields) {
		val := stringValue(fields[raw])
		switch canonical {
		case "name":
			rec.Name = val
		case "aadharnumber":
			rec.AadharNumber = val
		case "dob":
			rec.DOB = val
		case "gender":
			rec.Gender = val
		case "address":
			rec.Address = val
		case "pincode":
			rec.PinCode = domain.Deref(val)
		case "fathername":
			rec.FatherName = val
		}
	}
	return rec, nil
}

// assignKeys picks, for each canonical key, the model key that fills it.
// Exact and alias matches win outright; fuzzy matches only fill what is
// still unset, highest score first. Keys are visited in sorted order so
// the result never depends on map iteration.
func assignKeys(fields map[string]any) map[string]string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	assigned := make(map[string]string, len(canonicalKeys))
	used := make(map[string]bool, len(keys))
	for _, k := range keys {
		if c := exactKey(k); c != "" {
			if _, taken := assigned[c]; !taken {
				assigned[c] = k
				used[k] = true
			}
		}
	}

	bestScore := map[string]float64{}
	for _, k := range keys {
		if used[k] {
			continue
		}
		c, score := fuzzyKey(k)
		if c == "" {
			continue
		}
		if raw, taken := assigned[c]; taken && used[raw] {
			continue
		}
		if score > bestScore[c] {
			assigned[c] = k
			bestScore[c] = score
		}
	}
	return assigned
}

// matchKey maps a model's key onto a canonical key, or "" if none is close.
func matchKey(key string) string {
	if c := exactKey(key); c != "" {
		return c
	}
	c, _ := fuzzyKey(key)
	return c
}

func exactKey(key string) string {
	k := squash(key)
	if alias, ok := keyAliases[k]; ok {
		return alias
	}
	if slices.Contains(canonicalKeys, k) {
		return k
	}
	return ""
}

// fuzzyKey returns the closest canonical key and its Jaro-Winkler score,
// or "" when nothing reaches keyMatchThreshold.
func fuzzyKey(key string) (string, float64) {
	k := squash(key)
	best, bestScore := "", 0.0
	jw := metrics.NewJaroWinkler()
	for _, c := range canonicalKeys {
		if score := strutil.Similarity(k, c, jw); score > bestScore {
			best, bestScore = c, score
		}
	}
	if bestScore >= keyMatchThreshold {
		return best, bestScore
	}
	return "", 0
}

// squash lowercases s and drops everything but letters and digits.
func squash(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func stringValue(v any) *string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return &t
	case float64:
		s := fmt.Sprintf("%.0f", t)
		return &s
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return nil
		}
		s := string(b)
		return &s
	}
}

// stripCodeFences removes surrounding Markdown code fences like ```json ... ```.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i != -1 {
		if tag := strings.TrimSpace(s[:i]); len(tag) < 20 && !strings.Contains(tag, "{") {
			s = s[i+1:]
		}
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// extractBalanced returns the first balanced open...close span, skipping
// brackets inside JSON strings.
func extractBalanced(s string, open, close byte) (string, bool) {
	start := strings.IndexByte(s, open)
	if start == -1 {
		return "", false
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
