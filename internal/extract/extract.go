// Package extract reads Aadhaar card fields out of card images. Each
// subpackage adapts one OCR or vision backend to the Extractor interface.
package extract

import (
	"context"
	"errors"

	"github.com/vbonduro/cardscan/internal/domain"
)

// Prompt is the shared instruction given to every vision model backend.
const Prompt = `You are given two photos of an Indian Aadhaar card: the first is the front, the second is the back.
Read the card and return ONLY a JSON object with exactly these keys:
"name", "aadharNumber", "dob", "gender", "address", "pinCode", "fatherName".
Rules:
- Use null for any value that is not visible on the card.
- "aadharNumber" is the 12 digit number, formatted as "1234 5678 9012".
- "dob" is the date of birth formatted as DD/MM/YYYY.
- "gender" is Male, Female or Transgender.
- "address" is the full address from the back of the card on one line, without the PIN code.
- "pinCode" is the 6 digit PIN code from the address.
- "fatherName" is the name after S/O, D/O, C/O or W/O, if present.
Do not include any text before or after the JSON object.`

// ErrNoFields is returned when a backend answered but nothing on the card
// could be read.
var ErrNoFields = errors.New("no aadhaar fields found in images")

// Image is one card face. URL is always set; Data and MimeType are filled
// in by a Fetcher for backends that need the bytes.
type Image struct {
	URL      string
	Data     []byte
	MimeType string
}

type Extractor interface {
	Extract(ctx context.Context, front, back Image) (*domain.ExtractedRecord, error)
}

// Finish normalizes rec and rejects an empty result.
func Finish(rec *domain.ExtractedRecord) (*domain.ExtractedRecord, error) {
	if rec == nil {
		return nil, ErrNoFields
	}
	out := Normalize(*rec)
	if out.IsZero() {
		return nil, ErrNoFields
	}
	return &out, nil
}
