package domain

import "time"

// ExtractedRecord holds the fields read off an Aadhaar card. Every field is
// nullable except PinCode, which uses "" when the card shows none.
type ExtractedRecord struct {
	Name         *string `json:"name"`
	AadharNumber *string `json:"aadharNumber"`
	DOB          *string `json:"dob"`
	Gender       *string `json:"gender"`
	Address      *string `json:"address"`
	PinCode      string  `json:"pinCode"`
	FatherName   *string `json:"fatherName"`
}

// Clone returns a deep copy so callers can mutate fields without aliasing.
func (r ExtractedRecord) Clone() ExtractedRecord {
	return ExtractedRecord{
		Name:         cloneString(r.Name),
		AadharNumber: cloneString(r.AadharNumber),
		DOB:          cloneString(r.DOB),
		Gender:       cloneString(r.Gender),
		Address:      cloneString(r.Address),
		PinCode:      r.PinCode,
		FatherName:   cloneString(r.FatherName),
	}
}

// IsZero reports whether no field carries a value.
func (r ExtractedRecord) IsZero() bool {
	return r.Name == nil && r.AadharNumber == nil && r.DOB == nil && r.Gender == nil &&
		r.Address == nil && r.FatherName == nil && r.PinCode == ""
}

// SavedRecord is an ExtractedRecord persisted by the record API.
type SavedRecord struct {
	ExtractedRecord
	ID        string    `json:"_id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// Deref returns the pointed-to string or "" for nil.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
