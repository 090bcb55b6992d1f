package ocrapi

import "github.com/vbonduro/cardscan/internal/domain"

// Wire types shared by the client and the reference API server. Field
// names, including the "Adhaar" spelling, are fixed by the deployed API.

type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type ExtractRequest struct {
	FrontImage string `json:"frontImage"`
	BackImage  string `json:"backImage"`
}

type ExtractResponse struct {
	Success    bool                    `json:"success"`
	Message    string                  `json:"message"`
	ParsedData *domain.ExtractedRecord `json:"parsedData,omitempty"`
}

type SaveResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Record  *domain.SavedRecord `json:"Adhaar,omitempty"`
}

// RecordID returns the id of the saved record, or "" when the server
// answered without one.
func (r *SaveResponse) RecordID() string {
	if r == nil || r.Record == nil {
		return ""
	}
	return r.Record.ID
}

type ListResponse struct {
	Success bool                 `json:"success"`
	Message string               `json:"message"`
	Records []domain.SavedRecord `json:"AdhaarData"`
	Count   int                  `json:"count"`
}

type DeleteAssetRequest struct {
	PublicID string `json:"publicId"`
}
