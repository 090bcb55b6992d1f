package service

import (
	"errors"
	"fmt"

	"github.com/vbonduro/cardscan/internal/ocrapi"
)

// Kind classifies where a flow operation failed.
type Kind string

const (
	KindValidation Kind = "validation"
	KindUpload     Kind = "upload"
	KindExtraction Kind = "extraction"
	KindSave       Kind = "save"
	KindFetchList  Kind = "fetch_list"
	KindDelete     Kind = "delete"
)

// Sentinels for errors.Is checks against a FlowError's kind.
var (
	ErrValidation = errors.New("validation error")
	ErrUpload     = errors.New("upload error")
	ErrExtraction = errors.New("extraction error")
	ErrSave       = errors.New("save error")
	ErrFetchList  = errors.New("fetch list error")
	ErrDelete     = errors.New("delete error")
)

// ErrBusy is returned when an operation is started while another one on the
// same flow is still running.
var ErrBusy = errors.New("operation already in progress")

var kindSentinels = map[Kind]error{
	KindValidation: ErrValidation,
	KindUpload:     ErrUpload,
	KindExtraction: ErrExtraction,
	KindSave:       ErrSave,
	KindFetchList:  ErrFetchList,
	KindDelete:     ErrDelete,
}

// User-facing messages.
const (
	msgBothImagesRequired = "Please upload both front and back images."
	msgUploading          = "Uploading images..."
	msgProcessing         = "Processing Aadhaar images..."
	msgExtracted          = "Aadhaar details extracted successfully!"
	msgUploadFailed       = "Failed to upload one or both images to the image host."
	msgExtractionFailed   = "Failed to process Aadhaar images."
	msgNothingToSave      = "Extract the card details before saving."
	msgSaved              = "Aadhaar data saved successfully!"
	msgSaveFailed         = "Failed to save data."
	msgFetchFailed        = "Failed to fetch OCR data."
	msgDeleted            = "OCR data deleted successfully!"
	msgDeleteFailed       = "Failed to delete OCR data."
)

// FlowError is the error surfaced at a flow boundary. Message is safe to
// show to the user; Err keeps the underlying cause for logs.
type FlowError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *FlowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *FlowError) Unwrap() error { return e.Err }

func (e *FlowError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// newFlowError wraps err, preferring the message the record API sent back
// over the fallback.
func newFlowError(kind Kind, err error, fallback string) *FlowError {
	return &FlowError{Kind: kind, Message: userMessage(err, fallback), Err: err}
}

func userMessage(err error, fallback string) string {
	var apiErr *ocrapi.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// Notifier receives the transient messages a flow produces.
type Notifier interface {
	Info(message string)
	Success(message string)
	Error(message string)
}
