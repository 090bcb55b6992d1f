package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vbonduro/cardscan/internal/domain"
	"github.com/vbonduro/cardscan/internal/imagestore"
	"github.com/vbonduro/cardscan/internal/ocrapi"
	"github.com/vbonduro/cardscan/internal/preview"
)

// extractor is the subset of ocrapi.Client that CaptureFlow requires.
type extractor interface {
	Extract(ctx context.Context, frontURL, backURL string) (*ocrapi.ExtractResponse, error)
	Save(ctx context.Context, rec domain.ExtractedRecord) (*ocrapi.SaveResponse, error)
}

// Phase is the capture flow's position in its state machine.
type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseReadyToExtract Phase = "ready_to_extract"
	PhaseExtracting     Phase = "extracting"
	PhaseExtracted      Phase = "extracted"
	PhaseSaving         Phase = "saving"
)

// Field names an editable record field. The values match the JSON names
// so form inputs can post them directly.
type Field string

const (
	FieldName         Field = "name"
	FieldAadharNumber Field = "aadharNumber"
	FieldDOB          Field = "dob"
	FieldGender       Field = "gender"
	FieldAddress      Field = "address"
	FieldPinCode      Field = "pinCode"
	FieldFatherName   Field = "fatherName"
)

// Fields lists the editable fields in display order.
var Fields = []Field{
	FieldName, FieldAadharNumber, FieldDOB, FieldGender, FieldFatherName, FieldAddress, FieldPinCode,
}

// CaptureState is a point-in-time copy of the flow for rendering.
type CaptureState struct {
	Phase    Phase
	Front    *domain.CapturedImage
	Back     *domain.CapturedImage
	Snapshot *domain.ExtractedRecord
	Editable domain.ExtractedRecord
	Error    string
}

// Busy reports whether an extraction or save is running.
func (s CaptureState) Busy() bool {
	return s.Phase == PhaseExtracting || s.Phase == PhaseSaving
}

// CanExtract reports whether the extract action should be enabled.
func (s CaptureState) CanExtract() bool {
	return s.Front != nil && s.Back != nil && !s.Busy()
}

// CaptureFlow drives one reviewer through selecting both card faces,
// extracting, correcting and saving a record.
type CaptureFlow struct {
	uploader imagestore.ImageStore
	ocr      extractor
	notify   Notifier
	logger   *slog.Logger

	mu       sync.Mutex
	running  Phase
	front    *domain.CapturedImage
	back     *domain.CapturedImage
	snapshot *domain.ExtractedRecord
	editable domain.ExtractedRecord
	err      *FlowError
}

func NewCaptureFlow(uploader imagestore.ImageStore, ocr extractor, notifier Notifier, logger *slog.Logger) *CaptureFlow {
	return &CaptureFlow{
		uploader: uploader,
		ocr:      ocr,
		notify:   notifier,
		logger:   logger,
	}
}

// SelectImage stores the image for one side and builds its preview. No
// validation happens here and nothing is sent over the network.
func (f *CaptureFlow) SelectImage(side domain.Side, data []byte, mimeType, filename string) error {
	if !side.Valid() {
		return fmt.Errorf("unknown card side %q", side)
	}
	if mimeType == "" {
		mimeType = preview.DetectMIME(data)
	}
	img := &domain.CapturedImage{
		Data:     data,
		MimeType: mimeType,
		Filename: filename,
		Preview:  preview.DataURI(data, mimeType),
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running != "" {
		return ErrBusy
	}
	if side == domain.SideFront {
		f.front = img
	} else {
		f.back = img
	}
	return nil
}

// SubmitExtraction uploads the front then the back image and asks the OCR
// backend to read them. On success the result becomes the snapshot and
// seeds the editable copy.
func (f *CaptureFlow) SubmitExtraction(ctx context.Context) (*domain.ExtractedRecord, error) {
	f.mu.Lock()
	if f.running != "" {
		f.mu.Unlock()
		return nil, ErrBusy
	}
	front, back := f.front, f.back
	if front == nil || back == nil {
		ferr := &FlowError{Kind: KindValidation, Message: msgBothImagesRequired, Err: errors.New("both images required")}
		f.err = ferr
		f.mu.Unlock()
		f.notify.Error(ferr.Message)
		return nil, ferr
	}
	f.running = PhaseExtracting
	f.snapshot = nil
	f.editable = domain.ExtractedRecord{}
	f.mu.Unlock()

	rec, ferr := f.extract(ctx, front, back)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = ""
	if ferr != nil {
		f.err = ferr
		f.notify.Error(ferr.Message)
		return nil, ferr
	}
	f.snapshot = rec
	f.editable = rec.Clone()
	f.err = nil
	f.notify.Success(msgExtracted)
	return recordPtr(rec.Clone()), nil
}

func (f *CaptureFlow) extract(ctx context.Context, front, back *domain.CapturedImage) (*domain.ExtractedRecord, *FlowError) {
	f.notify.Info(msgUploading)

	var uploaded []domain.Asset
	for _, side := range []struct {
		side domain.Side
		img  *domain.CapturedImage
	}{{domain.SideFront, front}, {domain.SideBack, back}} {
		asset, err := f.upload(ctx, side.side, side.img)
		if err != nil {
			f.logger.Error("image upload failed", "side", side.side, "error", err)
			f.discard(ctx, uploaded)
			return nil, &FlowError{Kind: KindUpload, Message: msgUploadFailed, Err: err}
		}
		f.logger.Info("image uploaded", "side", side.side, "url", asset.URL)
		uploaded = append(uploaded, asset)
	}

	f.notify.Info(msgProcessing)
	resp, err := f.ocr.Extract(ctx, uploaded[0].URL, uploaded[1].URL)
	if err != nil {
		f.logger.Error("extraction request failed", "error", err)
		f.discard(ctx, uploaded)
		return nil, newFlowError(KindExtraction, err, msgExtractionFailed)
	}
	if !resp.Success || resp.ParsedData == nil {
		msg := resp.Message
		if msg == "" {
			msg = msgExtractionFailed
		}
		f.logger.Warn("extraction rejected", "message", resp.Message)
		f.discard(ctx, uploaded)
		return nil, &FlowError{Kind: KindExtraction, Message: msg, Err: errors.New("ocr backend reported failure")}
	}

	rec := resp.ParsedData.Clone()
	return &rec, nil
}

func (f *CaptureFlow) upload(ctx context.Context, side domain.Side, img *domain.CapturedImage) (domain.Asset, error) {
	name := img.Filename
	if name == "" {
		name = "aadhaar_" + string(side)
	}
	asset, err := f.uploader.Upload(ctx, name, img.MimeType, bytes.NewReader(img.Data))
	if err != nil {
		return domain.Asset{}, fmt.Errorf("failed to upload %s image: %w", side, err)
	}
	if asset.URL == "" {
		return domain.Asset{}, fmt.Errorf("failed to upload %s image: empty url", side)
	}
	return asset, nil
}

// discard removes assets uploaded by an extraction that did not complete.
// Failures are logged only.
func (f *CaptureFlow) discard(ctx context.Context, assets []domain.Asset) {
	ctx = context.WithoutCancel(ctx)
	for _, a := range assets {
		if a.PublicID == "" {
			continue
		}
		if err := f.uploader.Delete(ctx, a.PublicID); err != nil {
			f.logger.Warn("failed to delete orphaned image", "public_id", a.PublicID, "error", err)
		}
	}
}

// EditField updates one field of the editable copy. Unknown fields are
// ignored.
func (f *CaptureFlow) EditField(field Field, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	setField(&f.editable, field, value)
}

// SubmitSave sends the editable copy, merged over the snapshot, to the
// record API. Success resets the flow; failure leaves every piece of state
// in place.
func (f *CaptureFlow) SubmitSave(ctx context.Context) (*domain.SavedRecord, error) {
	f.mu.Lock()
	if f.running != "" {
		f.mu.Unlock()
		return nil, ErrBusy
	}
	if f.snapshot == nil {
		ferr := &FlowError{Kind: KindValidation, Message: msgNothingToSave, Err: errors.New("no extracted record")}
		f.err = ferr
		f.mu.Unlock()
		f.notify.Error(ferr.Message)
		return nil, ferr
	}
	f.running = PhaseSaving
	rec := merge(*f.snapshot, f.editable)
	f.mu.Unlock()

	resp, err := f.ocr.Save(ctx, rec)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = ""
	if err != nil {
		ferr := newFlowError(KindSave, err, msgSaveFailed)
		f.logger.Error("save failed", "error", err)
		f.err = ferr
		f.notify.Error(ferr.Message)
		return nil, ferr
	}

	f.logger.Info("record saved", "id", resp.RecordID())
	f.notify.Success(msgSaved)
	f.resetLocked()
	return resp.Record, nil
}

// Reset clears images, previews, the snapshot, the editable copy and any
// inline error. Calling it on an idle flow is a no-op.
func (f *CaptureFlow) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running != "" {
		return ErrBusy
	}
	f.resetLocked()
	return nil
}

func (f *CaptureFlow) resetLocked() {
	f.front = nil
	f.back = nil
	f.snapshot = nil
	f.editable = domain.ExtractedRecord{}
	f.err = nil
}

// State returns a copy of the flow for rendering.
func (f *CaptureFlow) State() CaptureState {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := CaptureState{
		Phase:    f.phaseLocked(),
		Front:    f.front,
		Back:     f.back,
		Editable: f.editable.Clone(),
	}
	if f.snapshot != nil {
		s.Snapshot = recordPtr(f.snapshot.Clone())
	}
	if f.err != nil {
		s.Error = f.err.Message
	}
	return s
}

func (f *CaptureFlow) phaseLocked() Phase {
	switch {
	case f.running != "":
		return f.running
	case f.snapshot != nil:
		return PhaseExtracted
	case f.front != nil && f.back != nil:
		return PhaseReadyToExtract
	default:
		return PhaseIdle
	}
}

// FieldValue returns the display value of a field, "" for unset.
func FieldValue(rec domain.ExtractedRecord, field Field) string {
	switch field {
	case FieldName:
		return domain.Deref(rec.Name)
	case FieldAadharNumber:
		return domain.Deref(rec.AadharNumber)
	case FieldDOB:
		return domain.Deref(rec.DOB)
	case FieldGender:
		return domain.Deref(rec.Gender)
	case FieldAddress:
		return domain.Deref(rec.Address)
	case FieldPinCode:
		return rec.PinCode
	case FieldFatherName:
		return domain.Deref(rec.FatherName)
	}
	return ""
}

func setField(rec *domain.ExtractedRecord, field Field, value string) {
	switch field {
	case FieldName:
		rec.Name = domain.StringPtr(value)
	case FieldAadharNumber:
		rec.AadharNumber = domain.StringPtr(value)
	case FieldDOB:
		rec.DOB = domain.StringPtr(value)
	case FieldGender:
		rec.Gender = domain.StringPtr(value)
	case FieldAddress:
		rec.Address = domain.StringPtr(value)
	case FieldPinCode:
		rec.PinCode = value
	case FieldFatherName:
		rec.FatherName = domain.StringPtr(value)
	}
}

// merge overlays every set field of edited onto base.
func merge(base, edited domain.ExtractedRecord) domain.ExtractedRecord {
	out := base.Clone()
	pick := func(dst **string, src *string) {
		if src != nil {
			v := *src
			*dst = &v
		}
	}
	pick(&out.Name, edited.Name)
	pick(&out.AadharNumber, edited.AadharNumber)
	pick(&out.DOB, edited.DOB)
	pick(&out.Gender, edited.Gender)
	pick(&out.Address, edited.Address)
	pick(&out.FatherName, edited.FatherName)
	out.PinCode = edited.PinCode
	return out
}

func recordPtr(r domain.ExtractedRecord) *domain.ExtractedRecord {
	return &r
}
