package ocrapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/cardscan/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClientExtract(t *testing.T) {
	var got ExtractRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/ocr/aadhar", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "ok",
			"parsedData": map[string]any{
				"name":         "Asha Rao",
				"aadharNumber": "1234 5678 9012",
				"dob":          nil,
				"pinCode":      "560001",
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", nil)
	resp, err := client.Extract(context.Background(), "https://img/front.jpg", "https://img/back.jpg")
	require.NoError(t, err)

	assert.Equal(t, "https://img/front.jpg", got.FrontImage)
	assert.Equal(t, "https://img/back.jpg", got.BackImage)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.ParsedData)
	assert.Equal(t, "Asha Rao", domain.Deref(resp.ParsedData.Name))
	assert.Nil(t, resp.ParsedData.DOB)
	assert.Equal(t, "560001", resp.ParsedData.PinCode)
}

func TestClientExtractUnsuccessfulIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "image too blurry"})
	}))
	defer server.Close()

	resp, err := NewClient(server.URL, nil).Extract(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "image too blurry", resp.Message)
}

func TestClientSave(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ocr/save", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusCreated, map[string]any{
			"success": true,
			"message": "saved",
			"Adhaar":  map[string]any{"_id": "rec-1", "name": "Asha Rao", "pinCode": ""},
		})
	}))
	defer server.Close()

	rec := domain.ExtractedRecord{Name: domain.StringPtr("Asha Rao")}
	resp, err := NewClient(server.URL, nil).Save(context.Background(), rec)
	require.NoError(t, err)

	assert.Equal(t, "Asha Rao", got["name"])
	assert.Contains(t, got, "fatherName")
	assert.Nil(t, got["fatherName"])
	assert.Equal(t, "", got["pinCode"])
	require.NotNil(t, resp.Record)
	assert.Equal(t, "rec-1", resp.Record.ID)
	assert.Equal(t, "rec-1", resp.RecordID())
}

func TestSaveResponseRecordIDWithoutRecord(t *testing.T) {
	var nilResp *SaveResponse
	assert.Equal(t, "", nilResp.RecordID())
	assert.Equal(t, "", (&SaveResponse{Success: true}).RecordID())
}

func TestClientSaveServerMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "Aadhaar number already saved"})
	}))
	defer server.Close()

	_, err := NewClient(server.URL, nil).Save(context.Background(), domain.ExtractedRecord{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Aadhaar number already saved", apiErr.Message)
}

func TestClientList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/ocr/aadhar", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		writeJSON(w, http.StatusOK, map[string]any{
			"success":    true,
			"AdhaarData": []map[string]any{{"_id": "a"}, {"_id": "b"}},
			"count":      5,
		})
	}))
	defer server.Close()

	resp, err := NewClient(server.URL, nil).List(context.Background(), 3, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, resp.Count)
	require.Len(t, resp.Records, 2)
	assert.Equal(t, "a", resp.Records[0].ID)
}

func TestClientDelete(t *testing.T) {
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		path = r.URL.Path
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "deleted"})
	}))
	defer server.Close()

	resp, err := NewClient(server.URL, nil).Delete(context.Background(), "rec-9")
	require.NoError(t, err)
	assert.Equal(t, "/ocr/delete/rec-9", path)
	assert.Equal(t, "deleted", resp.Message)
}

func TestClientDeleteNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "Record not found"})
	}))
	defer server.Close()

	_, err := NewClient(server.URL, nil).Delete(context.Background(), "missing")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Record not found", apiErr.Message)
}

func TestClientDeleteAsset(t *testing.T) {
	var got DeleteAssetRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cloudinary/delete", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}))
	defer server.Close()

	require.NoError(t, NewClient(server.URL, nil).DeleteAsset(context.Background(), "cards/front"))
	assert.Equal(t, "cards/front", got.PublicID)
}

func TestClientErrorWithoutBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, nil).List(context.Background(), 3, 1)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Empty(t, apiErr.Message)
	assert.Equal(t, "ocr api returned status 502", apiErr.Error())
}

func TestClientNetworkError(t *testing.T) {
	_, err := NewClient("http://localhost:99999", nil).List(context.Background(), 3, 1)
	assert.Error(t, err)
}
