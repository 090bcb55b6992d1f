package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/cardscan/internal/domain"
)

func TestParseJSON(t *testing.T) {
	raw := "```json\n" + `{
		"Name": "Asha Verma",
		"aadhaar_number": "123456789012",
		"Date of Birth": "4-11-1990",
		"gender": "F",
		"address": "12 MG Road, Bengaluru, Karnataka 560038",
		"pin_code": null,
		"father's name": "Ramesh Verma",
		"signature": "ignored"
	}` + "\n```"

	rec, err := ParseJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, "Asha Verma", domain.Deref(rec.Name))
	assert.Equal(t, "123456789012", domain.Deref(rec.AadharNumber))
	assert.Equal(t, "4-11-1990", domain.Deref(rec.DOB))
	assert.Equal(t, "Ramesh Verma", domain.Deref(rec.FatherName))
	assert.Equal(t, "", rec.PinCode)

	out, err := Finish(rec)
	require.NoError(t, err)
	assert.Equal(t, "1234 5678 9012", domain.Deref(out.AadharNumber))
	assert.Equal(t, "04/11/1990", domain.Deref(out.DOB))
	assert.Equal(t, "Female", domain.Deref(out.Gender))
	assert.Equal(t, "560038", out.PinCode)
}

func TestParseJSONWithSurroundingText(t *testing.T) {
	rec, err := ParseJSON(`Here is the data: {"data": {"name": "Kavya {Nair}", "pinCode": 682001}} Thanks!`)
	require.NoError(t, err)
	assert.Equal(t, "Kavya {Nair}", domain.Deref(rec.Name))
	assert.Equal(t, "682001", rec.PinCode)
}

func TestParseJSONInvalid(t *testing.T) {
	_, err := ParseJSON("I could not read the card.")
	assert.Error(t, err)
}

func TestParseJSONExactKeyBeatsNearMatch(t *testing.T) {
	raw := `{"name":"Asha Verma","name_hindi":"आशा वर्मा","address":"12 MG Road","address_hindi":"१२ एमजी रोड"}`
	for range 50 {
		rec, err := ParseJSON(raw)
		require.NoError(t, err)
		assert.Equal(t, "Asha Verma", domain.Deref(rec.Name))
		assert.Equal(t, "12 MG Road", domain.Deref(rec.Address))
	}
}

func TestParseJSONNearMatchFillsUnsetField(t *testing.T) {
	rec, err := ParseJSON(`{"name_hindi":"आशा वर्मा","gender":"F"}`)
	require.NoError(t, err)
	assert.Equal(t, "आशा वर्मा", domain.Deref(rec.Name))
	assert.Equal(t, "F", domain.Deref(rec.Gender))
}

func TestMatchKey(t *testing.T) {
	tests := map[string]string{
		"name":          "name",
		"aadharNumber":  "aadharnumber",
		"Aadhaar No":    "aadharnumber",
		"DOB":           "dob",
		"date_of_birth": "dob",
		"fatherName":    "fathername",
		"Fathers Name":  "fathername",
		"pincode":       "pincode",
		"postal_code":   "pincode",
		"signature":     "",
		"photo":         "",
	}
	for key, want := range tests {
		t.Run(key, func(t *testing.T) {
			assert.Equal(t, want, matchKey(key))
		})
	}
}

func TestFinishRejectsEmpty(t *testing.T) {
	_, err := Finish(&domain.ExtractedRecord{Name: domain.StringPtr("  "), PinCode: "12"})
	assert.ErrorIs(t, err, ErrNoFields)

	_, err = Finish(nil)
	assert.ErrorIs(t, err, ErrNoFields)
}

func TestNormalize(t *testing.T) {
	rec := Normalize(domain.ExtractedRecord{
		Name:         domain.StringPtr("  Asha   Verma "),
		AadharNumber: domain.StringPtr("1234-5678-9012"),
		DOB:          domain.StringPtr("1990"),
		Gender:       domain.StringPtr("MALE"),
		Address:      domain.StringPtr("null"),
		PinCode:      "560 038",
	})
	assert.Equal(t, "Asha Verma", domain.Deref(rec.Name))
	assert.Equal(t, "1234 5678 9012", domain.Deref(rec.AadharNumber))
	assert.Equal(t, "1990", domain.Deref(rec.DOB))
	assert.Equal(t, "Male", domain.Deref(rec.Gender))
	assert.Nil(t, rec.Address)
	assert.Equal(t, "560038", rec.PinCode)
}

func TestParseText(t *testing.T) {
	front := `GOVERNMENT OF INDIA
Asha Verma
DOB: 04/11/1990
FEMALE
1234 5678 9012
Mera Aadhaar, Meri Pehchan`
	back := `Unique Identification Authority of India
Address:
D/O Ramesh Verma, 12 MG Road,
Indiranagar, Bengaluru,
Karnataka - 560038
1234 5678 9012
help@uidai.gov.in`

	rec, err := Finish(ParseText(front, back))
	require.NoError(t, err)
	assert.Equal(t, "Asha Verma", domain.Deref(rec.Name))
	assert.Equal(t, "1234 5678 9012", domain.Deref(rec.AadharNumber))
	assert.Equal(t, "04/11/1990", domain.Deref(rec.DOB))
	assert.Equal(t, "Female", domain.Deref(rec.Gender))
	assert.Equal(t, "Ramesh Verma", domain.Deref(rec.FatherName))
	assert.Equal(t, "D/O Ramesh Verma, 12 MG Road, Indiranagar, Bengaluru, Karnataka", domain.Deref(rec.Address))
	assert.Equal(t, "560038", rec.PinCode)
}

func TestParseTextYearOfBirth(t *testing.T) {
	rec := ParseText("Rahul Kumar\nYear of Birth : 1985\nMale", "")
	assert.Equal(t, "Rahul Kumar", domain.Deref(rec.Name))
	assert.Equal(t, "1985", domain.Deref(rec.DOB))
	assert.Nil(t, rec.Address)
}

func TestFetcher(t *testing.T) {
	png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(png)
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client())
	front, back, err := f.FetchBoth(context.Background(), Image{URL: srv.URL + "/front.png"}, Image{URL: srv.URL + "/back.png"})
	require.NoError(t, err)
	assert.Equal(t, png, front.Data)
	assert.Equal(t, "image/png", front.MimeType)
	assert.Equal(t, png, back.Data)

	_, err = f.Fetch(context.Background(), Image{URL: srv.URL + "/missing.png"})
	assert.Error(t, err)

	f.maxBytes = 4
	_, err = f.Fetch(context.Background(), Image{URL: srv.URL + "/big.png"})
	assert.Error(t, err)

	preset := Image{URL: "unused", Data: []byte("x"), MimeType: "image/jpeg"}
	got, err := f.Fetch(context.Background(), preset)
	require.NoError(t, err)
	assert.Equal(t, preset, got)
}

func TestFetcherRejectsUnlistedHost(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte("secret"))
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), "res.cloudinary.com")
	_, err := f.Fetch(context.Background(), Image{URL: srv.URL + "/latest/meta-data"})
	assert.ErrorIs(t, err, ErrHostNotAllowed)
	assert.Zero(t, hits)

	_, err = f.Fetch(context.Background(), Image{URL: "file:///etc/passwd"})
	assert.Error(t, err)
}

func TestFetcherAllowsListedHost(t *testing.T) {
	png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(png)
	}))
	defer srv.Close()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	img, err := NewFetcher(srv.Client(), "res.cloudinary.com", u.Host).Fetch(context.Background(), Image{URL: srv.URL + "/front.png"})
	require.NoError(t, err)
	assert.Equal(t, png, img.Data)
}

func TestFetcherRejectsRedirectToUnlistedHost(t *testing.T) {
	internalHits := 0
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		internalHits++
	}))
	defer internal.Close()
	public := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, internal.URL+"/admin", http.StatusFound)
	}))
	defer public.Close()
	u, err := url.Parse(public.URL)
	require.NoError(t, err)

	_, err = NewFetcher(public.Client(), u.Host).Fetch(context.Background(), Image{URL: public.URL + "/front.png"})
	assert.ErrorIs(t, err, ErrHostNotAllowed)
	assert.Zero(t, internalHits)
}
