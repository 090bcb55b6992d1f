// Command seed fills the record API with generated Aadhaar records for
// exercising pagination and delete in the front end.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jaswdr/faker"

	"github.com/vbonduro/cardscan/internal/config"
	"github.com/vbonduro/cardscan/internal/domain"
	"github.com/vbonduro/cardscan/internal/logging"
	"github.com/vbonduro/cardscan/internal/ocrapi"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	count := flag.Int("n", 10, "number of records to create")
	apiURL := flag.String("api", cfg.OCRAPIURL, "record API base URL")
	flag.Parse()

	logger, cleanup, err := logging.New("seed", cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer cleanup()

	client := ocrapi.NewClient(*apiURL, &http.Client{Timeout: cfg.HTTPTimeout})
	created := seed(context.Background(), client, faker.New(), *count, logger)
	logger.Info("seeding finished", "requested", *count, "created", created)
}

type saver interface {
	Save(ctx context.Context, rec domain.ExtractedRecord) (*ocrapi.SaveResponse, error)
}

// seed saves n generated records and returns how many the API accepted.
func seed(ctx context.Context, s saver, f faker.Faker, n int, logger *slog.Logger) int {
	created := 0
	for range n {
		resp, err := s.Save(ctx, fakeRecord(f))
		if err != nil {
			logger.Error("failed to save record", "error", err)
			continue
		}
		created++
		logger.Debug("saved record", "id", resp.RecordID())
	}
	return created
}

var genders = []string{"Male", "Female", "Transgender"}

// fakeRecord builds a record shaped like a real card. Some optional fields
// are left empty so the list view shows its N/A placeholders.
func fakeRecord(f faker.Faker) domain.ExtractedRecord {
	p := f.Person()
	addr := f.Address()

	rec := domain.ExtractedRecord{
		Name:         domain.StringPtr(p.FirstName() + " " + p.LastName()),
		AadharNumber: domain.StringPtr(fmt.Sprintf("%d%s", f.IntBetween(2, 9), f.Numerify("### #### ####"))),
		Gender:       domain.StringPtr(f.RandomStringElement(genders)),
		PinCode:      fmt.Sprintf("%d%s", f.IntBetween(1, 9), f.Numerify("#####")),
	}
	if f.IntBetween(0, 9) > 0 {
		rec.DOB = domain.StringPtr(fmt.Sprintf("%02d/%02d/%d", f.IntBetween(1, 28), f.IntBetween(1, 12), f.IntBetween(1950, 2010)))
	}
	if f.Bool() {
		rec.FatherName = domain.StringPtr(p.FirstNameMale() + " " + p.LastName())
	}
	if f.IntBetween(0, 4) > 0 {
		rec.Address = domain.StringPtr(strings.Join([]string{addr.StreetAddress(), addr.City(), addr.State()}, ", "))
	}
	return rec
}
