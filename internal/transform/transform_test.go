package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DorusKeijzer/Woonitor/internal/domain"
)

// validRecord returns a complete raw record as the scraper would produce it.
func validRecord() domain.RawRecord {
	return domain.RawRecord{
		domain.KeyExternalID:   "89472105",
		domain.KeyURL:          "https://www.funda.nl/detail/koop/tilburg/appartement-voorbeeldstraat-1/89472105/",
		domain.KeyScrapedAt:    "2026-08-30 14:02:11",
		"Titel":                "Voorbeeldstraat 1",
		"Laatste vraagprijs":   "€ 325.000 kosten koper",
		"Gebruiksoppervlakten": "98 m²",
		"Aantal kamers":        "4 kamers (3 slaapkamers)",
		"Soort appartement":    "Bovenwoning",
		"Verkoopdatum":         "9 november 2025",
		"Aangeboden sinds":     "1 september 2025",
		"Postcode":             "5035 DD Tilburg",
		"Buurt":                "Zorgvlied",
		"Energielabel":         "B",
		"Bouwjaar":             "1932",
		"Aanvaarding":          "In overleg",
		"Ligging":              "Aan rustige weg",
	}
}

func TestValidateInput(t *testing.T) {
	t.Run("complete record passes", func(t *testing.T) {
		require.NoError(t, ValidateInput(validRecord()))
	})

	for _, key := range []string{domain.KeyExternalID, domain.KeyURL, domain.KeyScrapedAt, "Postcode"} {
		t.Run("missing "+key, func(t *testing.T) {
			rec := validRecord()
			delete(rec, key)
			require.Error(t, ValidateInput(rec))
		})
	}

	t.Run("unparseable timestamp", func(t *testing.T) {
		rec := validRecord()
		rec[domain.KeyScrapedAt] = "yesterday"
		require.Error(t, ValidateInput(rec))
	})
}

func TestTransform(t *testing.T) {
	listing, err := Transform(validRecord())
	require.NoError(t, err)

	assert.Equal(t, "89472105", listing.FundaID)
	assert.Equal(t, "Voorbeeldstraat 1", listing.Title)
	assert.Equal(t, 325000, listing.LastAskingPrice)
	assert.Equal(t, 98, listing.SurfaceArea)
	assert.Equal(t, 4, listing.TotalRooms)
	require.NotNil(t, listing.Bedrooms)
	assert.Equal(t, 3, *listing.Bedrooms)
	assert.Equal(t, "Bovenwoning", listing.ListingType)
	assert.Equal(t, "5035 DD", listing.Postcode)
	assert.Equal(t, "Tilburg", listing.City)
	assert.Equal(t, "Zorgvlied", listing.Neighborhood)
	assert.Equal(t, "B", listing.EnergyLabel)

	require.NotNil(t, listing.BuildingYear)
	assert.Equal(t, 1932, listing.BuildingYear.Year())

	assert.Equal(t, time.Date(2025, time.November, 9, 0, 0, 0, 0, time.UTC), listing.SellDate)
	assert.Equal(t, time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC), listing.OfferSince)
	require.NotNil(t, listing.SellDurationDays)
	assert.Equal(t, 69, *listing.SellDurationDays)

	// Unmapped labels are preserved, mapped and system keys are not.
	assert.Equal(t, "In overleg", listing.MiscData["Aanvaarding"])
	assert.Equal(t, "Aan rustige weg", listing.MiscData["Ligging"])
	assert.NotContains(t, listing.MiscData, "Titel")
	assert.NotContains(t, listing.MiscData, domain.KeyURL)
}

func TestTransformListingTypeFallback(t *testing.T) {
	rec := validRecord()
	delete(rec, "Soort appartement")
	rec["Soort woonhuis"] = "Tussenwoning"

	listing, err := Transform(rec)
	require.NoError(t, err)
	assert.Equal(t, "Tussenwoning", listing.ListingType)
}

func TestTransformMalformedBuildingYear(t *testing.T) {
	for _, value := range []string{"", "1932-1938", "onbekend", "432"} {
		rec := validRecord()
		rec["Bouwjaar"] = value

		listing, err := Transform(rec)
		require.NoError(t, err)
		assert.Nil(t, listing.BuildingYear, "Bouwjaar %q should yield a null year", value)
	}
}

func TestTransformRequiredFieldFailures(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"garbled price", "Laatste vraagprijs", "prijs op aanvraag"},
		{"garbled surface", "Gebruiksoppervlakten", "ruim"},
		{"garbled rooms", "Aantal kamers", "veel"},
		{"garbled sell date", "Verkoopdatum", "ooit"},
		{"garbled offer date", "Aangeboden sinds", "2025-09-01"},
		{"garbled postcode", "Postcode", "Tilburg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord()
			rec[tt.key] = tt.value

			_, err := Transform(rec)
			require.Error(t, err)
			var perr *ParseError
			require.ErrorAs(t, err, &perr)
		})
	}
}

func TestTransformInvertedDates(t *testing.T) {
	rec := validRecord()
	rec["Verkoopdatum"] = "1 september 2025"
	rec["Aangeboden sinds"] = "9 november 2025"

	listing, err := Transform(rec)
	require.NoError(t, err)
	assert.Nil(t, listing.SellDurationDays)
}

func TestValidateOutput(t *testing.T) {
	t.Run("transformed record passes", func(t *testing.T) {
		listing, err := Transform(validRecord())
		require.NoError(t, err)
		require.NoError(t, ValidateOutput(listing))
	})

	t.Run("empty required string", func(t *testing.T) {
		listing, err := Transform(validRecord())
		require.NoError(t, err)
		listing.EnergyLabel = ""
		require.Error(t, ValidateOutput(listing))
	})

	t.Run("missing neighborhood", func(t *testing.T) {
		rec := validRecord()
		delete(rec, "Buurt")

		listing, err := Transform(rec)
		require.NoError(t, err)
		require.Error(t, ValidateOutput(listing))
	})

	t.Run("non-positive numeric", func(t *testing.T) {
		listing, err := Transform(validRecord())
		require.NoError(t, err)
		listing.SurfaceArea = 0
		require.Error(t, ValidateOutput(listing))
	})

	t.Run("duration inconsistent with dates", func(t *testing.T) {
		listing, err := Transform(validRecord())
		require.NoError(t, err)
		listing.SellDurationDays = nil
		require.Error(t, ValidateOutput(listing))
	})
}
