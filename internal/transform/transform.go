package transform

import (
	"fmt"
	"strconv"
	"time"

	"github.com/DorusKeijzer/Woonitor/internal/domain"
)

// Site labels recognized by the transformer. Anything else in a raw record
// is preserved verbatim in misc_data.
const (
	labelTitle        = "Titel"
	labelAskingPrice  = "Laatste vraagprijs"
	labelSurfaceArea  = "Gebruiksoppervlakten"
	labelRooms        = "Aantal kamers"
	labelApartment    = "Soort appartement"
	labelHouse        = "Soort woonhuis"
	labelSellDate     = "Verkoopdatum"
	labelOfferSince   = "Aangeboden sinds"
	labelPostcode     = "Postcode"
	labelNeighborhood = "Buurt"
	labelEnergyLabel  = "Energielabel"
	labelBuildYear    = "Bouwjaar"
)

// consumedLabels are the site labels that map onto a typed listing column.
// Keys of a raw record outside this set (and outside the system keys) end up
// in misc_data.
var consumedLabels = map[string]struct{}{
	labelTitle:        {},
	labelAskingPrice:  {},
	labelSurfaceArea:  {},
	labelRooms:        {},
	labelApartment:    {},
	labelHouse:        {},
	labelSellDate:     {},
	labelOfferSince:   {},
	labelPostcode:     {},
	labelNeighborhood: {},
	labelEnergyLabel:  {},
	labelBuildYear:    {},
}

var systemKeys = map[string]struct{}{
	domain.KeyExternalID: {},
	domain.KeyURL:        {},
	domain.KeyScrapedAt:  {},
}

// ValidateInput rejects raw records that are missing the fields without
// which a listing row cannot exist. Rejections are *ParseError values so
// callers can log the offending field.
func ValidateInput(rec domain.RawRecord) error {
	for _, key := range []string{domain.KeyExternalID, domain.KeyURL, domain.KeyScrapedAt, labelPostcode} {
		if rec[key] == "" {
			return &ParseError{Field: key, Value: "", Reason: "required field missing"}
		}
	}

	if _, err := time.Parse(domain.ScrapedAtLayout, rec[domain.KeyScrapedAt]); err != nil {
		return &ParseError{Field: domain.KeyScrapedAt, Value: rec[domain.KeyScrapedAt], Reason: "invalid timestamp"}
	}

	return nil
}

// Transform converts a validated raw record into a listing. Required fields
// that fail to parse abort the whole record; the optional building year is
// nulled out instead because the site frequently omits or mangles it.
func Transform(rec domain.RawRecord) (*domain.Listing, error) {
	listing := &domain.Listing{
		FundaID:  rec.ExternalID(),
		URL:      rec.URL(),
		Title:    rec[labelTitle],
		MiscData: domain.JSONBMap{},
	}

	listing.ScrapedAt = rec.ScrapedAt()
	if listing.ScrapedAt.IsZero() {
		return nil, &ParseError{Field: domain.KeyScrapedAt, Value: rec[domain.KeyScrapedAt], Reason: "invalid timestamp"}
	}

	var err error

	if listing.LastAskingPrice, err = ReduceToInt(labelAskingPrice, rec[labelAskingPrice]); err != nil {
		return nil, err
	}
	if listing.SurfaceArea, err = ReduceToInt(labelSurfaceArea, rec[labelSurfaceArea]); err != nil {
		return nil, err
	}
	if listing.TotalRooms, listing.Bedrooms, err = ParseRooms(rec[labelRooms]); err != nil {
		return nil, err
	}
	if listing.SellDate, err = ParseDutchDate(labelSellDate, rec[labelSellDate]); err != nil {
		return nil, err
	}
	if listing.OfferSince, err = ParseDutchDate(labelOfferSince, rec[labelOfferSince]); err != nil {
		return nil, err
	}
	if listing.Postcode, listing.City, err = SplitPostcodeCity(rec[labelPostcode]); err != nil {
		return nil, err
	}

	listing.ListingType = rec[labelApartment]
	if listing.ListingType == "" {
		listing.ListingType = rec[labelHouse]
	}
	listing.Neighborhood = rec[labelNeighborhood]
	listing.EnergyLabel = rec[labelEnergyLabel]
	listing.BuildingYear = parseBuildingYear(rec[labelBuildYear])
	listing.SellDurationDays = sellDuration(listing.SellDate, listing.OfferSince)

	for key, value := range rec {
		if _, ok := consumedLabels[key]; ok {
			continue
		}
		if _, ok := systemKeys[key]; ok {
			continue
		}
		listing.MiscData[key] = value
	}

	return listing, nil
}

// ValidateOutput is the last gate before the database. It catches records
// for which the transform produced a structurally incomplete listing, which
// would otherwise surface as a constraint violation mid batch.
func ValidateOutput(l *domain.Listing) error {
	required := map[string]string{
		"funda_id":     l.FundaID,
		"title":        l.Title,
		"listing_type": l.ListingType,
		"city":         l.City,
		"postcode":     l.Postcode,
		"neighborhood": l.Neighborhood,
		"energy_label": l.EnergyLabel,
		"url":          l.URL,
	}
	for field, value := range required {
		if value == "" {
			return &ParseError{Field: field, Value: "", Reason: "required field empty"}
		}
	}

	positive := map[string]int{
		"last_asking_price": l.LastAskingPrice,
		"surface_area":      l.SurfaceArea,
		"total_rooms":       l.TotalRooms,
	}
	for field, value := range positive {
		if value <= 0 {
			return &ParseError{Field: field, Value: strconv.Itoa(value), Reason: "must be positive"}
		}
	}

	for field, value := range map[string]time.Time{
		"sell_date":   l.SellDate,
		"offer_since": l.OfferSince,
		"scraped_at":  l.ScrapedAt,
	} {
		if value.IsZero() {
			return &ParseError{Field: field, Value: "", Reason: "required date missing"}
		}
	}

	wantDuration := !l.SellDate.Before(l.OfferSince)
	if wantDuration != (l.SellDurationDays != nil) {
		return &ParseError{
			Field:  "sell_duration",
			Value:  fmt.Sprintf("%v", l.SellDurationDays),
			Reason: "inconsistent with sell_date and offer_since",
		}
	}

	return nil
}

// parseBuildingYear is lenient where the other date fields are strict. The
// site shows a bare year here but occasionally a range or free text, in
// which case the column is simply null.
func parseBuildingYear(s string) *time.Time {
	year, err := strconv.Atoi(s)
	if err != nil || year < 1000 || year > 9999 {
		return nil
	}
	t := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return &t
}

// sellDuration returns the number of days a listing was on the market, or
// nil when the dates are missing or inverted.
func sellDuration(sellDate, offerSince time.Time) *int {
	if sellDate.IsZero() || offerSince.IsZero() || sellDate.Before(offerSince) {
		return nil
	}
	days := int(sellDate.Sub(offerSince).Hours() / 24)
	return &days
}
