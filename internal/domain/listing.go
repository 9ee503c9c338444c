// Package domain defines the records that flow through the Woonitor pipeline:
// work items on the discovery queue, raw field bags on the data queue, and the
// canonical listing that lands in PostgreSQL.
package domain

import "time"

// ScrapedAtLayout is the timestamp format used on the raw-record queue.
const ScrapedAtLayout = "2006-01-02 15:04:05"

// Reserved keys carrying provenance inside a RawRecord. All other keys are
// source-vocabulary labels taken verbatim from the listing page.
const (
	KeyExternalID = "funda_id"
	KeyURL        = "url"
	KeyScrapedAt  = "scraped_at"
)

// WorkItem is one queued discovery result: a listing URL waiting to be scraped.
type WorkItem struct {
	ProducerID string    `json:"producer_id"`
	URL        string    `json:"url"`
	Area       string    `json:"area"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// RawRecord is the unnormalized field bag produced by the scraper, keyed by
// the labels the source site uses. Provenance fields live under the reserved
// keys above. A RawRecord is never persisted; it only travels the data queue.
type RawRecord map[string]string

// ExternalID returns the source site's listing id, or "".
func (r RawRecord) ExternalID() string { return r[KeyExternalID] }

// URL returns the listing page URL, or "".
func (r RawRecord) URL() string { return r[KeyURL] }

// ScrapedAt parses the scrape timestamp. The zero time signals absence.
func (r RawRecord) ScrapedAt() time.Time {
	t, err := time.Parse(ScrapedAtLayout, r[KeyScrapedAt])
	if err != nil {
		return time.Time{}
	}
	return t
}

// Listing is the canonical, typed record written to the listings table.
// Rows are write-once: a duplicate FundaID is silently ignored at insert time.
type Listing struct {
	FundaID          string     `db:"funda_id"`
	Title            string     `db:"title"`
	LastAskingPrice  int        `db:"last_asking_price"`
	SurfaceArea      int        `db:"surface_area"`
	Bedrooms         *int       `db:"bedrooms"`
	TotalRooms       int        `db:"total_rooms"`
	ListingType      string     `db:"listing_type"`
	SellDate         time.Time  `db:"sell_date"`
	OfferSince       time.Time  `db:"offer_since"`
	SellDurationDays *int       `db:"sell_duration"`
	City             string     `db:"city"`
	Postcode         string     `db:"postcode"`
	Neighborhood     string     `db:"neighborhood"`
	EnergyLabel      string     `db:"energy_label"`
	BuildingYear     *time.Time `db:"building_year"`
	ScrapedAt        time.Time  `db:"scraped_at"`
	URL              string     `db:"url"`
	MiscData         JSONBMap   `db:"misc_data"`
}
