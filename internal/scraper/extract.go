// Package scraper implements the extraction stage: a pool of workers that
// pop discovered listing URLs, render the detail pages and publish the raw
// field bags onto the data queue.
package scraper

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/DorusKeijzer/Woonitor/internal/domain"
)

// Source-site labels for fields scraped outside the definition lists.
// The transform stage maps these to canonical columns.
const (
	labelTitle        = "Titel"
	labelPostcode     = "Postcode"
	labelNeighborhood = "Buurt"
)

// Detail-page selectors. The about block sits in the object header; every
// characteristics section (purchase history and features alike) is a
// .object-kenmerken-list definition list.
const (
	selTitle        = "span.object-header__title"
	selSubtitle     = "span.object-header__subtitle"
	selNeighborhood = "a.fd-m-left-2xs--bp-m"
	selFeatureList  = ".object-kenmerken-list"
)

var digitRun = regexp.MustCompile(`\d+`)

// ErrNoExternalID is returned when a listing URL carries no numeric id.
var ErrNoExternalID = errors.New("no external id in url path")

// ExternalIDFromURL derives the listing id from the last digit run in the
// URL path, e.g. ".../huis-voorbeeldstraat-1/88888888/" -> "88888888".
// Detail paths end in the object id; earlier digit runs are house numbers
// from the street slug.
func ExternalIDFromURL(rawURL string) (string, error) {
	path := rawURL
	if i := strings.Index(rawURL, "//"); i >= 0 {
		rest := rawURL[i+2:]
		if j := strings.Index(rest, "/"); j >= 0 {
			path = rest[j:]
		} else {
			path = ""
		}
	}

	runs := digitRun.FindAllString(path, -1)
	if len(runs) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoExternalID, rawURL)
	}
	return runs[len(runs)-1], nil
}

// ExtractRecord pulls the raw field bag out of a rendered detail page.
// Labels keep the source site's vocabulary; renaming happens downstream.
func ExtractRecord(html, pageURL, externalID string, scrapedAt time.Time) (domain.RawRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	record := domain.RawRecord{
		domain.KeyExternalID: externalID,
		domain.KeyURL:        pageURL,
		domain.KeyScrapedAt:  scrapedAt.Format(domain.ScrapedAtLayout),
	}

	// About block: address title, postcode+city composite, neighborhood.
	if title := cleanText(doc.Find(selTitle).First().Text()); title != "" {
		record[labelTitle] = title
	}
	if subtitle := cleanText(doc.Find(selSubtitle).First().Text()); subtitle != "" {
		record[labelPostcode] = subtitle
	}
	if hood := cleanText(doc.Find(selNeighborhood).First().Text()); hood != "" {
		record[labelNeighborhood] = hood
	}

	// Purchase history and features share the same definition-list markup;
	// every dt/dd pair lands in the record under its original label.
	doc.Find(selFeatureList).Find("dt").Each(func(_ int, dt *goquery.Selection) {
		label := cleanText(dt.Text())
		if label == "" {
			return
		}

		dd := dt.NextFiltered("dd")
		if dd.Length() == 0 {
			return
		}

		value := cleanText(dd.Text())
		if value == "" {
			return
		}

		// First occurrence wins when a label repeats across sections.
		if _, exists := record[label]; !exists {
			record[label] = value
		}
	})

	return record, nil
}

// cleanText collapses the whitespace noise of rendered markup.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
