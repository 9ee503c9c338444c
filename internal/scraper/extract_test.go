package scraper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DorusKeijzer/Woonitor/internal/domain"
)

const detailPage = `
<html>
<head><title>Voorbeeldstraat 1 te koop</title></head>
<body>
<header>
  <span class="object-header__title">Voorbeeldstraat 1</span>
  <span class="object-header__subtitle">5035 DD Tilburg</span>
  <a class="fd-m-left-2xs--bp-m" href="/koopwoningen/tilburg/zorgvlied/">Zorgvlied</a>
</header>
<section class="object-kenmerken-list">
  <dl>
    <dt>Laatste vraagprijs</dt>
    <dd>€ 325.000 kosten koper</dd>
    <dt>Verkoopdatum</dt>
    <dd>9 november 2025</dd>
    <dt>Aangeboden sinds</dt>
    <dd>1 september 2025</dd>
  </dl>
</section>
<section class="object-kenmerken-list">
  <dl>
    <dt>Soort appartement</dt>
    <dd>
      Bovenwoning
    </dd>
    <dt>Bouwjaar</dt>
    <dd>1932</dd>
    <dt>Gebruiksoppervlakten</dt>
    <dd>98 m²</dd>
    <dt>Aantal kamers</dt>
    <dd>4 kamers (3 slaapkamers)</dd>
    <dt>Energielabel</dt>
    <dd>B</dd>
    <dt>Laatste vraagprijs</dt>
    <dd>€ 999.999</dd>
  </dl>
</section>
</body>
</html>`

func TestExternalIDFromURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{
			"id after street name",
			"https://www.funda.nl/detail/koop/tilburg/huis-voorbeeldstraat/42352883/",
			"42352883",
			false,
		},
		{
			"house number in slug is skipped",
			"https://www.funda.nl/detail/koop/tilburg/huis-voorbeeldstraat-1/88888888/",
			"88888888",
			false,
		},
		{
			"relative path",
			"/detail/koop/tilburg/huis-1/12345678/",
			"12345678",
			false,
		},
		{
			"digits in host are ignored",
			"https://www2.funda.nl/koop/assen/huis-schaepmanstraat/",
			"",
			true,
		},
		{
			"no digits at all",
			"https://www.funda.nl/koop/assen/huis-schaepmanstraat/",
			"",
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExternalIDFromURL(tt.url)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrNoExternalID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExternalIDDistinguishesSameNumberedStreets(t *testing.T) {
	// Two different listings whose street slugs carry the same house number
	// must never share an id; the id is the storage key.
	a, err := ExternalIDFromURL("https://www.funda.nl/detail/koop/tilburg/huis-voorbeeldstraat-1/88888888/")
	require.NoError(t, err)
	b, err := ExternalIDFromURL("https://www.funda.nl/detail/koop/tilburg/huis-kerkstraat-1/99999999/")
	require.NoError(t, err)

	assert.Equal(t, "88888888", a)
	assert.Equal(t, "99999999", b)
	assert.NotEqual(t, a, b)
}

func TestExtractRecord(t *testing.T) {
	scrapedAt := time.Date(2026, time.August, 30, 14, 2, 11, 0, time.UTC)
	pageURL := "https://www.funda.nl/detail/koop/tilburg/huis-voorbeeldstraat-1/42352883/"

	record, err := ExtractRecord(detailPage, pageURL, "42352883", scrapedAt)
	require.NoError(t, err)

	assert.Equal(t, "42352883", record.ExternalID())
	assert.Equal(t, pageURL, record.URL())
	assert.Equal(t, "2026-08-30 14:02:11", record[domain.KeyScrapedAt])

	assert.Equal(t, "Voorbeeldstraat 1", record["Titel"])
	assert.Equal(t, "5035 DD Tilburg", record["Postcode"])
	assert.Equal(t, "Zorgvlied", record["Buurt"])

	assert.Equal(t, "9 november 2025", record["Verkoopdatum"])
	assert.Equal(t, "1 september 2025", record["Aangeboden sinds"])
	assert.Equal(t, "1932", record["Bouwjaar"])
	assert.Equal(t, "98 m²", record["Gebruiksoppervlakten"])
	assert.Equal(t, "4 kamers (3 slaapkamers)", record["Aantal kamers"])
	assert.Equal(t, "B", record["Energielabel"])

	// Whitespace noise from the rendered markup is collapsed.
	assert.Equal(t, "Bovenwoning", record["Soort appartement"])

	// A label repeated across sections keeps its first value.
	assert.Equal(t, "€ 325.000 kosten koper", record["Laatste vraagprijs"])
}

func TestExtractRecordSparsePage(t *testing.T) {
	record, err := ExtractRecord("<html><body></body></html>", "u", "1", time.Now())
	require.NoError(t, err)

	// Only the provenance fields survive an empty page.
	assert.Len(t, record, 3)
	assert.NotContains(t, record, "Titel")
}

func TestAbsoluteURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.funda.nl/detail/koop/a/1/", "https://www.funda.nl/detail/koop/a/1/"},
		{"/detail/koop/a/1/", "https://www.funda.nl/detail/koop/a/1/"},
		{"detail/koop/a/1/", "https://www.funda.nl/detail/koop/a/1/"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, absoluteURL(tt.in))
	}
}
