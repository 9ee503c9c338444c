package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsVerificationPage(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  bool
	}{
		{"dutch interstitial", "Even geduld a.u.b.", true},
		{"verification prompt", "Verifieer dat je geen robot bent", true},
		{"english challenge", "Please verify you are human", true},
		{"blocked", "Access Denied", true},
		{"almost-there page", "Je bent bijna op de pagina die je zoekt", true},
		{"listing title", "Voorbeeldstraat 1 te koop in Tilburg", false},
		{"search results", "Koopwoningen in Tilburg", false},
		{"empty title", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsVerificationPage(tt.title))
		})
	}
}

func TestIsHostileStatus(t *testing.T) {
	assert.True(t, IsHostileStatus(403))
	assert.True(t, IsHostileStatus(429))

	for _, status := range []int{200, 301, 404, 500, 503} {
		assert.False(t, IsHostileStatus(status), "status %d", status)
	}
}
