package payment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/verisage/oracle/pkg/oracle/types"
)

func TestValidateFactQuery(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{"typical question", "Did the Lakers win their last game?", true},
		{"angle bracket rejected", "Is BTC > $50k right now (approximately)?", false},
		{"minimum length", strings.Repeat("a", 10), true},
		{"too short", "Too short", false},
		{"too long", strings.Repeat("a", 257), false},
		{"max length", strings.Repeat("a", 256), true},
		{"injection chars", "Is this fine? <script>alert(1)</script>", false},
		{"unicode rejected", "Est-ce que le café est chaud ?", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInput(types.KindFact, tt.input)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				var validationErr *ValidationError
				assert.ErrorAs(t, err, &validationErr)
			}
		})
	}
}

func TestValidateFactQueryAllowedCharset(t *testing.T) {
	assert.NoError(t, ValidateInput(types.KindFact, "Is 2+2=4, per basic math (yes/no)? $100 says #so & more @math!"))
}

func TestValidateTweetURL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{"x.com status", "https://x.com/NASA/status/1790000000000000000", true},
		{"twitter.com status", "https://twitter.com/NASA/status/1790000000000000000", true},
		{"query string tail", "https://x.com/NASA/status/1790000000000000000?s=20", true},
		{"http allowed", "http://x.com/someuser/status/12345678901234", true},
		{"profile not status", "https://x.com/NASA/with_replies/and/more", false},
		{"wrong host", "https://facebook.com/NASA/status/1790000000000000000", false},
		{"too short", "https://x.com/a/status/1", false},
		{"too long", "https://x.com/NASA/status/179" + strings.Repeat("0", 200), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInput(types.KindSocialPost, tt.input)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidateUnknownKind(t *testing.T) {
	assert.Error(t, ValidateInput(types.JobKind("weather"), "Will it rain tomorrow in London town?"))
}
