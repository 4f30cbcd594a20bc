package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymizeUserAgent(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"truncates at played-by marker", "Tiers Edition/1.0 played by CherryJimbo", "Tiers Edition/1.0 "},
		{"no played-by marker passes through", "Tiers Edition/1.0", "Tiers Edition/1.0"},
		{"non-tiers agent passes through unchanged", "Mozilla/5.0", "Mozilla/5.0"},
		{"empty string", "", ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, AnonymizeUserAgent(c.in))
		})
	}
}

func TestNullableString(t *testing.T) {
	assert.Nil(t, nullableString(""))
	assert.Equal(t, "xbox.not_found", nullableString("xbox.not_found"))
}
