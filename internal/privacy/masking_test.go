package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskPhoneNumber(t *testing.T) {
	tests := []struct {
		name  string
		phone string
		want  string
	}{
		{"standard", "628123456789", "********6789"},
		{"with plus", "+628123456789", "+********6789"},
		{"short", "123", "***"},
		{"exactly keep length", "6789", "****"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskPhoneNumber(tt.phone))
		})
	}
}

func TestMaskRecipient(t *testing.T) {
	tests := []struct {
		name string
		jid  string
		want string
	}{
		{"user jid", "628123456789@s.whatsapp.net", "********6789@s.whatsapp.net"},
		{"bare phone", "628123456789", "********6789"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskRecipient(tt.jid))
		})
	}
}

func TestMaskMessageID(t *testing.T) {
	assert.Equal(t, "******D7BA1F3E", MaskMessageID("3EB0C1D7BA1F3E"))
	assert.Equal(t, "****", MaskMessageID("abcd"))
	assert.Equal(t, "", MaskMessageID(""))
}
