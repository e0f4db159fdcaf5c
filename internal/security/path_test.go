package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateFilePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"relative file", "data/gateway.db", false},
		{"absolute file", "/var/lib/wagateway/gateway.db", false},
		{"empty", "", true},
		{"traversal", "../../../etc/passwd", true},
		{"hidden traversal", "data/../../secret", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFilePath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateFilePathWithBase(t *testing.T) {
	assert.NoError(t, ValidateFilePathWithBase("gateway.db", "/var/lib/wagateway"))
	assert.Error(t, ValidateFilePathWithBase("../outside.db", "/var/lib/wagateway"))
	assert.Error(t, ValidateFilePathWithBase("", "/var/lib/wagateway"))
}
