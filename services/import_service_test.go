package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExtractAlreadyImported(t *testing.T) {
	posted := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		last *time.Time
		want bool
	}{
		{"no successful import yet", nil, false},
		{"posted after last import", datePtr(2024, 5, 20), false},
		{"posted before last import", datePtr(2024, 6, 10), true},
		{"posted same instant as last import", &posted, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractAlreadyImported(posted, tt.last))
		})
	}
}
