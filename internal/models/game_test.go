package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGame_IsSettled(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{"Final", true},
		{"final", true},
		{"Postponed", true},
		{"Cancelled", true},
		{"canceled", true},
		{"3rd Qtr", false},
		{"7:30 pm ET", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			g := &Game{Status: tt.status}
			assert.Equal(t, tt.want, g.IsSettled())
		})
	}
}
