package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"product-studio-server/modules/common/apierr"
)

type sample struct {
	UserID     string   `json:"userId" validate:"required"`
	Operations []string `json:"operations" validate:"dive,operation"`
	Source     string   `json:"source" validate:"omitempty,source"`
	Limit      int      `json:"limit" validate:"gte=0,lte=10"`
}

func TestStruct(t *testing.T) {
	assert.NoError(t, Struct("test", sample{UserID: "u1", Operations: []string{"resize", "bg-remove"}, Source: "csv"}))

	err := Struct("test", sample{Operations: []string{"resize"}})
	assert.Equal(t, apierr.KindValidation, apierr.KindOf(err))
	assert.Contains(t, err.Error(), "userId failed required")

	err = Struct("test", sample{UserID: "u1", Operations: []string{"sparkle"}})
	assert.Contains(t, err.Error(), "operations[0] failed operation")

	err = Struct("test", sample{UserID: "u1", Source: "ftp"})
	assert.Contains(t, err.Error(), "source failed source")

	err = Struct("test", sample{UserID: "u1", Limit: 11})
	assert.Contains(t, err.Error(), "limit failed lte=10")
}
