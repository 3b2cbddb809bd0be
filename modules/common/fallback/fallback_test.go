package fallback

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeValues(t *testing.T) {
	assert.Equal(t, "preset", SafeString("  preset ", "original"))
	assert.Equal(t, "original", SafeString("   ", "original"))
	assert.Equal(t, "original", SafeString(42, "original"))

	assert.Equal(t, 50, SafeInt("50", 100))
	assert.Equal(t, 100, SafeInt("-5", 100))
	assert.Equal(t, 7, SafeInt(json.Number("7"), 1))
	assert.Equal(t, 3, SafeInt(3.9, 1))

	assert.True(t, SafeBool("on", false))
	assert.False(t, SafeBool("0", true))
	assert.True(t, SafeBool("maybe", true))

	assert.Equal(t, []string{"bg-remove", "compress"}, SafeList(" bg-remove, ,compress"))
	assert.Nil(t, SafeList(""))
}
