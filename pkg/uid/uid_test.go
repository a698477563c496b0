package uid

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewEventID(t *testing.T) {
	id := newEventID(time.UnixMilli(1700000000123))
	assert.Regexp(t, regexp.MustCompile(`^evt_1700000000123_[0-9a-f]{9}$`), id)
	assert.NotEqual(t, NewEventID(), NewEventID())
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid(New()))
	assert.False(t, IsValid("evt_1_abc"))
}
