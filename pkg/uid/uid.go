package uid

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// New generates a new unique identifier.
func New() string {
	return uuid.New().String()
}

// IsValid checks if a string is a valid UUID.
func IsValid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// NewEventID returns an event id of the form evt_<unix ms>_<9 random chars>.
func NewEventID() string {
	return newEventID(time.Now())
}

func newEventID(t time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return "evt_" + strconv.FormatInt(t.UnixMilli(), 10) + "_" + random
}
