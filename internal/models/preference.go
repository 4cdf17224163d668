package models

import (
	"time"
)

// UserPreference holds the resolved locale and regional settings for a single
// user. It is the single source of truth every rendering surface reads from;
// rendering layers only ever hold transient read-only copies.
type UserPreference struct {
	UserID    string // opaque identifier owned by the account system
	Locale    string // BCP 47 tag, e.g. "es-MX"
	Timezone  string // IANA zone identifier, e.g. "America/Mexico_City"
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a copy safe to hand out to callers.
func (p *UserPreference) Clone() *UserPreference {
	clone := *p
	return &clone
}
