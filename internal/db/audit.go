package db

import "time"

// Op tells Stamp which audit fields a write owns.
type Op int

const (
	Insert Op = iota + 1
	Update
)

// Audit is embedded by records that track who touched them and when.
type Audit struct {
	CreatedAt time.Time `json:"create_time"`
	UpdatedAt time.Time `json:"update_time"`
	CreatedBy int64     `json:"create_user"`
	UpdatedBy int64     `json:"update_user"`
}

// Stamp fills the audit fields for op. Repositories call it right before
// the write; an Update leaves the creation fields alone.
func (a *Audit) Stamp(op Op, actorID int64, now time.Time) {
	switch op {
	case Insert:
		a.CreatedAt = now
		a.CreatedBy = actorID
		a.UpdatedAt = now
		a.UpdatedBy = actorID
	case Update:
		a.UpdatedAt = now
		a.UpdatedBy = actorID
	}
}
