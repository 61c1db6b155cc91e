package domain

import "time"

type SourceKind string

const (
	SourceKindUser       SourceKind = "user"
	SourceKindForecaster SourceKind = "forecaster"
	SourceKindScheduler  SourceKind = "scheduler"
	SourceKindDecomposer SourceKind = "decomposer"
)

func ValidSourceKind(k string) bool {
	switch SourceKind(k) {
	case SourceKindUser, SourceKindForecaster, SourceKindScheduler, SourceKindDecomposer:
		return true
	}
	return false
}

// DataSource identifies who asserted a belief: a user or a named automated
// process. Label distinguishes scenarios ("forecast v2", "day-ahead run");
// automated sources are created lazily on first use and looked up by label
// thereafter.
type DataSource struct {
	ID        int64      `json:"id"`
	Kind      SourceKind `json:"kind"`
	Label     string     `json:"label"`
	CreatedAt time.Time  `json:"created_at"`
}
