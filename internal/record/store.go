package record

import "context"

// StudentPatch carries optional roster field updates.
type StudentPatch struct {
	Name  *string
	Index *string
}

// Store is the key-value backing store for rosters and attendance maps.
// SaveDay replaces the whole date map; callers that update a subset of
// students must read, overlay, then save. Under non-concurrent access one
// student's update never erases another's entry; two sessions racing on the
// same class and date can lose updates (last write wins on the map).
type Store interface {
	// Roster returns the class roster ordered by index, then name.
	Roster(ctx context.Context, class Class) ([]Student, error)
	// AddStudent creates a roster entry and returns the generated id.
	AddStudent(ctx context.Context, class Class, name, index string) (string, error)
	UpdateStudent(ctx context.Context, class Class, studentID string, patch StudentPatch) error
	RemoveStudent(ctx context.Context, class Class, studentID string) error

	// Day returns the record map for one date; empty map when absent.
	Day(ctx context.Context, class Class, date string) (DayMap, error)
	// SaveDay writes the full record map for a date. Entries are enriched
	// with the student's current name and index and stamped with the write
	// time; entries whose id is not on the roster are dropped.
	SaveDay(ctx context.Context, class Class, date string, entries DayMap) error

	// History returns up to limit most-recent dated record maps, ordered by
	// date key ascending.
	History(ctx context.Context, class Class, limit int) ([]Day, error)

	// MigrateDay rewrites a date's map in the structured encoding. Returns
	// false when the date has no records.
	MigrateDay(ctx context.Context, class Class, date string) (bool, error)
}
