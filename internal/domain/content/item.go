// internal/domain/content/item.go
package content

import (
	"database/sql"
	"fmt"
	"time"
)

// Kind distinguishes the candidate pools content items belong to.
type Kind string

const (
	KindProfile  Kind = "PROFILE"  // Member profile, used by birthday and spotlight
	KindQuestion Kind = "QUESTION" // Question-of-the-day bank
	KindPrompt   Kind = "PROMPT"   // Recurring prompt bank
)

// MonthDay is a recurring calendar date with no year.
type MonthDay struct {
	Month time.Month
	Day   int
}

func (md MonthDay) String() string {
	return fmt.Sprintf("%02d-%02d", int(md.Month), md.Day)
}

// MonthDayOf returns the month and day of t in t's location.
func MonthDayOf(t time.Time) MonthDay {
	return MonthDay{Month: t.Month(), Day: t.Day()}
}

// Item is a piece of tenant content eligible for delivery.
// Corresponds to the 'content_items' table. The delivery engine only reads items.
type Item struct {
	ID          string
	TenantID    string
	Kind        Kind
	OwnerUserID sql.NullInt64 // Telegram user that registered the profile, if any
	Recurring   *MonthDay     // Recurring date (birthday) for profiles; nil otherwise
	BirthYear   sql.NullInt32
	Title       string // Display name for profiles, short title for questions/prompts
	Body        string // Profile bio or the question/prompt text
	Fields      map[string]string
	CreatedAt   time.Time
}

// AgeOn returns the age the item's owner turns on date, if the birth year is known.
func (i *Item) AgeOn(date time.Time) (int, bool) {
	if !i.BirthYear.Valid || int(i.BirthYear.Int32) > date.Year() {
		return 0, false
	}
	return date.Year() - int(i.BirthYear.Int32), true
}
