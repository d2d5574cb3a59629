package note

import (
	"time"

	"github.com/Strob0t/NoteVault/internal/domain/tenant"
)

const (
	RecentLimit  = 5
	TopTagsLimit = 10
)

// Counts holds the active and archived note totals of a tenant.
type Counts struct {
	Active   int
	Archived int
}

// Recent is a compact view of a recently created note.
type Recent struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// TagCount is a tag with the number of active notes carrying it.
type TagCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Summary aggregates a tenant's note statistics.
type Summary struct {
	ActiveNotes   int                 `json:"active_notes"`
	ArchivedNotes int                 `json:"archived_notes"`
	Subscription  tenant.Subscription `json:"subscription"`
	RecentNotes   []Recent            `json:"recent_notes"`
	TopTags       []TagCount          `json:"top_tags"`
}
