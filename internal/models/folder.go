package models

import (
	"fmt"
	"time"
)

// Term is an enumerated academic period label.
type Term string

const (
	TermFall   Term = "Fall"
	TermWinter Term = "Winter"
	TermSpring Term = "Spring"
	TermSummer Term = "Summer"
)

// Terms lists the valid academic terms in calendar order.
var Terms = []Term{TermWinter, TermSpring, TermSummer, TermFall}

// IsValid reports whether the term is one of the enumerated labels.
func (t Term) IsValid() bool {
	switch t {
	case TermFall, TermWinter, TermSpring, TermSummer:
		return true
	}
	return false
}

// Folder groups files for an organization, optionally scoped to a term/year.
// The top folder of an organization carries no term or year.
type Folder struct {
	ID             string    `db:"id" json:"id"`
	OrganizationID string    `db:"organization_id" json:"organization_id"`
	Top            bool      `db:"top" json:"top"`
	Term           *Term     `db:"term" json:"term,omitempty"`
	Year           *int      `db:"year" json:"year,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Label returns the display name for the folder, e.g. "Fall 2024".
func (f *Folder) Label() string {
	if f.Term != nil && f.Year != nil {
		return fmt.Sprintf("%s %d", *f.Term, *f.Year)
	}
	return f.OrganizationID
}

// FolderView bundles a folder with its files and derived course groupings.
type FolderView struct {
	Folder        Folder   `json:"folder"`
	Files         []File   `json:"files"`
	CourseFolders []string `json:"course_folders"`
}
