package models

// Category is a course catalog tag, seeded from the scraped course listing.
type Category struct {
	ID  string `db:"id" json:"id"`
	Tag string `db:"tag" json:"tag"`
}

// CreateCategoryRequest seeds a new course tag.
type CreateCategoryRequest struct {
	Tag string `json:"tag" validate:"required,max=6"`
}
