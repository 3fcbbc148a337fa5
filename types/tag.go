package types

// Tag is a colored label attachable to recipes. Its identity is the
// (Name, Color) pair: two tags with the same name but different colors
// are distinct entities.
type Tag struct {
	// ID is the unique identifier of the tag.
	ID int `json:"id" db:"id"`

	// Name is the tag text shown to users.
	Name string `json:"name" db:"name"`

	// Color is the display color of the tag, e.g. "#00ff00".
	Color string `json:"color" db:"color"`
}

// TagInput is a tag reference as submitted by clients on recipe writes.
// It is resolved to an existing Tag or creates one lazily.
type TagInput struct {
	Name  string `json:"name" validate:"required,max=64"`
	Color string `json:"color" validate:"required,max=32"`
}
