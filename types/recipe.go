package types

import "time"

// Block kinds. A block carries either inline text or a photo URL.
const (
	BlockKindText  = "TEXT"
	BlockKindPhoto = "PHOTO"
)

// Block is one ordered unit of recipe content. Blocks are wholly owned
// by their recipe: they have no independent lifecycle and are replaced
// as a complete set on every update.
type Block struct {
	// ID is the unique identifier of the block. Block identifiers are
	// not stable across recipe edits.
	ID int `json:"id" db:"id"`

	// RecipeID is the identifier of the recipe this block belongs to.
	RecipeID int `json:"recipe_id" db:"recipe_id"`

	// Order is the zero-based position of the block in the recipe's
	// display sequence. Order values are contiguous within a recipe.
	Order int `json:"order" db:"ord"`

	// Kind discriminates the block variant, "TEXT" or "PHOTO".
	Kind string `json:"kind" db:"kind"`

	// Text is the inline content of a TEXT block.
	Text string `json:"text,omitempty" db:"text"`

	// PhotoURL is the publicly fetchable image URL of a PHOTO block.
	PhotoURL string `json:"photoUrl,omitempty" db:"photo_url"`
}

// Recipe represents a recipe with its ordered content blocks and tags.
type Recipe struct {
	// ID is the unique identifier of the recipe.
	ID int `json:"id" db:"id"`

	// Name is the human-readable name of the recipe.
	Name string `json:"name" db:"name"`

	// OwnerID is the identifier of the user who created the recipe.
	OwnerID int `json:"owner_id" db:"owner_id"`

	// OwnerName is the display name of the owner, populated on reads.
	OwnerName string `json:"ownerName" db:"owner_name"`

	// Tags are the labels associated with the recipe.
	Tags []Tag `json:"tags"`

	// Blocks is the ordered content of the recipe, ascending by Order.
	Blocks []Block `json:"blocks"`

	// CreatedAt is the timestamp at which the recipe was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent edit.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// RecipeSummary is the list/search projection of a recipe.
type RecipeSummary struct {
	// ID is the unique identifier of the recipe.
	ID int `json:"id" db:"id"`

	// Name is the human-readable name of the recipe.
	Name string `json:"name" db:"name"`

	// OwnerName is the display name of the recipe's owner.
	OwnerName string `json:"ownerName" db:"owner_name"`

	// Tags are the labels associated with the recipe.
	Tags []Tag `json:"tags"`

	// PhotoURL is the URL of the recipe's first block when that block
	// is a PHOTO block, otherwise null.
	PhotoURL *string `json:"photoUrl"`

	// UpdatedAt is the timestamp of the most recent edit.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// BlockInput is one content block as submitted by clients on recipe
// writes. Order is taken from the slice position, not from the payload.
type BlockInput struct {
	Kind     string `json:"kind" validate:"required,oneof=TEXT PHOTO"`
	Text     string `json:"text" validate:"max=20000"`
	PhotoURL string `json:"photoUrl" validate:"omitempty,max=2048"`
}

// RecipeInput is the write payload for creating or updating a recipe.
type RecipeInput struct {
	Name   string       `json:"name" validate:"required,max=255"`
	Tags   []TagInput   `json:"tags" validate:"dive"`
	Blocks []BlockInput `json:"blocks" validate:"required,min=1,dive"`
}
