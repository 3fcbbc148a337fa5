package types

import "time"

// Activity event types published on recipe mutations.
const (
	EventRecipeCreated = "recipe.created"
	EventRecipeUpdated = "recipe.updated"
	EventRecipeDeleted = "recipe.deleted"
)

// ActivityEvent describes a recipe mutation for the activity feed.
type ActivityEvent struct {
	// Type is one of the EventRecipe* constants.
	Type string `json:"type"`

	// RecipeID is the identifier of the affected recipe.
	RecipeID int `json:"recipe_id"`

	// ActorID is the identifier of the user who performed the mutation.
	ActorID int `json:"actor_id"`

	// Name is the recipe name at the time of the mutation.
	Name string `json:"name"`

	// At is the time the mutation was committed.
	At time.Time `json:"at"`
}
