package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/tastebook/apiserver/internal/events"
	"github.com/tastebook/apiserver/internal/store"
	"github.com/tastebook/apiserver/types"
	"go.uber.org/zap"
)

// ErrForbidden is returned when the caller is authenticated but not
// permitted to mutate the recipe.
var ErrForbidden = errors.New("forbidden")

// RecipeRepository defines persistence operations for recipes.
type RecipeRepository interface {
	Create(ctx context.Context, recipe types.Recipe) (types.Recipe, error)
	Get(ctx context.Context, id int) (types.Recipe, error)
	Update(ctx context.Context, recipe types.Recipe) (types.Recipe, error)
	Delete(ctx context.Context, id int) error
	List(ctx context.Context, filter store.RecipeFilter) ([]types.RecipeSummary, error)
}

// TagResolver resolves a (name, color) pair to a tag, creating it
// lazily on first use.
type TagResolver interface {
	Resolve(ctx context.Context, name, color string) (types.Tag, error)
}

// ActivityPublisher emits recipe mutation events.
type ActivityPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// RecipeService encapsulates recipe use-cases: tag resolution, the
// owner-or-admin permission contract, and activity publishing.
type RecipeService struct {
	repo   RecipeRepository
	tags   TagResolver
	bus    ActivityPublisher
	logger *zap.Logger
}

func NewRecipeService(repo RecipeRepository, tags TagResolver, bus ActivityPublisher, logger *zap.Logger) *RecipeService {
	return &RecipeService{
		repo:   repo,
		tags:   tags,
		bus:    bus,
		logger: logger,
	}
}

// Create persists a new recipe owned by the actor. Tags are resolved
// before the transactional write; block order follows the input slice.
func (s *RecipeService) Create(ctx context.Context, actor types.User, input types.RecipeInput) (types.Recipe, error) {
	tags, err := s.resolveTags(ctx, input.Tags)
	if err != nil {
		return types.Recipe{}, err
	}

	recipe := types.Recipe{
		Name:    strings.TrimSpace(input.Name),
		OwnerID: actor.ID,
		Tags:    tags,
		Blocks:  blocksFromInput(input.Blocks),
	}

	created, err := s.repo.Create(ctx, recipe)
	if err != nil {
		return types.Recipe{}, err
	}
	created.OwnerName = actor.Name

	s.publish(ctx, types.EventRecipeCreated, created, actor)
	return created, nil
}

func (s *RecipeService) Get(ctx context.Context, id int) (types.Recipe, error) {
	return s.repo.Get(ctx, id)
}

// Update replaces the recipe's name, tags, and blocks. The existence
// check runs before the permission check, so a missing recipe is
// reported as not found even to callers who could not have edited it.
func (s *RecipeService) Update(ctx context.Context, actor types.User, id int, input types.RecipeInput) (types.Recipe, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Recipe{}, err
	}
	if !canEdit(actor, current) {
		return types.Recipe{}, ErrForbidden
	}

	tags, err := s.resolveTags(ctx, input.Tags)
	if err != nil {
		return types.Recipe{}, err
	}

	recipe := types.Recipe{
		ID:      id,
		Name:    strings.TrimSpace(input.Name),
		OwnerID: current.OwnerID,
		Tags:    tags,
		Blocks:  blocksFromInput(input.Blocks),
	}

	updated, err := s.repo.Update(ctx, recipe)
	if err != nil {
		return types.Recipe{}, err
	}
	updated.OwnerName = current.OwnerName

	s.publish(ctx, types.EventRecipeUpdated, updated, actor)
	return updated, nil
}

// Delete removes the recipe under the same permission contract as
// Update. Shared tags stay behind.
func (s *RecipeService) Delete(ctx context.Context, actor types.User, id int) error {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !canEdit(actor, current) {
		return ErrForbidden
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.publish(ctx, types.EventRecipeDeleted, current, actor)
	return nil
}

// List returns recipe summaries matching a free-text query and/or a
// required tag set, most recently modified first.
func (s *RecipeService) List(ctx context.Context, query string, tagIDs []int) ([]types.RecipeSummary, error) {
	return s.repo.List(ctx, store.RecipeFilter{
		Query:  query,
		TagIDs: tagIDs,
	})
}

func (s *RecipeService) resolveTags(ctx context.Context, inputs []types.TagInput) ([]types.Tag, error) {
	tags := make([]types.Tag, 0, len(inputs))
	seen := make(map[types.TagInput]bool, len(inputs))
	for _, input := range inputs {
		input.Name = strings.TrimSpace(input.Name)
		input.Color = strings.TrimSpace(input.Color)
		if seen[input] {
			continue
		}
		seen[input] = true

		tag, err := s.tags.Resolve(ctx, input.Name, input.Color)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// publish emits an activity event. Best-effort: a broker failure is
// logged and never surfaced to the client.
func (s *RecipeService) publish(ctx context.Context, eventType string, recipe types.Recipe, actor types.User) {
	event := types.ActivityEvent{
		Type:     eventType,
		RecipeID: recipe.ID,
		ActorID:  actor.ID,
		Name:     recipe.Name,
		At:       time.Now(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal activity event", zap.Error(err))
		return
	}
	if _, err := s.bus.Publish(ctx, events.ActivityChannel, data, map[string]string{"type": eventType}); err != nil {
		s.logger.Warn("publish activity event",
			zap.String("type", eventType),
			zap.Int("recipe_id", recipe.ID),
			zap.Error(err),
		)
	}
}

func canEdit(actor types.User, recipe types.Recipe) bool {
	return actor.ID == recipe.OwnerID || actor.IsAdmin()
}

func blocksFromInput(inputs []types.BlockInput) []types.Block {
	blocks := make([]types.Block, 0, len(inputs))
	for i, input := range inputs {
		block := types.Block{
			Order: i,
			Kind:  input.Kind,
		}
		switch input.Kind {
		case types.BlockKindText:
			block.Text = input.Text
		case types.BlockKindPhoto:
			block.PhotoURL = input.PhotoURL
		}
		blocks = append(blocks, block)
	}
	return blocks
}
