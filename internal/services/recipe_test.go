package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tastebook/apiserver/internal/store"
	"github.com/tastebook/apiserver/types"
	"go.uber.org/zap"
)

type fakeRecipeRepo struct {
	nextID  int
	recipes map[int]types.Recipe
	deleted []int
}

func newFakeRecipeRepo() *fakeRecipeRepo {
	return &fakeRecipeRepo{nextID: 1, recipes: make(map[int]types.Recipe)}
}

func (f *fakeRecipeRepo) Create(ctx context.Context, recipe types.Recipe) (types.Recipe, error) {
	recipe.ID = f.nextID
	f.nextID++
	f.recipes[recipe.ID] = recipe
	return recipe, nil
}

func (f *fakeRecipeRepo) Get(ctx context.Context, id int) (types.Recipe, error) {
	recipe, ok := f.recipes[id]
	if !ok {
		return types.Recipe{}, store.ErrNotFound
	}
	return recipe, nil
}

func (f *fakeRecipeRepo) Update(ctx context.Context, recipe types.Recipe) (types.Recipe, error) {
	if _, ok := f.recipes[recipe.ID]; !ok {
		return types.Recipe{}, store.ErrNotFound
	}
	f.recipes[recipe.ID] = recipe
	return recipe, nil
}

func (f *fakeRecipeRepo) Delete(ctx context.Context, id int) error {
	if _, ok := f.recipes[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.recipes, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeRecipeRepo) List(ctx context.Context, filter store.RecipeFilter) ([]types.RecipeSummary, error) {
	return nil, nil
}

type fakeTagResolver struct {
	nextID int
	tags   map[[2]string]types.Tag
	calls  int
}

func newFakeTagResolver() *fakeTagResolver {
	return &fakeTagResolver{nextID: 1, tags: make(map[[2]string]types.Tag)}
}

func (f *fakeTagResolver) Resolve(ctx context.Context, name, color string) (types.Tag, error) {
	f.calls++
	key := [2]string{name, color}
	if tag, ok := f.tags[key]; ok {
		return tag, nil
	}
	tag := types.Tag{ID: f.nextID, Name: name, Color: color}
	f.nextID++
	f.tags[key] = tag
	return tag, nil
}

type fakeBus struct {
	published []string
	fail      bool
}

func (f *fakeBus) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if f.fail {
		return "", errors.New("broker down")
	}
	f.published = append(f.published, attrs["type"])
	return "msg-1", nil
}

func newTestRecipeService() (*RecipeService, *fakeRecipeRepo, *fakeTagResolver, *fakeBus) {
	repo := newFakeRecipeRepo()
	tags := newFakeTagResolver()
	bus := &fakeBus{}
	return NewRecipeService(repo, tags, bus, zap.NewNop()), repo, tags, bus
}

var (
	owner    = types.User{ID: 1, Name: "Alice", Role: types.RoleUser}
	stranger = types.User{ID: 2, Name: "Bob", Role: types.RoleUser}
	admin    = types.User{ID: 3, Name: "Root", Role: types.RoleAdmin}
)

func twoBlockInput() types.RecipeInput {
	return types.RecipeInput{
		Name: "Hot Chocolate",
		Tags: []types.TagInput{{Name: "Drink", Color: "#663300"}},
		Blocks: []types.BlockInput{
			{Kind: types.BlockKindText, Text: "Melt the chocolate."},
			{Kind: types.BlockKindPhoto, PhotoURL: "https://img.example/u1.jpg"},
		},
	}
}

func TestCreateOrdersBlocksByInputPosition(t *testing.T) {
	svc, repo, _, bus := newTestRecipeService()

	created, err := svc.Create(context.Background(), owner, twoBlockInput())
	require.NoError(t, err)

	stored := repo.recipes[created.ID]
	require.Len(t, stored.Blocks, 2)
	assert.Equal(t, 0, stored.Blocks[0].Order)
	assert.Equal(t, types.BlockKindText, stored.Blocks[0].Kind)
	assert.Equal(t, "Melt the chocolate.", stored.Blocks[0].Text)
	assert.Equal(t, 1, stored.Blocks[1].Order)
	assert.Equal(t, "https://img.example/u1.jpg", stored.Blocks[1].PhotoURL)

	assert.Equal(t, owner.ID, stored.OwnerID)
	assert.Equal(t, []string{types.EventRecipeCreated}, bus.published)
}

func TestCreateResolvesEachTagPairOnce(t *testing.T) {
	svc, _, tags, _ := newTestRecipeService()

	input := twoBlockInput()
	input.Tags = []types.TagInput{
		{Name: "Vegan", Color: "#00ff00"},
		{Name: "Vegan", Color: "#00ff00"},
		{Name: "Vegan", Color: "#ff0000"},
	}

	created, err := svc.Create(context.Background(), owner, input)
	require.NoError(t, err)

	// Same (name, color) pair dedupes; same name with another color does not.
	assert.Equal(t, 2, tags.calls)
	assert.Len(t, created.Tags, 2)
}

func TestTagResolutionIsIdempotent(t *testing.T) {
	svc, _, _, _ := newTestRecipeService()

	first, err := svc.Create(context.Background(), owner, twoBlockInput())
	require.NoError(t, err)
	second, err := svc.Create(context.Background(), owner, twoBlockInput())
	require.NoError(t, err)

	require.Len(t, first.Tags, 1)
	require.Len(t, second.Tags, 1)
	assert.Equal(t, first.Tags[0].ID, second.Tags[0].ID)
}

func TestUpdateReportsMissingBeforeForbidden(t *testing.T) {
	svc, _, _, _ := newTestRecipeService()

	_, err := svc.Update(context.Background(), stranger, 99, twoBlockInput())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdatePermissions(t *testing.T) {
	svc, repo, _, _ := newTestRecipeService()

	created, err := svc.Create(context.Background(), owner, twoBlockInput())
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), stranger, created.ID, twoBlockInput())
	assert.ErrorIs(t, err, ErrForbidden)

	replacement := types.RecipeInput{
		Name:   "Iced Chocolate",
		Blocks: []types.BlockInput{{Kind: types.BlockKindText, Text: "Chill it."}},
	}
	_, err = svc.Update(context.Background(), owner, created.ID, replacement)
	require.NoError(t, err)

	stored := repo.recipes[created.ID]
	require.Len(t, stored.Blocks, 1)
	assert.Equal(t, "Chill it.", stored.Blocks[0].Text)
	assert.Equal(t, owner.ID, stored.OwnerID, "ownership survives edits")

	_, err = svc.Update(context.Background(), admin, created.ID, twoBlockInput())
	assert.NoError(t, err, "admins may edit anyone's recipe")
}

func TestDeletePermissions(t *testing.T) {
	svc, repo, _, bus := newTestRecipeService()

	created, err := svc.Create(context.Background(), owner, twoBlockInput())
	require.NoError(t, err)

	err = svc.Delete(context.Background(), stranger, created.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	err = svc.Delete(context.Background(), owner, created.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{created.ID}, repo.deleted)
	assert.Contains(t, bus.published, types.EventRecipeDeleted)

	err = svc.Delete(context.Background(), owner, created.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestBrokerFailureDoesNotFailTheWrite(t *testing.T) {
	svc, repo, _, bus := newTestRecipeService()
	bus.fail = true

	created, err := svc.Create(context.Background(), owner, twoBlockInput())
	require.NoError(t, err)
	assert.Contains(t, repo.recipes, created.ID)
}
