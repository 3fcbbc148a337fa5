package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/tastebook/apiserver/types"
)

// RecipeFilter narrows a recipe listing. Zero value matches everything.
type RecipeFilter struct {
	// Query matches case-insensitively as a substring of the recipe
	// name or of any associated tag's name.
	Query string

	// TagIDs, when non-empty, requires the recipe to carry every one
	// of these tags.
	TagIDs []int
}

// RecipeRepository handles persistence for recipes and their child
// collections (blocks, tag links). All multi-entity writes run inside a
// single transaction so a recipe never drifts into a half-applied state.
type RecipeRepository struct {
	db *sql.DB
}

func NewRecipeRepository(db *sql.DB) *RecipeRepository {
	return &RecipeRepository{db: db}
}

// Create persists a recipe with its blocks and tag links. Tags must be
// resolved to identifiers before the call. Block order is taken from
// slice position.
func (r *RecipeRepository) Create(ctx context.Context, recipe types.Recipe) (types.Recipe, error) {
	now := time.Now()
	recipe.CreatedAt = now
	recipe.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Recipe{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const query = `
		INSERT INTO recipes (name, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	if err := tx.QueryRowContext(
		ctx,
		query,
		recipe.Name,
		recipe.OwnerID,
		recipe.CreatedAt,
		recipe.UpdatedAt,
	).Scan(&recipe.ID); err != nil {
		return types.Recipe{}, err
	}

	if err := insertChildren(ctx, tx, &recipe); err != nil {
		return types.Recipe{}, err
	}

	if err := tx.Commit(); err != nil {
		return types.Recipe{}, err
	}
	return recipe, nil
}

// Get returns the recipe with its owner's display name, tags, and
// blocks in ascending order.
func (r *RecipeRepository) Get(ctx context.Context, id int) (types.Recipe, error) {
	const query = `
		SELECT r.id, r.name, r.owner_id, u.name, r.created_at, r.updated_at
		FROM recipes r
		JOIN users u ON u.id = r.owner_id
		WHERE r.id = $1`
	var recipe types.Recipe
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&recipe.ID,
		&recipe.Name,
		&recipe.OwnerID,
		&recipe.OwnerName,
		&recipe.CreatedAt,
		&recipe.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Recipe{}, ErrNotFound
		}
		return types.Recipe{}, err
	}

	recipe.Blocks, err = r.blocksFor(ctx, id)
	if err != nil {
		return types.Recipe{}, err
	}

	tagsByRecipe, err := r.tagsFor(ctx, []int{id})
	if err != nil {
		return types.Recipe{}, err
	}
	recipe.Tags = tagsByRecipe[id]
	if recipe.Tags == nil {
		recipe.Tags = []types.Tag{}
	}

	return recipe, nil
}

// Update replaces the recipe's name, block set, and tag link set in one
// transaction. Old blocks are deleted and new ones inserted with fresh
// ordering; this is a full replace, not a merge.
func (r *RecipeRepository) Update(ctx context.Context, recipe types.Recipe) (types.Recipe, error) {
	recipe.UpdatedAt = time.Now()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Recipe{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const query = `
		UPDATE recipes
		SET name = $1,
			updated_at = $2
		WHERE id = $3`
	result, err := tx.ExecContext(ctx, query, recipe.Name, recipe.UpdatedAt, recipe.ID)
	if err != nil {
		return types.Recipe{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Recipe{}, err
	}
	if affected == 0 {
		return types.Recipe{}, ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM blocks WHERE recipe_id = $1`, recipe.ID); err != nil {
		return types.Recipe{}, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM recipe_tags WHERE recipe_id = $1`, recipe.ID); err != nil {
		return types.Recipe{}, err
	}

	if err := insertChildren(ctx, tx, &recipe); err != nil {
		return types.Recipe{}, err
	}

	if err := tx.Commit(); err != nil {
		return types.Recipe{}, err
	}
	return recipe, nil
}

// Delete removes the recipe; blocks and tag links go with it via
// cascade. Tag rows are never touched.
func (r *RecipeRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM recipes WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns summaries of recipes matching the filter, most recently
// modified first.
func (r *RecipeRepository) List(ctx context.Context, filter RecipeFilter) ([]types.RecipeSummary, error) {
	query := strings.TrimSpace(filter.Query)
	pattern := "%" + escapeLike(query) + "%"

	tagIDs := make([]int64, 0, len(filter.TagIDs))
	for _, id := range filter.TagIDs {
		tagIDs = append(tagIDs, int64(id))
	}

	const listQuery = `
		SELECT r.id, r.name, u.name, r.updated_at,
		       CASE WHEN fb.kind = 'PHOTO' THEN fb.photo_url END
		FROM recipes r
		JOIN users u ON u.id = r.owner_id
		LEFT JOIN blocks fb ON fb.recipe_id = r.id AND fb.ord = 0
		WHERE ($1 = ''
			OR r.name ILIKE $2
			OR EXISTS (
				SELECT 1 FROM recipe_tags rt
				JOIN tags t ON t.id = rt.tag_id
				WHERE rt.recipe_id = r.id AND t.name ILIKE $2))
		AND ($3 = 0 OR (
			SELECT COUNT(*) FROM recipe_tags rt
			WHERE rt.recipe_id = r.id AND rt.tag_id = ANY($4)) = $3)
		ORDER BY r.updated_at DESC`
	rows, err := r.db.QueryContext(ctx, listQuery, query, pattern, len(tagIDs), pq.Array(tagIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]types.RecipeSummary, 0)
	ids := make([]int, 0)
	for rows.Next() {
		var summary types.RecipeSummary
		var photoURL sql.NullString
		if err := rows.Scan(
			&summary.ID,
			&summary.Name,
			&summary.OwnerName,
			&summary.UpdatedAt,
			&photoURL,
		); err != nil {
			return nil, err
		}
		if photoURL.Valid {
			summary.PhotoURL = &photoURL.String
		}
		summary.Tags = []types.Tag{}
		summaries = append(summaries, summary)
		ids = append(ids, summary.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return summaries, nil
	}

	tagsByRecipe, err := r.tagsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range summaries {
		if tags := tagsByRecipe[summaries[i].ID]; tags != nil {
			summaries[i].Tags = tags
		}
	}

	return summaries, nil
}

func (r *RecipeRepository) blocksFor(ctx context.Context, recipeID int) ([]types.Block, error) {
	const query = `
		SELECT id, recipe_id, ord, kind, text, photo_url
		FROM blocks
		WHERE recipe_id = $1
		ORDER BY ord`
	rows, err := r.db.QueryContext(ctx, query, recipeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	blocks := make([]types.Block, 0)
	for rows.Next() {
		var block types.Block
		if err := rows.Scan(
			&block.ID,
			&block.RecipeID,
			&block.Order,
			&block.Kind,
			&block.Text,
			&block.PhotoURL,
		); err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	return blocks, rows.Err()
}

func (r *RecipeRepository) tagsFor(ctx context.Context, recipeIDs []int) (map[int][]types.Tag, error) {
	ids := make([]int64, 0, len(recipeIDs))
	for _, id := range recipeIDs {
		ids = append(ids, int64(id))
	}

	const query = `
		SELECT rt.recipe_id, t.id, t.name, t.color
		FROM recipe_tags rt
		JOIN tags t ON t.id = rt.tag_id
		WHERE rt.recipe_id = ANY($1)
		ORDER BY t.name, t.color`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tagsByRecipe := make(map[int][]types.Tag)
	for rows.Next() {
		var recipeID int
		var tag types.Tag
		if err := rows.Scan(&recipeID, &tag.ID, &tag.Name, &tag.Color); err != nil {
			return nil, err
		}
		tagsByRecipe[recipeID] = append(tagsByRecipe[recipeID], tag)
	}
	return tagsByRecipe, rows.Err()
}

func insertChildren(ctx context.Context, tx *sql.Tx, recipe *types.Recipe) error {
	const blockQuery = `
		INSERT INTO blocks (recipe_id, ord, kind, text, photo_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	for i := range recipe.Blocks {
		recipe.Blocks[i].RecipeID = recipe.ID
		recipe.Blocks[i].Order = i
		if err := tx.QueryRowContext(
			ctx,
			blockQuery,
			recipe.ID,
			i,
			recipe.Blocks[i].Kind,
			recipe.Blocks[i].Text,
			recipe.Blocks[i].PhotoURL,
		).Scan(&recipe.Blocks[i].ID); err != nil {
			return err
		}
	}

	const tagQuery = `
		INSERT INTO recipe_tags (recipe_id, tag_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`
	for _, tag := range recipe.Tags {
		if _, err := tx.ExecContext(ctx, tagQuery, recipe.ID, tag.ID); err != nil {
			return err
		}
	}

	return nil
}

// escapeLike neutralizes LIKE metacharacters so user queries match
// literally.
func escapeLike(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(s)
}
