package store

import (
	"context"
	"database/sql"

	"github.com/tastebook/apiserver/types"
)

// TagRepository handles persistence for tags.
type TagRepository struct {
	db *sql.DB
}

func NewTagRepository(db *sql.DB) *TagRepository {
	return &TagRepository{db: db}
}

// Resolve returns the tag matching (name, color), creating it if absent.
// The no-op DO UPDATE makes RETURNING yield the existing row's id, so a
// create racing a concurrent insert resolves to that row instead of
// erroring or duplicating.
func (r *TagRepository) Resolve(ctx context.Context, name, color string) (types.Tag, error) {
	const query = `
		INSERT INTO tags (name, color)
		VALUES ($1, $2)
		ON CONFLICT (name, color) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`
	tag := types.Tag{Name: name, Color: color}
	if err := r.db.QueryRowContext(ctx, query, name, color).Scan(&tag.ID); err != nil {
		return types.Tag{}, err
	}
	return tag, nil
}
