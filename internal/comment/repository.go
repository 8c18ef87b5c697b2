package comment

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, blogID, authorID, content string) (Comment, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Comment{}, fmt.Errorf("generate comment id: %w", err)
	}

	c := Comment{
		ID:        id.String(),
		BlogID:    blogID,
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO comments (id, blog_id, author_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, c.ID, c.BlogID, c.AuthorID, c.Content, c.CreatedAt)
	if err != nil {
		return Comment{}, fmt.Errorf("insert comment: %w", err)
	}

	return c, nil
}

// ListByBlog returns a blog's comments, oldest first, joined with the
// author's username.
func (r *Repository) ListByBlog(ctx context.Context, blogID string) ([]View, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.content, c.created_at, u.username
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.blog_id = $1
		ORDER BY c.created_at ASC
	`, blogID)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	views := make([]View, 0)
	for rows.Next() {
		var v View
		if err := rows.Scan(&v.ID, &v.Content, &v.CreatedAt, &v.AuthorUsername); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		views = append(views, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}

	return views, nil
}
