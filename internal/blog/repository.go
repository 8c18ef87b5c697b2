package blog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("blog not found")

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, authorID, title, content, photoPath string) (Blog, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Blog{}, fmt.Errorf("generate blog id: %w", err)
	}

	now := time.Now().UTC()
	b := Blog{
		ID:        id.String(),
		AuthorID:  authorID,
		Title:     title,
		Content:   content,
		PhotoPath: photoPath,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO blogs (id, author_id, title, content, photo_path, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, b.ID, b.AuthorID, b.Title, b.Content, b.PhotoPath, now)
	if err != nil {
		return Blog{}, fmt.Errorf("insert blog: %w", err)
	}

	return b, nil
}

func (r *Repository) List(ctx context.Context) ([]Blog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, author_id, title, content, photo_path, created_at, updated_at
		FROM blogs
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query blogs: %w", err)
	}
	defer rows.Close()

	blogs := make([]Blog, 0)
	for rows.Next() {
		var b Blog
		if err := rows.Scan(&b.ID, &b.AuthorID, &b.Title, &b.Content, &b.PhotoPath, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan blog: %w", err)
		}
		blogs = append(blogs, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blogs: %w", err)
	}

	return blogs, nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (Blog, error) {
	var b Blog
	err := r.db.QueryRowContext(ctx, `
		SELECT id, author_id, title, content, photo_path, created_at, updated_at
		FROM blogs
		WHERE id = $1
	`, id).Scan(&b.ID, &b.AuthorID, &b.Title, &b.Content, &b.PhotoPath, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Blog{}, ErrNotFound
		}
		return Blog{}, fmt.Errorf("query blog: %w", err)
	}
	return b, nil
}

// GetDetails resolves a post together with the author's display identity.
func (r *Repository) GetDetails(ctx context.Context, id string) (Details, error) {
	var d Details
	err := r.db.QueryRowContext(ctx, `
		SELECT b.id, b.title, b.content, b.photo_path, b.created_at, u.name, u.username
		FROM blogs b
		JOIN users u ON u.id = b.author_id
		WHERE b.id = $1
	`, id).Scan(&d.ID, &d.Title, &d.Content, &d.Photo, &d.CreatedAt, &d.AuthorName, &d.AuthorUsername)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Details{}, ErrNotFound
		}
		return Details{}, fmt.Errorf("query blog details: %w", err)
	}
	return d, nil
}

// ListPhotoPaths returns every photo URL currently referenced by a post.
// The maintenance sweep diffs this against the storage directory.
func (r *Repository) ListPhotoPaths(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT photo_path FROM blogs`)
	if err != nil {
		return nil, fmt.Errorf("query photo paths: %w", err)
	}
	defer rows.Close()

	paths := make([]string, 0)
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan photo path: %w", err)
		}
		paths = append(paths, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate photo paths: %w", err)
	}

	return paths, nil
}

func (r *Repository) Update(ctx context.Context, b Blog) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE blogs
		SET title = $2, content = $3, photo_path = $4, updated_at = $5
		WHERE id = $1
	`, b.ID, b.Title, b.Content, b.PhotoPath, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update blog: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a post and its comments in one transaction.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE blog_id = $1`, id); err != nil {
		return fmt.Errorf("delete blog comments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM blogs WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete blog: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete tx: %w", err)
	}

	return nil
}
