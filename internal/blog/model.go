package blog

import "time"

type Blog struct {
	ID        string
	AuthorID  string
	Title     string
	Content   string
	PhotoPath string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Summary is the list-view shape of a blog post.
type Summary struct {
	ID      string `json:"id"`
	Author  string `json:"author"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Photo   string `json:"photo"`
}

// Details is the single-post shape, joined with author identity.
type Details struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	Photo          string    `json:"photo"`
	CreatedAt      time.Time `json:"createdAt"`
	AuthorName     string    `json:"authorName"`
	AuthorUsername string    `json:"authorUsername"`
}

func (b Blog) Summary() Summary {
	return Summary{
		ID:      b.ID,
		Author:  b.AuthorID,
		Title:   b.Title,
		Content: b.Content,
		Photo:   b.PhotoPath,
	}
}
