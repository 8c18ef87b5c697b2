package comment

import "time"

type Comment struct {
	ID        string
	BlogID    string
	AuthorID  string
	Content   string
	CreatedAt time.Time
}

// View is the comment shape returned to clients, joined with the author's
// username.
type View struct {
	ID             string    `json:"id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
	AuthorUsername string    `json:"authorUsername"`
}
