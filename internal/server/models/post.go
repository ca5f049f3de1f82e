package models

import "time"

type Post struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	UserID      string    `json:"user"`
	Image       Image     `json:"image"`
	Likes       []string  `json:"likes"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// PostWithComments is the detail view of a single post.
type PostWithComments struct {
	*Post
	Comments []*Comment `json:"comments"`
}
