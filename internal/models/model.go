package models

import "time"

type User struct {
	ID           string
	Name         string
	Email        string
	Age          *int
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Post struct {
	ID        string
	AuthorID  string
	Title     string
	Body      string
	Published bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Comment struct {
	ID        string
	PostID    string
	AuthorID  string
	Text      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MutationType is the kind of change carried by a subscription event.
type MutationType string

const (
	Created MutationType = "CREATED"
	Updated MutationType = "UPDATED"
	Deleted MutationType = "DELETED"
)

// Clone returns a copy that shares nothing mutable with u.
func (u *User) Clone() *User {
	c := *u
	if u.Age != nil {
		age := *u.Age
		c.Age = &age
	}
	return &c
}

func (p *Post) Clone() *Post {
	c := *p
	return &c
}

func (c *Comment) Clone() *Comment {
	cc := *c
	return &cc
}
