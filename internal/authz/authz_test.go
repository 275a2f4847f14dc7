package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"blog/internal/apperr"
	"blog/internal/models"
)

func TestPostRules(t *testing.T) {
	draft := &models.Post{ID: "p1", AuthorID: "alice", Published: false}
	live := &models.Post{ID: "p2", AuthorID: "alice", Published: true}

	tests := []struct {
		name   string
		caller string
		post   *models.Post
		read   bool
		modify bool
	}{
		{"owner draft", "alice", draft, true, true},
		{"stranger draft", "bob", draft, false, false},
		{"anonymous draft", "", draft, false, false},
		{"stranger published", "bob", live, true, false},
		{"anonymous published", "", live, true, false},
		{"nil post", "alice", nil, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.read, CanReadPost(tt.caller, tt.post))
			assert.Equal(t, tt.modify, CanModifyPost(tt.caller, tt.post))
		})
	}
}

func TestCommentAndUserRules(t *testing.T) {
	c := &models.Comment{ID: "c1", AuthorID: "alice", PostID: "p1"}
	assert.True(t, CanModifyComment("alice", c))
	assert.False(t, CanModifyComment("bob", c))
	assert.False(t, CanModifyComment("", &models.Comment{}))

	u := &models.User{ID: "alice"}
	assert.True(t, CanSeeEmail("alice", u))
	assert.False(t, CanSeeEmail("bob", u))
	assert.False(t, CanSeeEmail("", &models.User{}))

	assert.True(t, CanModifyUser("alice", "alice"))
	assert.False(t, CanModifyUser("alice", "bob"))
	assert.False(t, CanModifyUser("", ""))
}

func TestRequireReturnsForbidden(t *testing.T) {
	p := &models.Post{AuthorID: "alice"}
	err := RequirePostOwner("bob", p, "delete")
	assert.True(t, apperr.IsKind(err, apperr.Forbidden))
	assert.EqualError(t, err, "unable to delete post")
	assert.NoError(t, RequirePostOwner("alice", p, "delete"))

	err = RequireCommentOwner("bob", &models.Comment{AuthorID: "alice"}, "update")
	assert.EqualError(t, err, "unable to update comment")

	assert.Error(t, RequireReadablePost("bob", p))
	assert.NoError(t, RequireReadablePost("alice", p))
}
