package store

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"blog/internal/apperr"
	"blog/internal/models"
)

// Memory is a Store held in process memory. Every method runs under one
// lock, so cascades are atomic.
type Memory struct {
	mu sync.RWMutex

	users    map[string]*models.User
	posts    map[string]*models.Post
	comments map[string]*models.Comment

	// insertion order
	userOrder    []string
	postOrder    []string
	commentOrder []string

	now func() time.Time
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		users:    make(map[string]*models.User),
		posts:    make(map[string]*models.Post),
		comments: make(map[string]*models.Comment),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) Close() error { return nil }

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func removeID(order []string, id string) []string {
	return slices.DeleteFunc(order, func(s string) bool { return s == id })
}

// ---- users

func (m *Memory) Users(ctx context.Context, f UserFilter, p Page) ([]*models.User, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if _, err := orderColumn(userOrderFields, p.OrderBy); err != nil {
		return nil, err
	}
	m.mu.RLock()
	var out []*models.User
	for _, id := range m.userOrder {
		u := m.users[id]
		if f.Query != "" && !containsFold(u.Name, f.Query) {
			continue
		}
		out = append(out, u.Clone())
	}
	m.mu.RUnlock()

	if p.OrderBy != nil {
		slices.SortStableFunc(out, orderFunc(p.OrderBy, compareUsers))
	}
	return paginate(out, func(u *models.User) string { return u.ID }, p), nil
}

func compareUsers(field string, a, b *models.User) int {
	switch field {
	case "name":
		return strings.Compare(a.Name, b.Name)
	case "age":
		return compareOptional(a.Age, b.Age)
	case "updatedAt":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	}
	return a.CreatedAt.Compare(b.CreatedAt)
}

func (m *Memory) User(ctx context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperr.NotFoundf("user not found")
	}
	return u.Clone(), nil
}

func (m *Memory) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u := m.userByEmail(email); u != nil {
		return u.Clone(), nil
	}
	return nil, apperr.NotFoundf("user not found")
}

func (m *Memory) userByEmail(email string) *models.User {
	for _, u := range m.users {
		if u.Email == email {
			return u
		}
	}
	return nil
}

func (m *Memory) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.userByEmail(u.Email) != nil {
		return nil, apperr.ErrEmailTaken
	}
	stored := u.Clone()
	stored.ID = uuid.NewString()
	stored.CreatedAt = m.now()
	stored.UpdatedAt = stored.CreatedAt
	m.users[stored.ID] = stored
	m.userOrder = append(m.userOrder, stored.ID)
	return stored.Clone(), nil
}

func (m *Memory) UpdateUser(ctx context.Context, id string, patch UserPatch) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperr.NotFoundf("user not found")
	}
	if patch.Email != nil && *patch.Email != u.Email {
		if m.userByEmail(*patch.Email) != nil {
			return nil, apperr.ErrEmailTaken
		}
	}
	next := u.Clone()
	if patch.Name != nil {
		next.Name = *patch.Name
	}
	if patch.Email != nil {
		next.Email = *patch.Email
	}
	if patch.Age != nil {
		age := *patch.Age
		next.Age = &age
	}
	if patch.PasswordHash != nil {
		next.PasswordHash = *patch.PasswordHash
	}
	next.UpdatedAt = m.now()
	m.users[id] = next
	return next.Clone(), nil
}

func (m *Memory) DeleteUser(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperr.NotFoundf("user not found")
	}
	for _, pid := range slices.Clone(m.postOrder) {
		if m.posts[pid].AuthorID == id {
			m.deletePostLocked(pid)
		}
	}
	for _, cid := range slices.Clone(m.commentOrder) {
		if m.comments[cid].AuthorID == id {
			m.deleteCommentLocked(cid)
		}
	}
	delete(m.users, id)
	m.userOrder = removeID(m.userOrder, id)
	return u.Clone(), nil
}

// ---- posts

func (m *Memory) matchPost(p *models.Post, f PostFilter) bool {
	if f.AuthorID != "" && p.AuthorID != f.AuthorID {
		return false
	}
	if f.Published != nil && p.Published != *f.Published {
		return false
	}
	if f.Query != "" && !containsFold(p.Title, f.Query) && !containsFold(p.Body, f.Query) {
		return false
	}
	return true
}

func (m *Memory) Posts(ctx context.Context, f PostFilter, p Page) ([]*models.Post, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if _, err := orderColumn(postOrderFields, p.OrderBy); err != nil {
		return nil, err
	}
	m.mu.RLock()
	var out []*models.Post
	for _, id := range m.postOrder {
		if post := m.posts[id]; m.matchPost(post, f) {
			out = append(out, post.Clone())
		}
	}
	m.mu.RUnlock()

	if p.OrderBy != nil {
		slices.SortStableFunc(out, orderFunc(p.OrderBy, comparePosts))
	}
	return paginate(out, func(p *models.Post) string { return p.ID }, p), nil
}

func comparePosts(field string, a, b *models.Post) int {
	switch field {
	case "title":
		return strings.Compare(a.Title, b.Title)
	case "body":
		return strings.Compare(a.Body, b.Body)
	case "published":
		return compareBool(a.Published, b.Published)
	case "updatedAt":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	}
	return a.CreatedAt.Compare(b.CreatedAt)
}

func (m *Memory) CountPosts(ctx context.Context, f PostFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, p := range m.posts {
		if m.matchPost(p, f) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) Post(ctx context.Context, id string) (*models.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, apperr.NotFoundf("post not found")
	}
	return p.Clone(), nil
}

func (m *Memory) CreatePost(ctx context.Context, p *models.Post) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[p.AuthorID]; !ok {
		return nil, apperr.NotFoundf("user not found")
	}
	stored := p.Clone()
	stored.ID = uuid.NewString()
	stored.CreatedAt = m.now()
	stored.UpdatedAt = stored.CreatedAt
	m.posts[stored.ID] = stored
	m.postOrder = append(m.postOrder, stored.ID)
	return stored.Clone(), nil
}

func (m *Memory) UpdatePost(ctx context.Context, id string, patch PostPatch) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, apperr.NotFoundf("post not found")
	}
	next := p.Clone()
	if patch.Title != nil {
		next.Title = *patch.Title
	}
	if patch.Body != nil {
		next.Body = *patch.Body
	}
	if patch.Published != nil {
		next.Published = *patch.Published
	}
	next.UpdatedAt = m.now()
	m.posts[id] = next
	return next.Clone(), nil
}

func (m *Memory) DeletePost(ctx context.Context, id string) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, apperr.NotFoundf("post not found")
	}
	m.deletePostLocked(id)
	return p.Clone(), nil
}

func (m *Memory) deletePostLocked(id string) {
	for _, cid := range slices.Clone(m.commentOrder) {
		if m.comments[cid].PostID == id {
			m.deleteCommentLocked(cid)
		}
	}
	delete(m.posts, id)
	m.postOrder = removeID(m.postOrder, id)
}

// ---- comments

func matchComment(c *models.Comment, f CommentFilter) bool {
	return (f.AuthorID == "" || c.AuthorID == f.AuthorID) &&
		(f.PostID == "" || c.PostID == f.PostID)
}

func (m *Memory) Comments(ctx context.Context, f CommentFilter, p Page) ([]*models.Comment, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if _, err := orderColumn(commentOrderFields, p.OrderBy); err != nil {
		return nil, err
	}
	m.mu.RLock()
	var out []*models.Comment
	for _, id := range m.commentOrder {
		if c := m.comments[id]; matchComment(c, f) {
			out = append(out, c.Clone())
		}
	}
	m.mu.RUnlock()

	if p.OrderBy != nil {
		slices.SortStableFunc(out, orderFunc(p.OrderBy, compareComments))
	}
	return paginate(out, func(c *models.Comment) string { return c.ID }, p), nil
}

func compareComments(field string, a, b *models.Comment) int {
	switch field {
	case "text":
		return strings.Compare(a.Text, b.Text)
	case "updatedAt":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	}
	return a.CreatedAt.Compare(b.CreatedAt)
}

func (m *Memory) CountComments(ctx context.Context, f CommentFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, c := range m.comments {
		if matchComment(c, f) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) Comment(ctx context.Context, id string) (*models.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.comments[id]
	if !ok {
		return nil, apperr.NotFoundf("comment not found")
	}
	return c.Clone(), nil
}

func (m *Memory) CreateComment(ctx context.Context, c *models.Comment) (*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[c.AuthorID]; !ok {
		return nil, apperr.NotFoundf("user not found")
	}
	if _, ok := m.posts[c.PostID]; !ok {
		return nil, apperr.NotFoundf("post not found")
	}
	stored := c.Clone()
	stored.ID = uuid.NewString()
	stored.CreatedAt = m.now()
	stored.UpdatedAt = stored.CreatedAt
	m.comments[stored.ID] = stored
	m.commentOrder = append(m.commentOrder, stored.ID)
	return stored.Clone(), nil
}

func (m *Memory) UpdateComment(ctx context.Context, id string, patch CommentPatch) (*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[id]
	if !ok {
		return nil, apperr.NotFoundf("comment not found")
	}
	next := c.Clone()
	if patch.Text != nil {
		next.Text = *patch.Text
	}
	next.UpdatedAt = m.now()
	m.comments[id] = next
	return next.Clone(), nil
}

func (m *Memory) DeleteComment(ctx context.Context, id string) (*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[id]
	if !ok {
		return nil, apperr.NotFoundf("comment not found")
	}
	m.deleteCommentLocked(id)
	return c.Clone(), nil
}

func (m *Memory) deleteCommentLocked(id string) {
	delete(m.comments, id)
	m.commentOrder = removeID(m.commentOrder, id)
}

// ---- ordering helpers

func orderFunc[T any](o *OrderBy, compare func(string, T, T) int) func(a, b T) int {
	return func(a, b T) int {
		c := compare(o.Field, a, b)
		if o.Desc {
			return -c
		}
		return c
	}
}

// compareOptional sorts nil before any value.
func compareOptional(a, b *int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return cmp.Compare(*a, *b)
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}
