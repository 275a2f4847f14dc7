package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blog/internal/apperr"
	"blog/internal/db"
	"blog/internal/models"
)

func newSQLite(t *testing.T) Store {
	t.Helper()
	conn, err := db.Open(db.SQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background(), conn, db.SQLite))
	s := NewSQL(conn, db.SQLite)
	t.Cleanup(func() { s.Close() })
	return s
}

// storeFactories lists the implementations every conformance test runs
// against. Build tags may add more.
var storeFactories = []struct {
	name string
	new  func(t *testing.T) Store
}{
	{"memory", func(*testing.T) Store { return NewMemory() }},
	{"sqlite", newSQLite},
}

func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	for _, f := range storeFactories {
		t.Run(f.name, func(t *testing.T) { fn(t, f.new(t)) })
	}
}

func intp(i int) *int       { return &i }
func strp(s string) *string { return &s }
func boolp(b bool) *bool    { return &b }

func mustUser(t *testing.T, s Store, name, email string) *models.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), &models.User{Name: name, Email: email, PasswordHash: "x"})
	require.NoError(t, err)
	return u
}

func mustPost(t *testing.T, s Store, author, title, body string, published bool) *models.Post {
	t.Helper()
	p, err := s.CreatePost(context.Background(), &models.Post{AuthorID: author, Title: title, Body: body, Published: published})
	require.NoError(t, err)
	return p
}

func mustComment(t *testing.T, s Store, author, post, text string) *models.Comment {
	t.Helper()
	c, err := s.CreateComment(context.Background(), &models.Comment{AuthorID: author, PostID: post, Text: text})
	require.NoError(t, err)
	return c
}

func postIDs(ps []*models.Post) []string {
	ids := make([]string, len(ps))
	for i, p := range ps {
		ids[i] = p.ID
	}
	return ids
}

func TestUserCRUD(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		u, err := s.CreateUser(ctx, &models.User{Name: "Manu", Email: "manu@example.com", Age: intp(30), PasswordHash: "h"})
		require.NoError(t, err)
		assert.NotEmpty(t, u.ID)
		assert.False(t, u.CreatedAt.IsZero())

		got, err := s.User(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "Manu", got.Name)
		require.NotNil(t, got.Age)
		assert.Equal(t, 30, *got.Age)

		byEmail, err := s.UserByEmail(ctx, "manu@example.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, byEmail.ID)

		updated, err := s.UpdateUser(ctx, u.ID, UserPatch{Name: strp("Manuel")})
		require.NoError(t, err)
		assert.Equal(t, "Manuel", updated.Name)
		assert.Equal(t, "manu@example.com", updated.Email)

		_, err = s.User(ctx, "missing")
		assert.True(t, apperr.IsKind(err, apperr.NotFound))
		_, err = s.UpdateUser(ctx, "missing", UserPatch{Name: strp("x")})
		assert.True(t, apperr.IsKind(err, apperr.NotFound))
		_, err = s.DeleteUser(ctx, "missing")
		assert.True(t, apperr.IsKind(err, apperr.NotFound))
	})
}

func TestEmailUniqueness(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		a := mustUser(t, s, "A", "a@x.com")
		b := mustUser(t, s, "B", "b@x.com")

		_, err := s.CreateUser(ctx, &models.User{Name: "A2", Email: "a@x.com", PasswordHash: "x"})
		assert.ErrorIs(t, err, apperr.ErrEmailTaken)

		_, err = s.UpdateUser(ctx, b.ID, UserPatch{Email: strp("a@x.com")})
		assert.ErrorIs(t, err, apperr.ErrEmailTaken)

		// Keeping one's own email is not a conflict.
		_, err = s.UpdateUser(ctx, a.ID, UserPatch{Email: strp("a@x.com")})
		assert.NoError(t, err)

		// Emails are case-sensitive as stored.
		_, err = s.CreateUser(ctx, &models.User{Name: "A3", Email: "A@x.com", PasswordHash: "x"})
		assert.NoError(t, err)

		users, err := s.Users(ctx, UserFilter{}, Page{})
		require.NoError(t, err)
		seen := map[string]bool{}
		for _, u := range users {
			assert.False(t, seen[u.Email], "duplicate email %s", u.Email)
			seen[u.Email] = true
		}
	})
}

func TestPostFilters(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		a := mustUser(t, s, "A", "a@x.com")
		b := mustUser(t, s, "B", "b@x.com")
		p1 := mustPost(t, s, a.ID, "GraphQL 101", "intro", true)
		p2 := mustPost(t, s, a.ID, "Drafts", "about graphql internals", false)
		p3 := mustPost(t, s, b.ID, "Music", "50% off_sale", true)

		all, err := s.Posts(ctx, PostFilter{}, Page{})
		require.NoError(t, err)
		assert.Equal(t, []string{p1.ID, p2.ID, p3.ID}, postIDs(all))

		published, err := s.Posts(ctx, PostFilter{Published: boolp(true)}, Page{})
		require.NoError(t, err)
		assert.Equal(t, []string{p1.ID, p3.ID}, postIDs(published))

		search, err := s.Posts(ctx, PostFilter{Query: "GRAPHQL"}, Page{})
		require.NoError(t, err)
		assert.Equal(t, []string{p1.ID, p2.ID}, postIDs(search))

		mine, err := s.Posts(ctx, PostFilter{AuthorID: a.ID, Query: "graphql"}, Page{})
		require.NoError(t, err)
		assert.Len(t, mine, 2)

		// LIKE wildcards in the query are matched literally.
		literal, err := s.Posts(ctx, PostFilter{Query: "0% off_"}, Page{})
		require.NoError(t, err)
		assert.Equal(t, []string{p3.ID}, postIDs(literal))
		underscore, err := s.Posts(ctx, PostFilter{Query: "_"}, Page{})
		require.NoError(t, err)
		assert.Len(t, underscore, 1)

		n, err := s.CountPosts(ctx, PostFilter{Published: boolp(true)})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})
}

func TestUserSearch(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		mustUser(t, s, "Manu Kem", "m@x.com")
		mustUser(t, s, "David", "d@x.com")
		users, err := s.Users(context.Background(), UserFilter{Query: "kem"}, Page{})
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, "Manu Kem", users[0].Name)
	})
}

func TestSearchFoldsUnicode(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		a := mustUser(t, s, "Émile Zola", "e@x.com")
		mustUser(t, s, "Emil", "emil@x.com")
		mustPost(t, s, a.ID, "ÇA IRA", "Über alles", true)

		users, err := s.Users(ctx, UserFilter{Query: "émile"}, Page{})
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, a.ID, users[0].ID)

		for _, q := range []string{"ça", "über"} {
			posts, err := s.Posts(ctx, PostFilter{Query: q}, Page{})
			require.NoError(t, err)
			assert.Len(t, posts, 1, q)
		}
	})
}

func TestCannotOrderUsersByEmail(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		mustUser(t, s, "A", "a@x.com")
		_, err := s.Users(context.Background(), UserFilter{}, Page{OrderBy: &OrderBy{Field: "email"}})
		assert.Equal(t, apperr.Validation, apperr.KindOf(err))
	})
}

func TestPagination(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		a := mustUser(t, s, "A", "a@x.com")
		var ids []string
		for _, title := range []string{"c", "a", "e", "b", "d"} {
			ids = append(ids, mustPost(t, s, a.ID, title, "", true).ID)
		}

		page, err := s.Posts(ctx, PostFilter{}, Page{First: intp(2)})
		require.NoError(t, err)
		assert.Equal(t, ids[:2], postIDs(page))

		page, err = s.Posts(ctx, PostFilter{}, Page{After: ids[1], First: intp(2)})
		require.NoError(t, err)
		assert.Equal(t, ids[2:4], postIDs(page))

		// Cursor first, then offset.
		page, err = s.Posts(ctx, PostFilter{}, Page{After: ids[0], Skip: 2})
		require.NoError(t, err)
		assert.Equal(t, ids[3:], postIDs(page))

		page, err = s.Posts(ctx, PostFilter{}, Page{Skip: 10})
		require.NoError(t, err)
		assert.Empty(t, page)

		page, err = s.Posts(ctx, PostFilter{}, Page{After: "unknown"})
		require.NoError(t, err)
		assert.Empty(t, page)

		page, err = s.Posts(ctx, PostFilter{}, Page{OrderBy: &OrderBy{Field: "title"}})
		require.NoError(t, err)
		assert.Equal(t, []string{ids[1], ids[3], ids[0], ids[4], ids[2]}, postIDs(page))

		page, err = s.Posts(ctx, PostFilter{}, Page{OrderBy: &OrderBy{Field: "title", Desc: true}, After: ids[2], First: intp(1)})
		require.NoError(t, err)
		assert.Equal(t, []string{ids[4]}, postIDs(page))

		_, err = s.Posts(ctx, PostFilter{}, Page{OrderBy: &OrderBy{Field: "password"}})
		assert.True(t, apperr.IsKind(err, apperr.Validation))
		_, err = s.Posts(ctx, PostFilter{}, Page{First: intp(-1)})
		assert.True(t, apperr.IsKind(err, apperr.Validation))
	})
}

func TestOrderUsersByAge(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		old, err := s.CreateUser(ctx, &models.User{Name: "Old", Email: "o@x.com", Age: intp(70), PasswordHash: "x"})
		require.NoError(t, err)
		unknown := mustUser(t, s, "Unknown", "u@x.com")
		young, err := s.CreateUser(ctx, &models.User{Name: "Young", Email: "y@x.com", Age: intp(20), PasswordHash: "x"})
		require.NoError(t, err)

		users, err := s.Users(ctx, UserFilter{}, Page{OrderBy: &OrderBy{Field: "age"}})
		require.NoError(t, err)
		require.Len(t, users, 3)
		assert.Equal(t, []string{unknown.ID, young.ID, old.ID}, []string{users[0].ID, users[1].ID, users[2].ID})
	})
}

func TestDeleteUserCascades(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		a := mustUser(t, s, "A", "a@x.com")
		b := mustUser(t, s, "B", "b@x.com")
		pa := mustPost(t, s, a.ID, "A post", "", true)
		pb := mustPost(t, s, b.ID, "B post", "", true)
		mustComment(t, s, b.ID, pa.ID, "b on a") // on a deleted post
		mustComment(t, s, a.ID, pb.ID, "a on b") // by the deleted user
		keep := mustComment(t, s, b.ID, pb.ID, "b on b")

		deleted, err := s.DeleteUser(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, a.ID, deleted.ID)

		posts, err := s.Posts(ctx, PostFilter{AuthorID: a.ID}, Page{})
		require.NoError(t, err)
		assert.Empty(t, posts)
		comments, err := s.Comments(ctx, CommentFilter{AuthorID: a.ID}, Page{})
		require.NoError(t, err)
		assert.Empty(t, comments)
		comments, err = s.Comments(ctx, CommentFilter{PostID: pa.ID}, Page{})
		require.NoError(t, err)
		assert.Empty(t, comments)

		rest, err := s.Comments(ctx, CommentFilter{}, Page{})
		require.NoError(t, err)
		require.Len(t, rest, 1)
		assert.Equal(t, keep.ID, rest[0].ID)

		_, err = s.User(ctx, a.ID)
		assert.True(t, apperr.IsKind(err, apperr.NotFound))
	})
}

func TestPostAndCommentLifecycle(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		a := mustUser(t, s, "A", "a@x.com")
		p := mustPost(t, s, a.ID, "T", "B", false)

		up, err := s.UpdatePost(ctx, p.ID, PostPatch{Published: boolp(true), Title: strp("T2")})
		require.NoError(t, err)
		assert.True(t, up.Published)
		assert.Equal(t, "T2", up.Title)
		assert.Equal(t, "B", up.Body)

		c := mustComment(t, s, a.ID, p.ID, "first")
		uc, err := s.UpdateComment(ctx, c.ID, CommentPatch{Text: strp("edited")})
		require.NoError(t, err)
		assert.Equal(t, "edited", uc.Text)

		n, err := s.CountComments(ctx, CommentFilter{PostID: p.ID})
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		_, err = s.CreateComment(ctx, &models.Comment{AuthorID: a.ID, PostID: "missing", Text: "x"})
		assert.True(t, apperr.IsKind(err, apperr.NotFound))
		_, err = s.CreatePost(ctx, &models.Post{AuthorID: "missing", Title: "x"})
		assert.True(t, apperr.IsKind(err, apperr.NotFound))

		dp, err := s.DeletePost(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "T2", dp.Title)
		_, err = s.Comment(ctx, c.ID)
		assert.True(t, apperr.IsKind(err, apperr.NotFound), "comments go with their post")

		_, err = s.DeletePost(ctx, p.ID)
		assert.True(t, apperr.IsKind(err, apperr.NotFound))
		_, err = s.DeleteComment(ctx, c.ID)
		assert.True(t, apperr.IsKind(err, apperr.NotFound))
	})
}

func TestMemoryReturnsCopies(t *testing.T) {
	s := NewMemory()
	u := mustUser(t, s, "A", "a@x.com")
	u.Name = "mutated"
	got, err := s.User(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", got.Name)
}

func TestRebind(t *testing.T) {
	s := &SQL{dialect: db.Postgres}
	assert.Equal(t, "SELECT 1 WHERE a = $1 AND b = $2", s.rebind("SELECT 1 WHERE a = ? AND b = ?"))
	s.dialect = db.SQLite
	assert.Equal(t, "a = ?", s.rebind("a = ?"))
}

func TestSQLiteUniqueViolation(t *testing.T) {
	s := newSQLite(t).(*SQL)
	ctx := context.Background()
	mustUser(t, s, "A", "a@x.com")

	_, err := s.db.ExecContext(ctx, `INSERT INTO users(`+userCols+`) VALUES(?,?,?,?,?,?,?)`,
		"dup", "A2", "a@x.com", nullAge(nil), "x", s.now(), s.now())
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err))
}
