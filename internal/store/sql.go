package store

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"

	"blog/internal/apperr"
	"blog/internal/db"
	"blog/internal/models"
)

// SQL is a Store over database/sql. Multi-row deletes run in a single
// transaction and roll back on any failure.
type SQL struct {
	db      *sql.DB
	dialect db.Dialect
	now     func() time.Time
}

var _ Store = (*SQL)(nil)

func NewSQL(conn *sql.DB, d db.Dialect) *SQL {
	return &SQL{
		db:      conn,
		dialect: d,
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

func (s *SQL) Close() error { return s.db.Close() }

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// rebind rewrites ? placeholders for dialects that number them.
func (s *SQL) rebind(q string) string {
	if s.dialect != db.Postgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQL) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(errors.Wrap(err, "begin transaction"), "store")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperr.Wrap(errors.Wrap(err, "commit transaction"), "store")
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(q)) + "%"
}

func orderClause(fields map[string]string, o *OrderBy) (string, error) {
	col, err := orderColumn(fields, o)
	if err != nil {
		return "", err
	}
	if col == "" {
		return " ORDER BY seq", nil
	}
	if o.Desc {
		return " ORDER BY " + col + " DESC NULLS LAST, seq", nil
	}
	return " ORDER BY " + col + " ASC NULLS FIRST, seq", nil
}

func where(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func wrapErr(err error, op string) error {
	return apperr.Wrap(errors.Wrap(err, op), "store")
}

// ---- users

const userCols = `id, name, email, age, password_hash, created_at, updated_at`

func scanUser(row scanner) (*models.User, error) {
	var u models.User
	var age sql.NullInt64
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &age, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if age.Valid {
		a := int(age.Int64)
		u.Age = &a
	}
	return &u, nil
}

func nullAge(age *int) sql.NullInt64 {
	if age == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*age), Valid: true}
}

func (s *SQL) Users(ctx context.Context, f UserFilter, p Page) ([]*models.User, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	order, err := orderClause(userOrderFields, p.OrderBy)
	if err != nil {
		return nil, err
	}
	var conds []string
	var args []any
	if f.Query != "" {
		conds = append(conds, `LOWER(name) LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(f.Query))
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT `+userCols+` FROM users`+where(conds)+order), args...)
	if err != nil {
		return nil, wrapErr(err, "list users")
	}
	defer rows.Close()
	var out []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, wrapErr(err, "scan user")
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err, "list users")
	}
	return paginate(out, func(u *models.User) string { return u.ID }, p), nil
}

func (s *SQL) getUser(ctx context.Context, q querier, col, val string) (*models.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx, s.rebind(`SELECT `+userCols+` FROM users WHERE `+col+` = ?`), val))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("user not found")
	}
	if err != nil {
		return nil, wrapErr(err, "load user")
	}
	return u, nil
}

func (s *SQL) User(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, s.db, "id", id)
}

func (s *SQL) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, s.db, "email", email)
}

func (s *SQL) emailTaken(ctx context.Context, q querier, email, exceptID string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM users WHERE email = ? AND id <> ?`), email, exceptID).Scan(&n)
	if err != nil {
		return false, wrapErr(err, "check email")
	}
	return n > 0, nil
}

func (s *SQL) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	stored := u.Clone()
	stored.ID = uuid.NewString()
	stored.CreatedAt = s.now()
	stored.UpdatedAt = stored.CreatedAt
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		taken, err := s.emailTaken(ctx, tx, stored.Email, "")
		if err != nil {
			return err
		}
		if taken {
			return apperr.ErrEmailTaken
		}
		_, err = tx.ExecContext(ctx, s.rebind(`INSERT INTO users(`+userCols+`) VALUES(?,?,?,?,?,?,?)`),
			stored.ID, stored.Name, stored.Email, nullAge(stored.Age), stored.PasswordHash, stored.CreatedAt, stored.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return apperr.ErrEmailTaken
			}
			return wrapErr(err, "insert user")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (s *SQL) UpdateUser(ctx context.Context, id string, patch UserPatch) (*models.User, error) {
	var next *models.User
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		u, err := s.getUser(ctx, tx, "id", id)
		if err != nil {
			return err
		}
		if patch.Email != nil && *patch.Email != u.Email {
			taken, err := s.emailTaken(ctx, tx, *patch.Email, id)
			if err != nil {
				return err
			}
			if taken {
				return apperr.ErrEmailTaken
			}
			u.Email = *patch.Email
		}
		if patch.Name != nil {
			u.Name = *patch.Name
		}
		if patch.Age != nil {
			age := *patch.Age
			u.Age = &age
		}
		if patch.PasswordHash != nil {
			u.PasswordHash = *patch.PasswordHash
		}
		u.UpdatedAt = s.now()
		_, err = tx.ExecContext(ctx, s.rebind(`UPDATE users SET name = ?, email = ?, age = ?, password_hash = ?, updated_at = ? WHERE id = ?`),
			u.Name, u.Email, nullAge(u.Age), u.PasswordHash, u.UpdatedAt, id)
		if err != nil {
			if isUniqueViolation(err) {
				return apperr.ErrEmailTaken
			}
			return wrapErr(err, "update user")
		}
		next = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

func (s *SQL) DeleteUser(ctx context.Context, id string) (*models.User, error) {
	var deleted *models.User
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		u, err := s.getUser(ctx, tx, "id", id)
		if err != nil {
			return err
		}
		stmts := []string{
			`DELETE FROM comments WHERE post_id IN (SELECT id FROM posts WHERE author_id = ?)`,
			`DELETE FROM comments WHERE author_id = ?`,
			`DELETE FROM posts WHERE author_id = ?`,
			`DELETE FROM users WHERE id = ?`,
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, s.rebind(q), id); err != nil {
				return wrapErr(err, "delete user")
			}
		}
		deleted = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// ---- posts

const postCols = `id, author_id, title, body, published, created_at, updated_at`

func scanPost(row scanner) (*models.Post, error) {
	var p models.Post
	if err := row.Scan(&p.ID, &p.AuthorID, &p.Title, &p.Body, &p.Published, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func postConds(f PostFilter) ([]string, []any) {
	var conds []string
	var args []any
	if f.AuthorID != "" {
		conds = append(conds, `author_id = ?`)
		args = append(args, f.AuthorID)
	}
	if f.Published != nil {
		conds = append(conds, `published = ?`)
		args = append(args, *f.Published)
	}
	if f.Query != "" {
		pat := likePattern(f.Query)
		conds = append(conds, `(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(body) LIKE ? ESCAPE '\')`)
		args = append(args, pat, pat)
	}
	return conds, args
}

func (s *SQL) Posts(ctx context.Context, f PostFilter, p Page) ([]*models.Post, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	order, err := orderClause(postOrderFields, p.OrderBy)
	if err != nil {
		return nil, err
	}
	conds, args := postConds(f)
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT `+postCols+` FROM posts`+where(conds)+order), args...)
	if err != nil {
		return nil, wrapErr(err, "list posts")
	}
	defer rows.Close()
	var out []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, wrapErr(err, "scan post")
		}
		out = append(out, post)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err, "list posts")
	}
	return paginate(out, func(p *models.Post) string { return p.ID }, p), nil
}

func (s *SQL) CountPosts(ctx context.Context, f PostFilter) (int, error) {
	conds, args := postConds(f)
	var n int
	if err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM posts`+where(conds)), args...).Scan(&n); err != nil {
		return 0, wrapErr(err, "count posts")
	}
	return n, nil
}

func (s *SQL) getPost(ctx context.Context, q querier, id string) (*models.Post, error) {
	p, err := scanPost(q.QueryRowContext(ctx, s.rebind(`SELECT `+postCols+` FROM posts WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("post not found")
	}
	if err != nil {
		return nil, wrapErr(err, "load post")
	}
	return p, nil
}

func (s *SQL) Post(ctx context.Context, id string) (*models.Post, error) {
	return s.getPost(ctx, s.db, id)
}

func (s *SQL) CreatePost(ctx context.Context, p *models.Post) (*models.Post, error) {
	stored := p.Clone()
	stored.ID = uuid.NewString()
	stored.CreatedAt = s.now()
	stored.UpdatedAt = stored.CreatedAt
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.getUser(ctx, tx, "id", stored.AuthorID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO posts(`+postCols+`) VALUES(?,?,?,?,?,?,?)`),
			stored.ID, stored.AuthorID, stored.Title, stored.Body, stored.Published, stored.CreatedAt, stored.UpdatedAt)
		if err != nil {
			return wrapErr(err, "insert post")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (s *SQL) UpdatePost(ctx context.Context, id string, patch PostPatch) (*models.Post, error) {
	var next *models.Post
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		p, err := s.getPost(ctx, tx, id)
		if err != nil {
			return err
		}
		if patch.Title != nil {
			p.Title = *patch.Title
		}
		if patch.Body != nil {
			p.Body = *patch.Body
		}
		if patch.Published != nil {
			p.Published = *patch.Published
		}
		p.UpdatedAt = s.now()
		_, err = tx.ExecContext(ctx, s.rebind(`UPDATE posts SET title = ?, body = ?, published = ?, updated_at = ? WHERE id = ?`),
			p.Title, p.Body, p.Published, p.UpdatedAt, id)
		if err != nil {
			return wrapErr(err, "update post")
		}
		next = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

func (s *SQL) DeletePost(ctx context.Context, id string) (*models.Post, error) {
	var deleted *models.Post
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		p, err := s.getPost(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM comments WHERE post_id = ?`), id); err != nil {
			return wrapErr(err, "delete post comments")
		}
		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM posts WHERE id = ?`), id); err != nil {
			return wrapErr(err, "delete post")
		}
		deleted = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// ---- comments

const commentCols = `id, post_id, author_id, text, created_at, updated_at`

func scanComment(row scanner) (*models.Comment, error) {
	var c models.Comment
	if err := row.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Text, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func commentConds(f CommentFilter) ([]string, []any) {
	var conds []string
	var args []any
	if f.AuthorID != "" {
		conds = append(conds, `author_id = ?`)
		args = append(args, f.AuthorID)
	}
	if f.PostID != "" {
		conds = append(conds, `post_id = ?`)
		args = append(args, f.PostID)
	}
	return conds, args
}

func (s *SQL) Comments(ctx context.Context, f CommentFilter, p Page) ([]*models.Comment, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	order, err := orderClause(commentOrderFields, p.OrderBy)
	if err != nil {
		return nil, err
	}
	conds, args := commentConds(f)
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT `+commentCols+` FROM comments`+where(conds)+order), args...)
	if err != nil {
		return nil, wrapErr(err, "list comments")
	}
	defer rows.Close()
	var out []*models.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, wrapErr(err, "scan comment")
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err, "list comments")
	}
	return paginate(out, func(c *models.Comment) string { return c.ID }, p), nil
}

func (s *SQL) CountComments(ctx context.Context, f CommentFilter) (int, error) {
	conds, args := commentConds(f)
	var n int
	if err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM comments`+where(conds)), args...).Scan(&n); err != nil {
		return 0, wrapErr(err, "count comments")
	}
	return n, nil
}

func (s *SQL) getComment(ctx context.Context, q querier, id string) (*models.Comment, error) {
	c, err := scanComment(q.QueryRowContext(ctx, s.rebind(`SELECT `+commentCols+` FROM comments WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("comment not found")
	}
	if err != nil {
		return nil, wrapErr(err, "load comment")
	}
	return c, nil
}

func (s *SQL) Comment(ctx context.Context, id string) (*models.Comment, error) {
	return s.getComment(ctx, s.db, id)
}

func (s *SQL) CreateComment(ctx context.Context, c *models.Comment) (*models.Comment, error) {
	stored := c.Clone()
	stored.ID = uuid.NewString()
	stored.CreatedAt = s.now()
	stored.UpdatedAt = stored.CreatedAt
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.getUser(ctx, tx, "id", stored.AuthorID); err != nil {
			return err
		}
		if _, err := s.getPost(ctx, tx, stored.PostID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO comments(`+commentCols+`) VALUES(?,?,?,?,?,?)`),
			stored.ID, stored.PostID, stored.AuthorID, stored.Text, stored.CreatedAt, stored.UpdatedAt)
		if err != nil {
			return wrapErr(err, "insert comment")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (s *SQL) UpdateComment(ctx context.Context, id string, patch CommentPatch) (*models.Comment, error) {
	var next *models.Comment
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		c, err := s.getComment(ctx, tx, id)
		if err != nil {
			return err
		}
		if patch.Text != nil {
			c.Text = *patch.Text
		}
		c.UpdatedAt = s.now()
		_, err = tx.ExecContext(ctx, s.rebind(`UPDATE comments SET text = ?, updated_at = ? WHERE id = ?`), c.Text, c.UpdatedAt, id)
		if err != nil {
			return wrapErr(err, "update comment")
		}
		next = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

func (s *SQL) DeleteComment(ctx context.Context, id string) (*models.Comment, error) {
	var deleted *models.Comment
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		c, err := s.getComment(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM comments WHERE id = ?`), id); err != nil {
			return wrapErr(err, "delete comment")
		}
		deleted = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}
