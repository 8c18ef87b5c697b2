package comment

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db), mock
}

func TestRepositoryCreate(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`(?s)INSERT INTO comments\b.*VALUES \(\$1, \$2, \$3, \$4, \$5\)`).
		WithArgs(sqlmock.AnyArg(), "blog-1", "author-1", "Nice post", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	c, err := repo.Create(context.Background(), "blog-1", "author-1", "Nice post")
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "blog-1", c.BlogID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryListByBlog(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`(?s)SELECT c\.id, c\.content,.*ORDER BY c\.created_at ASC`).
		WithArgs("blog-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "content", "created_at", "username"}).
			AddRow("c1", "First", now.Add(-time.Minute), "alice01").
			AddRow("c2", "Second", now, "bob99"))

	views, err := repo.ListByBlog(context.Background(), "blog-1")
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "First", views[0].Content)
	assert.Equal(t, "bob99", views[1].AuthorUsername)
}

func TestRepositoryListByBlog_Empty(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)SELECT c\.id, c\.content,`).
		WithArgs("blog-2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "content", "created_at", "username"}))

	views, err := repo.ListByBlog(context.Background(), "blog-2")
	require.NoError(t, err)
	assert.Empty(t, views)
	assert.NotNil(t, views)
}
