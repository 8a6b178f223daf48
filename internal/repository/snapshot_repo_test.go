package repository_test

import (
	"context"
	"errors"
	"os"
	"regexp"
	"testing"

	"authentik-admin/internal/database"
	"authentik-admin/internal/directory"
	"authentik-admin/internal/domain"
	"authentik-admin/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

var columns = []string{"username", "full_name", "email", "invited_by", "intro", "id_or_pk"}

func TestSnapshotRepository_Load(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM directory_users")).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("alice", "Alice Smith", "alice@example.org", "bob", "hello", "1").
			AddRow("bob", "", "", "", "", "2"))

	records, err := repository.NewSnapshotRepository(db).Load(context.Background())

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, domain.UserRecord{
		Username: "alice", FullName: "Alice Smith", Email: "alice@example.org",
		InvitedBy: "bob", Intro: "hello", ID: "1", IsActive: true,
	}, records[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepository_LoadQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM directory_users")).WillReturnError(errors.New("relation does not exist"))

	_, err = repository.NewSnapshotRepository(db).Load(context.Background())

	assert.Error(t, err)
}

func TestSnapshotRepository_Save(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM directory_users")).WillReturnResult(sqlmock.NewResult(0, 3))
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO directory_users"))
	prep.ExpectExec().WithArgs(0, "alice", "Alice Smith", "", "", "", "1").WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs(1, "bob", "", "", "", "", "2").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = repository.NewSnapshotRepository(db).Save(context.Background(), []domain.UserRecord{
		{Username: "alice", FullName: "Alice Smith", ID: "1"},
		{Username: "bob", ID: "2"},
	})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepository_SaveRollsBackOnInsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM directory_users")).WillReturnResult(sqlmock.NewResult(0, 0))
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO directory_users"))
	prep.ExpectExec().WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	err = repository.NewSnapshotRepository(db).Save(context.Background(), []domain.UserRecord{{Username: "alice"}})

	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type SnapshotRepositoryTestSuite struct {
	suite.Suite
	repo  *repository.SnapshotRepository
	cache *directory.Cache
	ctx   context.Context
}

func (suite *SnapshotRepositoryTestSuite) SetupSuite() {
	suite.ctx = context.Background()

	db, err := database.NewPostgresDB(os.Getenv("TEST_DATABASE_URL"))
	suite.Require().NoError(err)
	suite.T().Cleanup(func() { db.Close() })

	suite.repo = repository.NewSnapshotRepository(db)
}

func (suite *SnapshotRepositoryTestSuite) SetupTest() {
	suite.Require().NoError(suite.repo.Save(suite.ctx, nil))
	suite.cache = directory.NewCache(nil, suite.repo, 0, nil)
}

func (suite *SnapshotRepositoryTestSuite) TestUpsertSurvivesReload() {
	suite.Require().NoError(suite.cache.Upsert(suite.ctx, domain.UserRecord{Username: "alice", ID: "1"}))
	suite.Require().NoError(suite.cache.Upsert(suite.ctx, domain.UserRecord{Username: "bob", ID: "2"}))

	reloaded := directory.NewCache(nil, suite.repo, 0, nil)
	suite.Require().NoError(reloaded.Load(suite.ctx))

	assert.True(suite.T(), reloaded.Exists("ALICE"))
	assert.Equal(suite.T(), 2, reloaded.Len())
}

func (suite *SnapshotRepositoryTestSuite) TestRemoveSurvivesReload() {
	suite.Require().NoError(suite.cache.Upsert(suite.ctx, domain.UserRecord{Username: "alice", ID: "1"}))
	suite.Require().NoError(suite.cache.Remove(suite.ctx, "alice"))

	records, err := suite.repo.Load(suite.ctx)

	suite.Require().NoError(err)
	assert.Empty(suite.T(), records)
}

func TestSnapshotRepositoryTestSuite(t *testing.T) {
	if os.Getenv("RUN_INTEGRATION_TESTS") != "1" {
		t.Skip("Skipping integration test. Set RUN_INTEGRATION_TESTS=1 to run.")
	}
	suite.Run(t, new(SnapshotRepositoryTestSuite))
}
