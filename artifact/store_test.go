package artifact

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ideaforge/engine/types"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *gorm.DB) {
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{Conn: mockDB})
	gormDB, err := gorm.Open(dialector, &gorm.Config{})
	require.NoError(t, err)

	return mockDB, mock, gormDB
}

func TestGormStore_Create_RejectsDuplicateInProgress(t *testing.T) {
	mockDB, mock, gormDB := setupTestDB(t)
	defer mockDB.Close()

	store := NewGormStore(gormDB, zap.NewNop())

	projectID := types.NewID()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT count\(\*\) FROM "stage_artifacts"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	err := store.Create(context.Background(), &types.StageArtifact{
		ID:        types.NewID(),
		ProjectID: projectID,
		Stage:     types.StageRequirements,
	})
	require.Error(t, err)
	assert.Equal(t, types.AlreadyInProgress, types.CodeOf(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_Create_RejectsUnapprovedParent(t *testing.T) {
	mockDB, mock, gormDB := setupTestDB(t)
	defer mockDB.Close()

	store := NewGormStore(gormDB, zap.NewNop())

	projectID := types.NewID()
	parentID := types.NewID()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT count\(\*\) FROM "stage_artifacts"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT \* FROM "stage_artifacts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow(parentID, string(types.StatusRejected)))
	mock.ExpectRollback()

	err := store.Create(context.Background(), &types.StageArtifact{
		ID:               types.NewID(),
		ProjectID:        projectID,
		Stage:            types.StagePlanning,
		ParentArtifactID: &parentID,
	})
	require.Error(t, err)
	assert.Equal(t, types.PrerequisiteMissing, types.CodeOf(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_Create_Succeeds(t *testing.T) {
	mockDB, mock, gormDB := setupTestDB(t)
	defer mockDB.Close()

	store := NewGormStore(gormDB, zap.NewNop())
	projectID := types.NewID()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT count\(\*\) FROM "stage_artifacts"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO "stage_artifacts"`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.Create(context.Background(), &types.StageArtifact{
		ID:        types.NewID(),
		ProjectID: projectID,
		Stage:     types.StageRequirements,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_GetStoryAt_OutOfRange(t *testing.T) {
	mockDB, mock, gormDB := setupTestDB(t)
	defer mockDB.Close()

	store := NewGormStore(gormDB, zap.NewNop())
	storiesID := types.NewID()
	projectID := types.NewID()

	row, err := toRow(&types.StageArtifact{
		ID:           storiesID,
		ProjectID:    projectID,
		Stage:        types.StageStories,
		Status:       types.StatusApproved,
		ParsedOutput: []byte(`{"stories":[{"title":"Only one"}]}`),
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT \* FROM "stage_artifacts"`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "project_id", "stage", "status", "parsed_output", "created_at", "updated_at",
		}).AddRow(row.ID, row.ProjectID, row.Stage, row.Status, row.ParsedOutput, row.CreatedAt, row.UpdatedAt))

	_, err = store.GetStoryAt(context.Background(), storiesID, 5)
	require.Error(t, err)
	assert.Equal(t, types.OutOfRange, types.CodeOf(err))
}
