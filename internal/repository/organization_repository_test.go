package repository_test

import (
	"context"
	"testing"

	"github.com/mautops/qms-workflow/internal/repository"
	"github.com/mautops/qms-workflow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// TestOrganizationRepository_FindUser 按 ID 和用户名查找
func TestOrganizationRepository_FindUser(t *testing.T) {
	db := testutil.OpenSQLite(t)
	repo := repository.NewOrganizationRepository(db)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "lisi", "李四", nil, nil, true)

	found, err := repo.FindUserByUsername(ctx, "lisi")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
	assert.Equal(t, "李四", found.DisplayName())

	found, err = repo.FindUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "lisi", found.Username)

	_, err = repo.FindUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

// TestOrganizationRepository_EmptyQueries 没有匹配条件时不查询
func TestOrganizationRepository_EmptyQueries(t *testing.T) {
	db := testutil.OpenSQLite(t)
	repo := repository.NewOrganizationRepository(db)
	ctx := context.Background()
	actor := testutil.CreateUser(t, db, "lisi", "", testutil.UintPtr(1), nil, true)
	testutil.CreateUser(t, db, "wangwu", "", testutil.UintPtr(1), nil, true)

	head, err := repo.FindDepartmentHead(ctx, actor.ID, repository.DepartmentHeadQuery{})
	require.NoError(t, err)
	assert.Nil(t, head)

	admin, err := repo.FindAdministrator(ctx, actor.ID, repository.AdministratorQuery{})
	require.NoError(t, err)
	assert.Nil(t, admin)

	parent, err := repo.FindParentPositionHolder(ctx, actor.ID)
	require.NoError(t, err)
	assert.Nil(t, parent)
}

// TestOrganizationRepository_FindDepartmentHeadByLevelOnly 只按级别匹配
func TestOrganizationRepository_FindDepartmentHeadByLevelOnly(t *testing.T) {
	db := testutil.OpenSQLite(t)
	repo := repository.NewOrganizationRepository(db)
	dept := testutil.UintPtr(4)
	senior := testutil.CreatePosition(t, db, "Senior", nil, testutil.IntPtr(5))
	junior := testutil.CreatePosition(t, db, "Junior", nil, testutil.IntPtr(2))
	actor := testutil.CreateUser(t, db, "a", "", dept, testutil.UintPtr(junior), true)
	testutil.CreateUser(t, db, "b", "", dept, testutil.UintPtr(junior), true)
	lead := testutil.CreateUser(t, db, "c", "", dept, testutil.UintPtr(senior), true)

	found, err := repo.FindDepartmentHead(context.Background(), actor.ID, repository.DepartmentHeadQuery{Level: 5})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, lead.ID, found.ID)
	assert.Equal(t, "c", found.DisplayName)
}
