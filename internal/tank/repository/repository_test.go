package repository_test

import (
	"testing"

	"github.com/ashtavinayaka/tankflow/internal/tank/entity"
	"github.com/ashtavinayaka/tankflow/internal/tank/repository"
	"github.com/ashtavinayaka/tankflow/internal/tank/repository/repositorytest"
	"github.com/ashtavinayaka/tankflow/internal/tank/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPostgresContract(t *testing.T) {
	repositorytest.Run(t, func(t *testing.T) *repository.Repositories {
		return repository.NewRepositories(testutil.SetupTestDB(t))
	})
}

func TestProcessFilterMatch(t *testing.T) {
	p := &entity.Process{TankID: "t1", Status: entity.StatusCompleted, QCCompleted: true}

	assert.True(t, repository.ProcessFilter{}.Match(p))
	assert.True(t, repository.ProcessFilter{TankID: "t1", Status: entity.StatusCompleted}.Match(p))
	assert.False(t, repository.ProcessFilter{TankID: "t2"}.Match(p))
	assert.False(t, repository.ProcessFilter{QCCompleted: repository.Bool(false)}.Match(p))
	assert.True(t, repository.ProcessFilter{FinalQCCompleted: repository.Bool(false)}.Match(p))
}
