package db

import (
	"testing"

	"github.com/stocky-project/backend/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

func TestMigrateIsRepeatable(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:migrate?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db))

	for _, m := range models.All() {
		require.True(t, db.Migrator().HasTable(m))
	}
	require.True(t, db.Migrator().HasIndex(&models.RewardEvent{}, "idx_reward_events_reference_id"))
}
