package database

import (
	"testing"

	modelspkg "skillswap/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersistentModels_IncludesMarketplaceTables(t *testing.T) {
	var booking, chat, notification bool
	for _, model := range PersistentModels() {
		switch model.(type) {
		case *modelspkg.Booking:
			booking = true
		case *modelspkg.ChatMessage:
			chat = true
		case *modelspkg.Notification:
			notification = true
		}
	}
	require.True(t, booking, "PersistentModels should include Booking")
	assert.True(t, chat, "PersistentModels should include ChatMessage")
	assert.True(t, notification, "PersistentModels should include Notification")
}

func TestEmbeddedMigrations(t *testing.T) {
	all, err := Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, all)

	first := all[0]
	assert.Equal(t, "000001_init", first.String())
	assert.Contains(t, first.UpScript, "CREATE TABLE IF NOT EXISTS bookings")
	assert.Contains(t, first.DownScript, "DROP TABLE IF EXISTS bookings")

	_, ok := findMigration(all, 999)
	assert.False(t, ok)
}
