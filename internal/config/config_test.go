package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, "database:\n  path: "+filepath.Join(dir, "db", "tm.db")+"\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.DirExists(t, filepath.Join(dir, "db"))
	assert.Equal(t, "info", cfg.LogLevel())
	assert.Equal(t, time.Hour, cfg.TableBuffer())
	assert.Equal(t, time.Hour, cfg.DefaultDuration())
	assert.True(t, cfg.AutoAssign())
	assert.Equal(t, 45*time.Second, cfg.MonitorInterval())
	assert.Equal(t, 30*time.Minute, cfg.MonitorLookahead())
	assert.Equal(t, 20*time.Minute, cfg.UpcomingCooldown())
	assert.Equal(t, 15*time.Minute, cfg.CleaningCooldown())
	assert.Equal(t, 30*time.Minute, cfg.StaffingCooldown())
	assert.Equal(t, 3, cfg.StaffingMinUpcoming())
	assert.Equal(t, 2, cfg.StaffingMinOnShift())
	assert.Equal(t, 24*time.Hour, cfg.BackupInterval())
	assert.Equal(t, 7*24*time.Hour, cfg.BackupRetention())
	assert.Equal(t, filepath.Join(dir, "db", "backups"), cfg.BackupDir())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("TM_TEST_TOKEN", "123:abc")
	path := writeConfig(t, `
database:
  driver: memory
scheduling:
  buffer_minutes: 30
  default_duration_minutes: 90
  auto_assign: false
monitor:
  interval_seconds: 10
  lookahead_minutes: 45
  staffing_min_upcoming: 5
telegram:
  bot_token: ${TM_TEST_TOKEN}
  chat_ids: [42]
restaurants:
  - id: bistro
    name: Bistro
    tables:
      - id: T1
        seats: 4
    waiters: [Ana, Marko]
    settings:
      smart_cleaning: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Minute, cfg.TableBuffer())
	assert.Equal(t, 90*time.Minute, cfg.DefaultDuration())
	assert.False(t, cfg.AutoAssign())
	assert.Equal(t, 10*time.Second, cfg.MonitorInterval())
	assert.Equal(t, 45*time.Minute, cfg.MonitorLookahead())
	assert.Equal(t, 5, cfg.StaffingMinUpcoming())
	assert.Equal(t, "123:abc", cfg.Telegram.BotToken)
	assert.Equal(t, []int64{42}, cfg.Telegram.ChatIDs)

	require.Len(t, cfg.Restaurants, 1)
	r := cfg.Restaurants[0].Restaurant(time.Now())
	assert.Equal(t, "bistro", r.ID)
	require.Len(t, r.Waiters, 2)
	assert.Equal(t, "bistro-w2", r.Waiters[1].ID)
	assert.Equal(t, "Marko", r.Waiters[1].Name)
	assert.True(t, r.Settings.AutoAssignWaiter)
	assert.False(t, r.Settings.SmartCleaning)
	assert.True(t, r.Settings.BackgroundMonitoring)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"UnknownDriver", "database:\n  driver: oracle\n"},
		{"MongoWithoutURI", "database:\n  driver: mongo\n"},
		{"SharedCooldownsWithoutRedis", "database:\n  driver: memory\nmonitor:\n  shared_cooldowns: true\n"},
		{"ChatWithoutToken", "database:\n  driver: memory\ntelegram:\n  chat_ids: [1]\n"},
		{"BucketWithoutRegion", "database:\n  driver: memory\nbackup:\n  s3:\n    bucket: b\n"},
		{"NegativeBuffer", "database:\n  driver: memory\nscheduling:\n  buffer_minutes: -5\n"},
		{"DuplicateRestaurant", "database:\n  driver: memory\nrestaurants:\n  - {id: a, name: A}\n  - {id: a, name: B}\n"},
		{"TableWithoutSeats", "database:\n  driver: memory\nrestaurants:\n  - id: a\n    name: A\n    tables: [{id: T1}]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestPath(t *testing.T) {
	t.Setenv("TABLEMIND_CONFIG", "")
	assert.Equal(t, DefaultPath, Path(""))
	assert.Equal(t, "x.yaml", Path("x.yaml"))

	t.Setenv("TABLEMIND_CONFIG", "/etc/tm.yaml")
	assert.Equal(t, "/etc/tm.yaml", Path(""))
}
