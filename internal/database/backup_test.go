package database

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablemind/internal/models"
	"tablemind/internal/store/sqlite"
)

type fakeS3 struct {
	bucket, key string
	body        []byte
	err         error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.bucket = aws.ToString(in.Bucket)
	f.key = aws.ToString(in.Key)
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = data
	return &s3.PutObjectOutput{}, nil
}

var stamp = time.Date(2026, 3, 10, 4, 30, 0, 0, time.UTC)

func TestPerformBackup(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.New(io.Discard)
	dir := t.TempDir()

	db, err := sqlite.NewDB(filepath.Join(dir, "tablemind.db"), &logger)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.SaveRestaurant(ctx, &models.Restaurant{ID: "r1", Name: "Old Town", Settings: models.DefaultSettings()}))

	up := &fakeS3{}
	svc := NewBackupService(db, NewS3UploaderWithClient(up, "ops-backups", "/tablemind/"), BackupConfig{Dir: filepath.Join(dir, "backups")}, &logger)
	svc.now = func() time.Time { return stamp }

	path, err := svc.PerformBackup(ctx)
	require.NoError(t, err)
	assert.Equal(t, "backup_20260310_043000.db", filepath.Base(path))

	copyDB, err := sqlite.NewDB(path, &logger)
	require.NoError(t, err)
	defer copyDB.Close()
	r, err := copyDB.GetRestaurant(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Old Town", r.Name)

	assert.Equal(t, "ops-backups", up.bucket)
	assert.Equal(t, "tablemind/backup_20260310_043000.db", up.key)
	assert.NotEmpty(t, up.body)

	t.Run("UploadFailureKeepsLocalCopy", func(t *testing.T) {
		failing := &fakeS3{err: errors.New("access denied")}
		svc := NewBackupService(db, NewS3UploaderWithClient(failing, "b", ""), BackupConfig{Dir: filepath.Join(dir, "backups")}, &logger)
		svc.now = func() time.Time { return stamp.Add(time.Hour) }

		path, err := svc.PerformBackup(ctx)
		require.Error(t, err)
		assert.FileExists(t, path)
	})
}

func TestCleanupOldBackups(t *testing.T) {
	logger := zerolog.New(io.Discard)
	dir := t.TempDir()

	for _, name := range []string{
		"backup_20260201_000000.db",
		"backup_20260303_043000.db",
		"backup_20260305_000000.db",
		"backup_20260310_000000.db",
		"notes.txt",
		"backup_garbage.db",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	svc := NewBackupService(nil, nil, BackupConfig{Dir: dir, Retention: 7 * 24 * time.Hour}, &logger)
	svc.now = func() time.Time { return stamp }

	deleted, err := svc.CleanupOldBackups()
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{
		"backup_20260303_043000.db",
		"backup_20260305_000000.db",
		"backup_20260310_000000.db",
		"notes.txt",
		"backup_garbage.db",
	}, names)

	t.Run("NoRetention", func(t *testing.T) {
		svc := NewBackupService(nil, nil, BackupConfig{Dir: dir}, &logger)
		deleted, err := svc.CleanupOldBackups()
		require.NoError(t, err)
		assert.Zero(t, deleted)
	})
}

func TestS3UploaderKey(t *testing.T) {
	assert.Equal(t, "backup_x.db", NewS3UploaderWithClient(nil, "b", "").Key("/var/backups/backup_x.db"))
	assert.Equal(t, "a/b/backup_x.db", NewS3UploaderWithClient(nil, "b", "/a/b/").Key("backup_x.db"))
}
