// Package database backs up the local sqlite store.
package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

const (
	backupPrefix = "backup_"
	backupSuffix = ".db"
	stampLayout  = "20060102_150405"
)

// Snapshotter writes a consistent copy of a database file.
type Snapshotter interface {
	Snapshot(ctx context.Context, dest string) error
}

// Uploader ships a finished backup off-site.
type Uploader interface {
	Upload(ctx context.Context, path string) error
}

// BackupConfig controls the schedule and retention.
type BackupConfig struct {
	Dir       string
	Interval  time.Duration
	Retention time.Duration
}

type BackupService struct {
	source   Snapshotter
	uploader Uploader
	config   BackupConfig
	logger   *zerolog.Logger
	now      func() time.Time
}

// NewBackupService creates a backup service. uploader may be nil.
func NewBackupService(source Snapshotter, uploader Uploader, cfg BackupConfig, logger *zerolog.Logger) *BackupService {
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	return &BackupService{
		source:   source,
		uploader: uploader,
		config:   cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Start runs a backup immediately and then every interval until ctx is done.
func (s *BackupService) Start(ctx context.Context) {
	s.logger.Info().Dur("interval", s.config.Interval).Str("dir", s.config.Dir).Msg("Backup service started")

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *BackupService) runOnce(ctx context.Context) {
	if _, err := s.PerformBackup(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Scheduled backup failed")
	}
	if _, err := s.CleanupOldBackups(); err != nil {
		s.logger.Error().Err(err).Msg("Failed to clean up old backups")
	}
}

// PerformBackup snapshots the database and uploads it when an uploader is set.
// The local copy is kept even when the upload fails.
func (s *BackupService) PerformBackup(ctx context.Context) (string, error) {
	if err := os.MkdirAll(s.config.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	backupPath := filepath.Join(s.config.Dir, backupPrefix+s.now().Format(stampLayout)+backupSuffix)
	s.logger.Info().Str("path", backupPath).Msg("Performing database backup")

	if err := s.source.Snapshot(ctx, backupPath); err != nil {
		return "", err
	}
	if s.uploader != nil {
		if err := s.uploader.Upload(ctx, backupPath); err != nil {
			return backupPath, fmt.Errorf("upload backup: %w", err)
		}
	}

	s.logger.Info().Str("path", backupPath).Msg("Backup completed successfully")
	return backupPath, nil
}

// CleanupOldBackups removes backups older than the retention window and returns how many it deleted.
// Files that do not look like backups are left alone.
func (s *BackupService) CleanupOldBackups() (int, error) {
	if s.config.Retention <= 0 {
		return 0, nil
	}
	files, err := os.ReadDir(s.config.Dir)
	if err != nil {
		return 0, fmt.Errorf("read backup directory: %w", err)
	}

	cutoff := s.now().Add(-s.config.Retention)
	deleted := 0
	for _, file := range files {
		name := file.Name()
		if file.IsDir() || !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, backupSuffix) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, backupPrefix), backupSuffix)
		taken, err := time.ParseInLocation(stampLayout, stamp, s.now().Location())
		if err != nil || !taken.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.config.Dir, name)); err != nil {
			s.logger.Warn().Err(err).Str("file", name).Msg("Failed to delete old backup")
			continue
		}
		s.logger.Info().Str("file", name).Msg("Deleted old backup")
		deleted++
	}
	return deleted, nil
}

// PutObjectAPI is the part of the S3 client the uploader uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader stores backups under bucket/prefix.
type S3Uploader struct {
	client PutObjectAPI
	bucket string
	prefix string
}

// NewS3Uploader loads the default AWS credential chain for region.
func NewS3Uploader(ctx context.Context, region, bucket, prefix string) (*S3Uploader, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return NewS3UploaderWithClient(s3.NewFromConfig(cfg), bucket, prefix), nil
}

func NewS3UploaderWithClient(client PutObjectAPI, bucket, prefix string) *S3Uploader {
	return &S3Uploader{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Key is the object key for a local backup file.
func (u *S3Uploader) Key(path string) string {
	name := filepath.Base(path)
	if u.prefix == "" {
		return name
	}
	return u.prefix + "/" + name
}

func (u *S3Uploader) Upload(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(u.Key(path)),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("unable to upload file to S3: %w", err)
	}
	return nil
}
