package screenshot

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/antoineross/supabase-go"
	storage_go "github.com/supabase-community/storage-go"

	"autorunner/internal/config"
	"autorunner/internal/core/jobstore"
	"autorunner/internal/logger"
)

// JobUpdater is the slice of the job store the publisher needs to move
// the latest-screenshot pointer.
type JobUpdater interface {
	UpdateJob(ctx context.Context, jobID string, fields jobstore.Fields) error
}

// Service uploads screenshots under a job-scoped path in Supabase
// Storage and resolves their public URLs. Objects are never deleted.
type Service struct {
	log  *logger.Logger
	cfg  config.Config
	jobs JobUpdater

	supabaseClient *supabase.Client
}

func New(cfg config.Config, jobs JobUpdater) (*Service, error) {
	s := &Service{log: logger.New("ScreenshotPublisher"), cfg: cfg, jobs: jobs}

	if cfg.AppEnv == "production" {
		if cfg.SupabaseURL == "" || cfg.SupabaseServiceKey == "" || cfg.SupabaseBucket == "" {
			return nil, fmt.Errorf("production requires SUPABASE_URL, SUPABASE_SERVICE_KEY and SUPABASE_SCREENSHOT_BUCKET")
		}
	}

	if cfg.SupabaseURL != "" && cfg.SupabaseServiceKey != "" {
		client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, nil)
		if err != nil {
			if cfg.AppEnv == "production" {
				return nil, fmt.Errorf("init supabase client: %w", err)
			}
			s.log.LogWarnf("failed to initialize Supabase client: %v", err)
		} else {
			s.supabaseClient = client
		}
	}
	return s, nil
}

// Filename builds the deterministic screenshot name
// <jobID>-<label>-<timestamp>.png. Spaces in the label become dashes;
// an empty label falls back to "step".
func Filename(jobID, label string, t time.Time) string {
	if label == "" {
		label = "step"
	}
	label = strings.ReplaceAll(label, " ", "-")
	return fmt.Sprintf("%s-%s-%s.png", jobID, label, t.UTC().Format("20060102_150405.000"))
}

// ObjectPath namespaces an uploaded file by job id.
func ObjectPath(jobID, filePath string) string {
	return jobID + "/" + filepath.Base(filePath)
}

// Publish uploads the file at path (upsert, so re-publishing the same
// name overwrites) and returns the public URL. When updateLatest is set
// the job's latest_screenshot_url is moved to the new URL. Callers treat
// any error here as a degraded capture, not a job failure.
func (s *Service) Publish(ctx context.Context, jobID, path string, updateLatest bool) (string, error) {
	if s.supabaseClient == nil {
		return "", fmt.Errorf("supabase storage not configured")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read screenshot %s: %w", path, err)
	}

	object := ObjectPath(jobID, path)
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "image/png"
	}
	upsert := true
	if _, err := s.supabaseClient.Storage.UploadFile(s.cfg.SupabaseBucket, object, bytes.NewReader(data), storage_go.FileOptions{
		ContentType: &mimeType,
		Upsert:      &upsert,
	}); err != nil {
		return "", fmt.Errorf("upload %s: %w", object, err)
	}

	public := s.supabaseClient.Storage.GetPublicUrl(s.cfg.SupabaseBucket, object).SignedURL
	if public == "" {
		return "", fmt.Errorf("resolve public url for %s", object)
	}

	if updateLatest {
		if err := s.jobs.UpdateJob(ctx, jobID, jobstore.Fields{"latest_screenshot_url": public}); err != nil {
			return "", fmt.Errorf("update latest screenshot for job %s: %w", jobID, err)
		}
	}

	s.log.LogDebugf("published screenshot %s", object)
	return public, nil
}
