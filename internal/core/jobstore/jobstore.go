package jobstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/supabase-community/postgrest-go"

	"autorunner/internal/config"
	"autorunner/internal/logger"
)

// Table is the jobs table this worker reads scripts from and writes
// status transitions to. The schema is owned by the upstream app.
const Table = "automation_jobs"

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Fields is a partial update of job columns. Keys absent from the map
// are left untouched by PostgREST; a nil value writes SQL NULL.
type Fields map[string]interface{}

type Service struct {
	log  *logger.Logger
	rest *postgrest.Client
}

func New(cfg config.Config) (*Service, error) {
	if cfg.SupabaseURL == "" || cfg.SupabaseServiceKey == "" {
		return nil, fmt.Errorf("job store requires SUPABASE_URL and SUPABASE_SERVICE_KEY")
	}
	rest := postgrest.NewClient(
		strings.TrimRight(cfg.SupabaseURL, "/")+"/rest/v1",
		"",
		map[string]string{
			"apikey":        cfg.SupabaseServiceKey,
			"Authorization": "Bearer " + cfg.SupabaseServiceKey,
		},
	)
	if rest.ClientError != nil {
		return nil, fmt.Errorf("init postgrest client: %w", rest.ClientError)
	}
	return &Service{log: logger.New("JobStore"), rest: rest}, nil
}

// FetchScript reads the script column for a single job row. Missing row
// and missing script are both terminal errors for the caller.
func (s *Service) FetchScript(_ context.Context, jobID string) (string, error) {
	data, _, err := s.rest.From(Table).
		Select("script", "", false).
		Eq("id", jobID).
		Single().
		Execute()
	if err != nil {
		return "", fmt.Errorf("fetch script for job %s: %w", jobID, err)
	}
	var row struct {
		Script *string `json:"script"`
	}
	if err := json.Unmarshal(data, &row); err != nil {
		return "", fmt.Errorf("decode job %s: %w", jobID, err)
	}
	if row.Script == nil || *row.Script == "" {
		return "", fmt.Errorf("job %s has no script", jobID)
	}
	return *row.Script, nil
}

// UpdateJob merges the given fields into the job row. No retries; the
// caller decides whether a failed write is fatal.
func (s *Service) UpdateJob(_ context.Context, jobID string, fields Fields) error {
	_, _, err := s.rest.From(Table).
		Update(fields, "", "").
		Eq("id", jobID).
		Execute()
	if err != nil {
		return fmt.Errorf("update job %s: %w", jobID, err)
	}
	return nil
}
