package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"autorunner/internal/config"
	"autorunner/internal/core/jobstore"
	"autorunner/internal/core/screenshot"
	"autorunner/internal/core/script"
	"autorunner/internal/logger"
	"autorunner/internal/platform/tasks"
)

const TaskTypeRun = "automation:run"

type Store interface {
	FetchScript(ctx context.Context, jobID string) (string, error)
	UpdateJob(ctx context.Context, jobID string, fields jobstore.Fields) error
}

type Publisher interface {
	Publish(ctx context.Context, jobID, path string, updateLatest bool) (string, error)
}

type Launcher interface {
	Launch() (script.Session, error)
}

// Service drives one job from queued to a terminal status. No retries:
// a failure anywhere collapses into a single failed state carrying the
// log lines accumulated so far.
type Service struct {
	log    *logger.Logger
	cfg    config.Config
	store  Store
	shots  Publisher
	launch Launcher
	engine *script.Engine
	tasks  *tasks.Client
}

func New(cfg config.Config, store Store, shots Publisher, launch Launcher, taskClient *tasks.Client) *Service {
	return &Service{
		log:    logger.New("Runner"),
		cfg:    cfg,
		store:  store,
		shots:  shots,
		launch: launch,
		engine: script.NewEngine(),
		tasks:  taskClient,
	}
}

type Payload struct {
	JobID string `json:"job_id"`
}

// Enqueue hands the job to the worker queue and returns immediately.
// MaxRetry is 0: the job state machine has no retry transitions.
func (s *Service) Enqueue(_ context.Context, jobID string) error {
	payload, err := json.Marshal(Payload{JobID: jobID})
	if err != nil {
		return err
	}
	return s.tasks.Enqueue(asynq.NewTask(TaskTypeRun, payload), "default", 0)
}

// HandleTask is the asynq entry point. The per-job timeout bounds the
// whole run, script execution included.
func (s *Service) HandleTask(ctx context.Context, task *asynq.Task) error {
	var p Payload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return fmt.Errorf("decode task payload: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.JobTimeout)
	defer cancel()
	return s.Run(ctx, p.JobID)
}

// Run executes the per-job state machine. The returned error has
// already been recorded on the job row; the background host only logs
// it, since the HTTP response was sent long ago.
func (s *Service) Run(ctx context.Context, jobID string) error {
	run := &jobRun{svc: s, jobID: jobID}
	err := run.execute(ctx)
	if err != nil {
		s.log.LogErrorf("job %s failed: %v", jobID, err)
		// ctx may already be expired here; the terminal write must
		// still land.
		if uerr := s.store.UpdateJob(context.Background(), jobID, jobstore.Fields{
			"status":        string(jobstore.StatusFailed),
			"error_message": err.Error(),
			"log_output":    run.logOutput(),
		}); uerr != nil {
			s.log.LogErrorf("failed to record failure for job %s: %v", jobID, uerr)
		}
		return err
	}
	s.log.LogSuccessf("job %s completed", jobID)
	return s.store.UpdateJob(ctx, jobID, jobstore.Fields{
		"status":        string(jobstore.StatusCompleted),
		"error_message": nil,
		"log_output":    run.logOutput(),
	})
}

// jobRun is the single unit of work for one job: the log buffer is only
// ever appended to by this goroutine.
type jobRun struct {
	svc   *Service
	jobID string
	lines []string
	dir   string
}

func (r *jobRun) append(msg string) {
	r.lines = append(r.lines, msg)
	r.svc.log.LogInfof("[job %s] %s", r.jobID, msg)
}

func (r *jobRun) logOutput() string {
	return strings.Join(r.lines, "\n")
}

// capture takes a screenshot, saves it to the run's scratch dir and
// publishes it. Every failure degrades to "" plus a log line; a bad
// screenshot never fails the job.
func (r *jobRun) capture(ctx context.Context, sess script.Session, label string, updateLatest bool) string {
	buf, err := sess.Screenshot()
	if err != nil {
		r.append(fmt.Sprintf("failed to capture screenshot %q: %v", label, err))
		return ""
	}
	path := filepath.Join(r.dir, screenshot.Filename(r.jobID, label, time.Now()))
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		r.append(fmt.Sprintf("failed to save screenshot %q: %v", label, err))
		return ""
	}
	url, err := r.svc.shots.Publish(ctx, r.jobID, path, updateLatest)
	if err != nil {
		r.append(fmt.Sprintf("failed to upload screenshot %q: %v", label, err))
		return ""
	}
	return url
}

func (r *jobRun) execute(ctx context.Context) error {
	s := r.svc

	if err := s.store.UpdateJob(ctx, r.jobID, jobstore.Fields{
		"status": string(jobstore.StatusRunning),
	}); err != nil {
		return err
	}

	text, err := s.store.FetchScript(ctx, r.jobID)
	if err != nil {
		return err
	}
	r.append("starting job " + r.jobID)

	sc, err := script.Parse(text)
	if err != nil {
		return err
	}

	r.dir = filepath.Join(s.cfg.DataDir, "runs", uuid.NewString())
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}

	raw, err := s.launch.Launch()
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}

	sess := &guardedSession{
		Session: raw,
		beforeQuit: func() {
			// Bookkeeping shot: never moves the latest pointer.
			r.capture(ctx, raw, "before-quit", false)
		},
		onCloseErr: func(err error) {
			r.append(fmt.Sprintf("error closing browser session: %v", err))
		},
	}
	defer sess.Close()

	caps := script.Capabilities{
		Session: sess,
		Log:     r.append,
		CaptureScreenshot: func(label string, updateLatest bool) string {
			return r.capture(ctx, raw, label, updateLatest)
		},
	}
	if err := s.engine.Execute(ctx, sc, caps); err != nil {
		return err
	}

	r.capture(ctx, raw, "final", false)
	r.append("job " + r.jobID + " completed")
	return nil
}
