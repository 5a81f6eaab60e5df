package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"dealwatch/analyzer"
	"dealwatch/email"
	"dealwatch/models"
	"dealwatch/scraper"
)

var (
	ErrNotFound   = errors.New("monitor not found")
	ErrDisabled   = errors.New("monitor is disabled")
	ErrValidation = errors.New("invalid monitor parameters")
)

// Searcher is the fetch capability the run pipeline needs; satisfied by
// scraper.Fetcher.
type Searcher interface {
	Fetch(ctx context.Context, q scraper.Query) ([]models.Fragment, string, error)
}

// Renderer produces the report body delivered by email.
type Renderer interface {
	HTML(result *models.AnalysisResult) (string, error)
}

// Notifier delivers a rendered report; satisfied by email.Sender.
type Notifier interface {
	Send(creds email.Credentials, recipient, subject, body string, isHTML bool) error
}

// Archiver receives completed analyses for long-term storage. Archival
// failure never fails a run.
type Archiver interface {
	ArchiveAnalysis(ctx context.Context, monitorID string, result *models.AnalysisResult) error
}

// RunRecorder mirrors monitor runs into the operational store; satisfied by
// storage.SQLiteStore. Recording failures never fail a run.
type RunRecorder interface {
	CreateRun(run *models.SearchRun) (int64, error)
	UpdateRun(run *models.SearchRun) error
	Log(runID *int64, level models.LogLevel, message string)
}

// Store is the durable registry of recurring monitor jobs plus the runner
// that executes their pipeline. The registry file is the only shared
// mutable state; all fetch/analyze/deliver work happens outside its lock.
type Store struct {
	registry   *registry
	fetcher    Searcher
	renderer   Renderer
	notifier   Notifier
	archive    Archiver
	recorder   RunRecorder
	categoryID func(string) string
}

func NewStore(registryPath string, fetcher Searcher, renderer Renderer, notifier Notifier, categoryID func(string) string) *Store {
	if categoryID == nil {
		categoryID = func(string) string { return "" }
	}
	return &Store{
		registry:   newRegistry(registryPath),
		fetcher:    fetcher,
		renderer:   renderer,
		notifier:   notifier,
		categoryID: categoryID,
	}
}

// SetArchive wires the optional analysis archive.
func (s *Store) SetArchive(a Archiver) {
	s.archive = a
}

// SetRunRecorder wires the optional operational store.
func (s *Store) SetRunRecorder(r RunRecorder) {
	s.recorder = r
}

// Create registers a new monitor. The first due time is anchored to the
// creation instant.
func (s *Store) Create(keyword, category string, maxPages int, emailAddr string, frequency models.Frequency) (*models.Monitor, error) {
	if strings.TrimSpace(keyword) == "" {
		return nil, fmt.Errorf("%w: keyword must not be empty", ErrValidation)
	}
	if !frequency.Valid() {
		return nil, fmt.Errorf("%w: unknown frequency %q", ErrValidation, frequency)
	}
	if maxPages < 1 {
		maxPages = 1
	}
	if maxPages > 5 {
		maxPages = 5
	}

	now := time.Now().UTC()
	m := &models.Monitor{
		ID:        uuid.NewString(),
		Keyword:   keyword,
		Category:  category,
		MaxPages:  maxPages,
		Email:     emailAddr,
		Frequency: frequency,
		CreatedAt: now,
		NextDueAt: frequency.NextAfter(now),
		Enabled:   true,
	}

	err := s.registry.mutate(func(monitors map[string]*models.Monitor) error {
		monitors[m.ID] = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("monitor: created %s (keyword %q, %s)", m.ID, m.Keyword, m.Frequency)
	out := *m
	return &out, nil
}

// Get returns a copy of the monitor; callers never hold a live reference
// into the registry.
func (s *Store) Get(id string) (*models.Monitor, error) {
	monitors, err := s.registry.view()
	if err != nil {
		return nil, err
	}
	m, ok := monitors[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	out := *m
	return &out, nil
}

// List returns all monitors ordered by creation time.
func (s *Store) List() ([]models.Monitor, error) {
	monitors, err := s.registry.view()
	if err != nil {
		return nil, err
	}
	out := make([]models.Monitor, 0, len(monitors))
	for _, m := range monitors {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Due reports whether the monitor is enabled and past its next due time.
func (s *Store) Due(id string, now time.Time) (bool, error) {
	m, err := s.Get(id)
	if err != nil {
		return false, err
	}
	return m.Due(now), nil
}

// History returns the monitor's run records, oldest first.
func (s *Store) History(id string) ([]models.RunRecord, error) {
	m, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return m.RunHistory, nil
}

// SetEnabled toggles a monitor without touching its schedule.
func (s *Store) SetEnabled(id string, enabled bool) error {
	return s.registry.mutate(func(monitors map[string]*models.Monitor) error {
		m, ok := monitors[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		m.Enabled = enabled
		return nil
	})
}

// Remove hard-deletes the monitor and its history.
func (s *Store) Remove(id string) error {
	return s.registry.mutate(func(monitors map[string]*models.Monitor) error {
		if _, ok := monitors[id]; !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		delete(monitors, id)
		return nil
	})
}

// Run executes the monitor's fetch → parse → analyze → deliver pipeline and
// appends exactly one run record regardless of outcome. On success the next
// due time is re-anchored to the run time (a late run does not cause
// back-to-back catch-up runs); on failure it is left unchanged so the
// monitor stays due until a run succeeds.
func (s *Store) Run(ctx context.Context, id string, creds email.Credentials) (*models.RunRecord, error) {
	m, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if !m.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrDisabled, id)
	}

	record := s.execute(ctx, m, creds)

	err = s.registry.mutate(func(monitors map[string]*models.Monitor) error {
		live, ok := monitors[id]
		if !ok {
			// Removed while the pipeline ran; nothing to record.
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		live.RunHistory = append(live.RunHistory, record)
		if record.Success {
			ranAt := record.Timestamp
			live.LastRunAt = &ranAt
			live.NextDueAt = live.Frequency.NextAfter(ranAt)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &record, nil
}

// execute runs the pipeline stages strictly in order, outside the registry
// lock. A stage failure stops the pipeline and is named in the record.
func (s *Store) execute(ctx context.Context, m *models.Monitor, creds email.Credentials) models.RunRecord {
	record := models.RunRecord{Timestamp: time.Now().UTC()}

	opsRun := s.beginOpsRun(m)
	defer s.finishOpsRun(opsRun, &record)

	q := scraper.Query{
		Keyword:    m.Keyword,
		Category:   m.Category,
		CategoryID: s.categoryID(m.Category),
		MaxPages:   m.MaxPages,
	}

	fragments, strategy, err := s.fetcher.Fetch(ctx, q)
	if err != nil {
		record.FailedStage = models.StageFetch
		record.Error = err.Error()
		log.Printf("monitor %s: fetch failed: %v", m.ID, err)
		return record
	}
	if opsRun != nil {
		opsRun.Strategy = strategy
		opsRun.FragmentsFound = len(fragments)
	}
	log.Printf("monitor %s: fetched %d fragments via %s", m.ID, len(fragments), strategy)

	products, total, valid := scraper.ParseAll(fragments)
	record.TotalProducts = total
	record.ValidProducts = valid
	if valid == 0 {
		record.FailedStage = models.StageParse
		record.Error = "no fragments parsed into products"
		return record
	}

	result, err := analyzer.Analyze(m.Keyword, m.Category, products, total)
	if err != nil {
		record.FailedStage = models.StageAnalyze
		record.Error = err.Error()
		return record
	}
	record.TopPicks = result.TopPicks()

	if s.archive != nil {
		if err := s.archive.ArchiveAnalysis(ctx, m.ID, result); err != nil {
			log.Printf("monitor %s: archive failed (ignored): %v", m.ID, err)
		}
	}

	if m.Email != "" && creds.Email != "" {
		body, err := s.renderer.HTML(result)
		if err == nil {
			err = s.notifier.Send(creds, m.Email,
				fmt.Sprintf("Product Report - %s", m.Keyword), body, true)
		}
		if err != nil {
			record.FailedStage = models.StageDeliver
			record.Error = err.Error()
			return record
		}
		record.EmailSent = true
	}

	record.Success = true
	return record
}

// beginOpsRun opens an operational run row for the monitor execution.
// Returns nil when no recorder is wired or the insert fails.
func (s *Store) beginOpsRun(m *models.Monitor) *models.SearchRun {
	if s.recorder == nil {
		return nil
	}
	run := &models.SearchRun{
		Keyword:   m.Keyword,
		Category:  m.Category,
		MonitorID: m.ID,
		StartedAt: time.Now().UTC(),
		Status:    models.RunStatusRunning,
	}
	id, err := s.recorder.CreateRun(run)
	if err != nil {
		log.Printf("monitor %s: run recording unavailable: %v", m.ID, err)
		return nil
	}
	run.ID = id
	return run
}

// finishOpsRun closes the operational run row from the final run record.
func (s *Store) finishOpsRun(run *models.SearchRun, record *models.RunRecord) {
	if run == nil {
		return
	}
	now := time.Now().UTC()
	run.FinishedAt = &now
	run.ProductsParsed = record.ValidProducts
	if record.Success {
		run.Status = models.RunStatusCompleted
	} else {
		run.Status = models.RunStatusFailed
		run.ErrorsCount = 1
		s.recorder.Log(&run.ID, models.LogLevelError,
			fmt.Sprintf("%s stage failed: %s", record.FailedStage, record.Error))
	}
	if err := s.recorder.UpdateRun(run); err != nil {
		log.Printf("monitor %s: run record update failed: %v", run.MonitorID, err)
	}
}
