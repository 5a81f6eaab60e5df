package scraper

import (
	"context"
	"fmt"
	"log"
	"time"

	"dealwatch/analyzer"
	"dealwatch/config"
	"dealwatch/models"
	"dealwatch/storage"
)

// Archiver receives completed analyses; archival failure is logged and
// ignored.
type Archiver interface {
	ArchiveAnalysis(ctx context.Context, monitorID string, result *models.AnalysisResult) error
}

// Orchestrator runs the fetch → parse → analyze pipeline for ad hoc
// searches and records each execution in the operational store.
type Orchestrator struct {
	cfg     *config.Config
	fetcher *Fetcher
	ops     *storage.SQLiteStore
	archive Archiver
	paused  bool
}

func NewOrchestrator(cfg *config.Config, ops *storage.SQLiteStore) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		fetcher: NewFetcher(cfg),
		ops:     ops,
	}
}

// Fetcher exposes the underlying strategy list so the monitor runner can
// share it.
func (o *Orchestrator) Fetcher() *Fetcher {
	return o.fetcher
}

func (o *Orchestrator) SetArchive(a Archiver) {
	o.archive = a
}

// Search runs the full pipeline once. Fetch, parse, and analyze failures
// propagate to the caller as typed errors naming the failing stage.
func (o *Orchestrator) Search(ctx context.Context, keyword, category string, maxPages int) (*models.AnalysisResult, error) {
	run := &models.SearchRun{
		Keyword:   keyword,
		Category:  category,
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}

	runID, err := o.ops.CreateRun(run)
	if err != nil {
		return nil, err
	}
	run.ID = runID

	defer func() {
		now := time.Now()
		run.FinishedAt = &now
		o.ops.UpdateRun(run)
	}()

	q := Query{
		Keyword:    keyword,
		Category:   category,
		CategoryID: o.cfg.CategoryID(category),
		MaxPages:   maxPages,
	}

	fragments, strategy, err := o.fetcher.Fetch(ctx, q)
	if err != nil {
		run.Status = models.RunStatusFailed
		run.ErrorsCount++
		o.log(runID, models.LogLevelError, fmt.Sprintf("fetch failed: %v", err))
		return nil, fmt.Errorf("fetch stage: %w", err)
	}
	run.Strategy = strategy
	run.FragmentsFound = len(fragments)
	o.log(runID, models.LogLevelInfo, fmt.Sprintf("fetched %d fragments via %s", len(fragments), strategy))

	products, total, valid := ParseAll(fragments)
	run.ProductsParsed = valid
	o.log(runID, models.LogLevelInfo, fmt.Sprintf("parsed %d/%d fragments", valid, total))

	result, err := analyzer.Analyze(keyword, category, products, total)
	if err != nil {
		run.Status = models.RunStatusFailed
		run.ErrorsCount++
		o.log(runID, models.LogLevelError, fmt.Sprintf("analyze failed: %v", err))
		return nil, fmt.Errorf("analyze stage: %w", err)
	}

	if o.archive != nil {
		if err := o.archive.ArchiveAnalysis(ctx, "", result); err != nil {
			o.log(runID, models.LogLevelWarn, fmt.Sprintf("archive failed: %v", err))
		}
	}

	run.Status = models.RunStatusCompleted
	return result, nil
}

func (o *Orchestrator) Pause() {
	o.paused = true
	log.Println("orchestrator paused")
}

func (o *Orchestrator) Resume() {
	o.paused = false
	log.Println("orchestrator resumed")
}

func (o *Orchestrator) IsPaused() bool {
	return o.paused
}

func (o *Orchestrator) log(runID int64, level models.LogLevel, message string) {
	log.Printf("[%s] %s", level, message)
	o.ops.Log(&runID, level, message)
}
