package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"dealwatch/config"
	"dealwatch/email"
	"dealwatch/models"
	"dealwatch/monitor"
	"dealwatch/scraper"
	"dealwatch/storage"
)

const defaultSweepInterval = time.Minute

// Scheduler drives the daemon: it sweeps the monitor registry for due jobs
// on a cron or ticker cadence and polls the command queue so operator
// processes can trigger work. A monitor run failing never stops the sweep.
type Scheduler struct {
	cfg          *config.Config
	orchestrator *scraper.Orchestrator
	monitors     *monitor.Store
	ops          *storage.SQLiteStore
	cron         *cron.Cron
	ticker       *time.Ticker
	stopCh       chan struct{}
}

func New(cfg *config.Config, orchestrator *scraper.Orchestrator, monitors *monitor.Store, ops *storage.SQLiteStore) *Scheduler {
	return &Scheduler{
		cfg:          cfg,
		orchestrator: orchestrator,
		monitors:     monitors,
		ops:          ops,
		stopCh:       make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	go s.pollCommands(ctx)

	if s.cfg.Scheduler.Cron != "" {
		log.Printf("scheduler: cron sweep %q", s.cfg.Scheduler.Cron)
		s.cron = cron.New()
		if _, err := s.cron.AddFunc(s.cfg.Scheduler.Cron, func() { s.sweep(ctx) }); err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
		return nil
	}

	interval := s.cfg.Scheduler.Interval
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	log.Printf("scheduler: interval sweep every %s", interval)
	s.ticker = time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-s.ticker.C:
				s.sweep(ctx)
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

// sweep runs every monitor that is due. Failures are recorded in each
// monitor's history by the store; here they are only logged.
func (s *Scheduler) sweep(ctx context.Context) {
	if s.orchestrator.IsPaused() {
		return
	}

	monitors, err := s.monitors.List()
	if err != nil {
		log.Printf("scheduler: listing monitors failed: %v", err)
		return
	}

	now := time.Now()
	for _, m := range monitors {
		if !m.Due(now) {
			continue
		}

		log.Printf("scheduler: monitor %s due (keyword %q)", m.ID, m.Keyword)
		record, err := s.monitors.Run(ctx, m.ID, s.credentials())
		if err != nil {
			log.Printf("scheduler: monitor %s run error: %v", m.ID, err)
			continue
		}
		if record.Success {
			log.Printf("scheduler: monitor %s completed (%d/%d products)",
				m.ID, record.ValidProducts, record.TotalProducts)
		} else {
			log.Printf("scheduler: monitor %s failed at %s stage: %s",
				m.ID, record.FailedStage, record.Error)
		}
	}
}

func (s *Scheduler) credentials() email.Credentials {
	return email.Credentials{
		Email:    s.cfg.SMTP.Username,
		Password: s.cfg.SMTP.Password,
	}
}

func (s *Scheduler) pollCommands(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cmds, err := s.ops.GetPendingCommands()
			if err != nil {
				log.Printf("scheduler: getting commands failed: %v", err)
				continue
			}

			for _, cmd := range cmds {
				log.Printf("scheduler: processing command %s", cmd.Command)
				if err := s.handleCommand(ctx, &cmd); err != nil {
					log.Printf("scheduler: command error: %v", err)
				}
				if err := s.ops.MarkCommandProcessed(cmd.ID); err != nil {
					log.Printf("scheduler: marking command processed failed: %v", err)
				}
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) handleCommand(ctx context.Context, cmd *models.Command) error {
	params, err := s.ops.ParseCommandParams(cmd)
	if err != nil {
		return err
	}

	switch cmd.Command {
	case models.CmdSearchNow:
		if params.Keyword == "" {
			return fmt.Errorf("search_now requires a keyword")
		}
		pages := params.MaxPages
		if pages == 0 {
			pages = s.cfg.Scraper.DefaultPages
		}
		_, err := s.orchestrator.Search(ctx, params.Keyword, params.Category, pages)
		return err
	case models.CmdRunMonitor:
		if params.MonitorID == "" {
			return fmt.Errorf("run_monitor requires a monitor_id")
		}
		_, err := s.monitors.Run(ctx, params.MonitorID, s.credentials())
		return err
	case models.CmdPause:
		s.orchestrator.Pause()
	case models.CmdResume:
		s.orchestrator.Resume()
	}

	return nil
}

// TriggerSweep runs one due-check immediately, outside the normal cadence.
func (s *Scheduler) TriggerSweep(ctx context.Context) {
	s.sweep(ctx)
}
