package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultReportSchedule runs the pipeline report at 08:30 every day
const DefaultReportSchedule = "30 8 * * *"

// PipelineReporter produces the scheduled pipeline summary
type PipelineReporter interface {
	PipelineReport(ctx context.Context) (map[string]int64, error)
}

// CronService runs scheduled jobs
type CronService struct {
	cron     *cron.Cron
	reporter PipelineReporter
	schedule string
	timeout  time.Duration
}

// NewCronService registers the pipeline report on schedule. An empty
// schedule uses DefaultReportSchedule.
func NewCronService(reporter PipelineReporter, schedule string) (*CronService, error) {
	if schedule == "" {
		schedule = DefaultReportSchedule
	}

	s := &CronService{
		cron:     cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		reporter: reporter,
		schedule: schedule,
		timeout:  time.Minute,
	}
	if _, err := s.cron.AddFunc(schedule, s.RunPipelineReport); err != nil {
		return nil, fmt.Errorf("invalid report schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start starts the scheduler
func (s *CronService) Start() {
	s.cron.Start()
	log.Printf("⏰ Cron service started (pipeline report: %s)", s.schedule)
}

// Stop stops the scheduler and waits for a running job
func (s *CronService) Stop() {
	<-s.cron.Stop().Done()
	log.Println("⏰ Cron service stopped")
}

// RunPipelineReport runs the report once
func (s *CronService) RunPipelineReport() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.reporter.PipelineReport(ctx); err != nil {
		log.Printf("❌ Pipeline report failed: %v", err)
	}
}
