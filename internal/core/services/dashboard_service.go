package services

import (
	"context"
	"log"

	"mortgageos/internal/adapters/persistence/repositories"
	"mortgageos/internal/core/domain"
	"mortgageos/internal/pkg/metrics"
)

// AdminStats is the platform summary shown on the admin dashboard
type AdminStats struct {
	TotalUsers    int64            `json:"totalUsers"`
	TotalLoans    int64            `json:"totalLoans"`
	TotalVolume   float64          `json:"totalVolume"`
	LoansByStatus map[string]int64 `json:"loansByStatus"`
}

// DashboardService aggregates platform statistics
type DashboardService struct {
	tx      repositories.Transactor
	users   repositories.UserRepository
	loans   repositories.LoanRepository
	metrics *metrics.Metrics
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(tx repositories.Transactor, users repositories.UserRepository, loans repositories.LoanRepository, m *metrics.Metrics) *DashboardService {
	return &DashboardService{tx: tx, users: users, loans: loans, metrics: m}
}

// AdminStats reads every figure inside one transaction so they agree
func (s *DashboardService) AdminStats(ctx context.Context) (*AdminStats, error) {
	stats := &AdminStats{LoansByStatus: map[string]int64{}}

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		if stats.TotalUsers, err = s.users.Count(ctx); err != nil {
			return err
		}
		totals, err := s.loans.Totals(ctx)
		if err != nil {
			return err
		}
		stats.TotalLoans = totals.Total
		stats.TotalVolume = totals.Volume

		byStatus, err := s.loans.CountByStatus(ctx)
		if err != nil {
			return err
		}
		for _, st := range domain.LoanStatuses {
			stats.LoansByStatus[string(st)] = byStatus[st]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// PipelineReport counts loans per status, logs the summary and refreshes the
// pipeline gauge. It runs on the report schedule.
func (s *DashboardService) PipelineReport(ctx context.Context) (map[string]int64, error) {
	byStatus, err := s.loans.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(domain.LoanStatuses))
	var total int64
	for _, st := range domain.LoanStatuses {
		counts[string(st)] = byStatus[st]
		total += byStatus[st]
	}
	s.metrics.SetPipeline(counts)

	log.Printf("📊 Pipeline report: %d applications", total)
	for _, st := range domain.LoanStatuses {
		if n := counts[string(st)]; n > 0 {
			log.Printf("   %-22s %d", st, n)
		}
	}
	return counts, nil
}
