// Package ledger persists usage records and maintains running daily and
// monthly aggregates.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/omnigate/omnigate/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) AutoMigrate() error {
	return s.db.AutoMigrate(
		&models.UsageRecord{},
		&models.DailyAggregate{},
		&models.MonthlyAggregate{},
	)
}

// Record writes one usage record and bumps the daily and monthly aggregates
// for its (period, user, model) keys. All three writes happen in a single
// transaction so the ledger never shows an aggregate without its record.
//
// The aggregate bumps are column-relative upserts resolved by the database,
// so concurrent recorders never lose increments to each other.
func (s *Service) Record(ctx context.Context, params models.RecordUsageParams) (*models.UsageRecord, error) {
	at := params.At
	if at.IsZero() {
		at = time.Now().UTC()
	} else {
		at = at.UTC()
	}

	record := models.UsageRecord{
		SessionID:        params.SessionID,
		UserID:           params.UserID,
		ModelID:          params.ModelID,
		Provider:         params.Provider,
		PromptTokens:     params.PromptTokens,
		CompletionTokens: params.CompletionTokens,
		TotalTokens:      params.PromptTokens + params.CompletionTokens,
		Cost:             params.Cost,
		Currency:         "USD",
		CreatedAt:        at,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("failed to record usage: %w", err)
		}

		daily := models.DailyAggregate{
			Date:             at.Format(models.DateLayout),
			UserID:           params.UserID,
			ModelID:          params.ModelID,
			Provider:         params.Provider,
			PromptTokens:     int64(params.PromptTokens),
			CompletionTokens: int64(params.CompletionTokens),
			TotalTokens:      int64(record.TotalTokens),
			TotalCost:        params.Cost,
			RequestCount:     1,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "date"}, {Name: "user_id"}, {Name: "model_id"}},
			DoUpdates: incrementAssignments(record),
		}).Create(&daily).Error; err != nil {
			return fmt.Errorf("failed to update daily aggregate: %w", err)
		}

		monthly := models.MonthlyAggregate{
			YearMonth:        at.Format(models.YearMonthLayout),
			UserID:           params.UserID,
			ModelID:          params.ModelID,
			Provider:         params.Provider,
			PromptTokens:     int64(params.PromptTokens),
			CompletionTokens: int64(params.CompletionTokens),
			TotalTokens:      int64(record.TotalTokens),
			TotalCost:        params.Cost,
			RequestCount:     1,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "year_month"}, {Name: "user_id"}, {Name: "model_id"}},
			DoUpdates: incrementAssignments(record),
		}).Create(&monthly).Error; err != nil {
			return fmt.Errorf("failed to update monthly aggregate: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &record, nil
}

func incrementAssignments(record models.UsageRecord) clause.Set {
	return clause.Assignments(map[string]any{
		"prompt_tokens":     gorm.Expr("prompt_tokens + ?", record.PromptTokens),
		"completion_tokens": gorm.Expr("completion_tokens + ?", record.CompletionTokens),
		"total_tokens":      gorm.Expr("total_tokens + ?", record.TotalTokens),
		"total_cost":        gorm.Expr("total_cost + ?", record.Cost),
		"request_count":     gorm.Expr("request_count + 1"),
		"updated_at":        time.Now().UTC(),
	})
}

// QuerySession returns every record for a session in insertion order plus
// summed totals. A session nothing was recorded for yields an empty summary,
// not an error.
func (s *Service) QuerySession(ctx context.Context, sessionID string, filter models.UsageFilter) (*models.SessionUsageSummary, error) {
	var records []models.UsageRecord

	query := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC, id ASC")
	query = applyFilter(query, filter)

	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query session usage: %w", err)
	}

	summary := models.SessionUsageSummary{
		SessionID: sessionID,
		Records:   records,
	}
	for _, r := range records {
		summary.Totals.PromptTokens += r.PromptTokens
		summary.Totals.CompletionTokens += r.CompletionTokens
		summary.Totals.TotalTokens += r.TotalTokens
		summary.TotalCost += r.Cost
	}

	return &summary, nil
}

// QueryDaily returns the per-model aggregate rows for one calendar day.
func (s *Service) QueryDaily(ctx context.Context, date string, filter models.UsageFilter) (*models.DailyUsageReport, error) {
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return nil, models.NewValidationError("date", fmt.Sprintf("must be formatted as %s", models.DateLayout))
	}

	var rows []models.DailyAggregate

	query := s.db.WithContext(ctx).
		Where("date = ?", date).
		Order("model_id ASC")
	query = applyFilter(query, filter)

	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query daily usage: %w", err)
	}

	report := models.DailyUsageReport{
		Date: date,
		Rows: rows,
	}
	for _, row := range rows {
		report.Totals.TotalTokens += row.TotalTokens
		report.Totals.TotalCost += row.TotalCost
		report.Totals.RequestCount += row.RequestCount
	}

	return &report, nil
}

// QueryMonthly returns the per-model aggregate rows for one calendar month.
func (s *Service) QueryMonthly(ctx context.Context, yearMonth string, filter models.UsageFilter) (*models.MonthlyUsageReport, error) {
	if _, err := time.Parse(models.YearMonthLayout, yearMonth); err != nil {
		return nil, models.NewValidationError("month", fmt.Sprintf("must be formatted as %s", models.YearMonthLayout))
	}

	var rows []models.MonthlyAggregate

	query := s.db.WithContext(ctx).
		Where("year_month = ?", yearMonth).
		Order("model_id ASC")
	query = applyFilter(query, filter)

	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query monthly usage: %w", err)
	}

	report := models.MonthlyUsageReport{
		YearMonth: yearMonth,
		Rows:      rows,
	}
	for _, row := range rows {
		report.Totals.TotalTokens += row.TotalTokens
		report.Totals.TotalCost += row.TotalCost
		report.Totals.RequestCount += row.RequestCount
	}

	return &report, nil
}

// QueryDailyRange returns one report per day in [start, end], inclusive.
// Days with no usage are returned with empty rows so callers can chart a
// contiguous range.
func (s *Service) QueryDailyRange(ctx context.Context, start, end string, filter models.UsageFilter) ([]models.DailyUsageReport, error) {
	startDay, err := time.Parse(models.DateLayout, start)
	if err != nil {
		return nil, models.NewValidationError("start", fmt.Sprintf("must be formatted as %s", models.DateLayout))
	}
	endDay, err := time.Parse(models.DateLayout, end)
	if err != nil {
		return nil, models.NewValidationError("end", fmt.Sprintf("must be formatted as %s", models.DateLayout))
	}
	if endDay.Before(startDay) {
		return nil, models.NewValidationError("end", "must not be before start")
	}

	var rows []models.DailyAggregate

	query := s.db.WithContext(ctx).
		Where("date >= ? AND date <= ?", start, end).
		Order("date ASC, model_id ASC")
	query = applyFilter(query, filter)

	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query daily usage range: %w", err)
	}

	byDate := make(map[string][]models.DailyAggregate)
	for _, row := range rows {
		byDate[row.Date] = append(byDate[row.Date], row)
	}

	var reports []models.DailyUsageReport
	for day := startDay; !day.After(endDay); day = day.AddDate(0, 0, 1) {
		date := day.Format(models.DateLayout)
		report := models.DailyUsageReport{
			Date: date,
			Rows: byDate[date],
		}
		for _, row := range report.Rows {
			report.Totals.TotalTokens += row.TotalTokens
			report.Totals.TotalCost += row.TotalCost
			report.Totals.RequestCount += row.RequestCount
		}
		reports = append(reports, report)
	}

	return reports, nil
}

func applyFilter(query *gorm.DB, filter models.UsageFilter) *gorm.DB {
	if filter.Provider != "" {
		query = query.Where("provider = ?", filter.Provider)
	}
	if filter.ModelID != "" {
		query = query.Where("model_id = ?", filter.ModelID)
	}
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	return query
}
