package models

import "time"

// Period formats used for aggregate keys
const (
	DateLayout      = "2006-01-02"
	YearMonthLayout = "2006-01"
)

// UsageRecord is one append-only row per completed request. Written exactly
// once per successful orchestration, never updated or deleted.
type UsageRecord struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID        string    `gorm:"size:100;index;not null" json:"session_id"`
	UserID           string    `gorm:"size:100;index;default:''" json:"user_id,omitempty"`
	ModelID          string    `gorm:"size:100;index;not null" json:"model_id"`
	Provider         Provider  `gorm:"size:20;not null" json:"provider"`
	PromptTokens     int       `gorm:"not null" json:"prompt_tokens"`
	CompletionTokens int       `gorm:"not null" json:"completion_tokens"`
	TotalTokens      int       `gorm:"not null" json:"total_tokens"`
	Cost             float64   `gorm:"not null" json:"cost"`
	Currency         string    `gorm:"size:3;default:'USD'" json:"currency"`
	CreatedAt        time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
}

// DailyAggregate is a running per-day total keyed by (date, user, model).
// The uniqueness constraint is load-bearing: it is what makes the
// insert-or-increment upsert well-defined under concurrent writers.
//
// A missing user id is stored as the empty string rather than NULL so the
// unique index treats all anonymous usage as one key on every dialect.
type DailyAggregate struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	Date             string    `gorm:"size:10;uniqueIndex:uq_daily_user_model,priority:1;not null" json:"date"`
	UserID           string    `gorm:"size:100;uniqueIndex:uq_daily_user_model,priority:2;default:''" json:"user_id,omitempty"`
	ModelID          string    `gorm:"size:100;uniqueIndex:uq_daily_user_model,priority:3;not null" json:"model_id"`
	Provider         Provider  `gorm:"size:20;not null" json:"provider"`
	PromptTokens     int64     `gorm:"not null;default:0" json:"prompt_tokens"`
	CompletionTokens int64     `gorm:"not null;default:0" json:"completion_tokens"`
	TotalTokens      int64     `gorm:"not null;default:0" json:"total_tokens"`
	TotalCost        float64   `gorm:"not null;default:0" json:"total_cost"`
	RequestCount     int64     `gorm:"not null;default:0" json:"request_count"`
	UpdatedAt        time.Time `gorm:"not null;autoUpdateTime" json:"-"`
}

// MonthlyAggregate is a running per-month total keyed by (year-month, user, model)
type MonthlyAggregate struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	YearMonth        string    `gorm:"size:7;uniqueIndex:uq_monthly_user_model,priority:1;not null" json:"year_month"`
	UserID           string    `gorm:"size:100;uniqueIndex:uq_monthly_user_model,priority:2;default:''" json:"user_id,omitempty"`
	ModelID          string    `gorm:"size:100;uniqueIndex:uq_monthly_user_model,priority:3;not null" json:"model_id"`
	Provider         Provider  `gorm:"size:20;not null" json:"provider"`
	PromptTokens     int64     `gorm:"not null;default:0" json:"prompt_tokens"`
	CompletionTokens int64     `gorm:"not null;default:0" json:"completion_tokens"`
	TotalTokens      int64     `gorm:"not null;default:0" json:"total_tokens"`
	TotalCost        float64   `gorm:"not null;default:0" json:"total_cost"`
	RequestCount     int64     `gorm:"not null;default:0" json:"request_count"`
	UpdatedAt        time.Time `gorm:"not null;autoUpdateTime" json:"-"`
}

// RecordUsageParams carries everything the ledger needs for one request.
// At defaults to the current UTC time when zero.
type RecordUsageParams struct {
	SessionID        string
	UserID           string
	ModelID          string
	Provider         Provider
	PromptTokens     int
	CompletionTokens int
	Cost             float64
	At               time.Time
}

// UsageFilter narrows usage queries
type UsageFilter struct {
	Provider string
	ModelID  string
	UserID   string
}

// SessionUsageSummary is the session query response: all records plus totals
type SessionUsageSummary struct {
	SessionID string         `json:"session_id"`
	Records   []UsageRecord  `json:"records"`
	Totals    UsageBreakdown `json:"totals"`
	TotalCost float64        `json:"total_cost"`
}

// AggregateTotals sums aggregate rows across models
type AggregateTotals struct {
	TotalTokens  int64   `json:"total_tokens"`
	TotalCost    float64 `json:"total_cost"`
	RequestCount int64   `json:"request_count"`
}

// DailyUsageReport is the daily query response: per-model rows plus overall totals
type DailyUsageReport struct {
	Date   string           `json:"date"`
	Rows   []DailyAggregate `json:"rows"`
	Totals AggregateTotals  `json:"totals"`
}

// MonthlyUsageReport is the monthly query response
type MonthlyUsageReport struct {
	YearMonth string             `json:"year_month"`
	Rows      []MonthlyAggregate `json:"rows"`
	Totals    AggregateTotals    `json:"totals"`
}
