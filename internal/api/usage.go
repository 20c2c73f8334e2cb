package api

import (
	"time"

	"github.com/omnigate/omnigate/internal/models"
	"github.com/omnigate/omnigate/internal/services/ledger"
	"github.com/omnigate/omnigate/internal/services/request"
	"github.com/omnigate/omnigate/internal/services/response"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// UsageHandler serves the usage query endpoints
type UsageHandler struct {
	ledger  *ledger.Service
	reqSvc  *request.Service
	respSvc *response.Service
}

func NewUsageHandler(ledgerService *ledger.Service, reqSvc *request.Service, respSvc *response.Service) *UsageHandler {
	return &UsageHandler{
		ledger:  ledgerService,
		reqSvc:  reqSvc,
		respSvc: respSvc,
	}
}

func filterFromQuery(c *fiber.Ctx) models.UsageFilter {
	return models.UsageFilter{
		Provider: c.Query("provider"),
		ModelID:  c.Query("model_id"),
		UserID:   c.Query("user_id"),
	}
}

// SessionUsage handles GET /v1/usage/sessions/:session_id
func (h *UsageHandler) SessionUsage(c *fiber.Ctx) error {
	requestID := h.reqSvc.GetRequestID(c)

	sessionID := c.Params("session_id")
	if sessionID == "" {
		return h.respSvc.Error(c, models.NewValidationError("session_id", "session id is required"))
	}

	summary, err := h.ledger.QuerySession(c.UserContext(), sessionID, filterFromQuery(c))
	if err != nil {
		fiberlog.Errorf("[%s] session usage query failed: %v", requestID, err)
		return h.respSvc.Error(c, err)
	}

	return h.respSvc.Success(c, summary)
}

// DailyUsage handles GET /v1/usage/daily/:date. Without a date it reports
// the current UTC day; with start_date/end_date query params it reports the
// whole range instead.
func (h *UsageHandler) DailyUsage(c *fiber.Ctx) error {
	requestID := h.reqSvc.GetRequestID(c)

	date := c.Params("date")
	if date == "" {
		if c.Query("start_date") != "" || c.Query("end_date") != "" {
			return h.dailyRange(c, requestID)
		}
		date = time.Now().UTC().Format(models.DateLayout)
	}

	report, err := h.ledger.QueryDaily(c.UserContext(), date, filterFromQuery(c))
	if err != nil {
		fiberlog.Errorf("[%s] daily usage query failed: %v", requestID, err)
		return h.respSvc.Error(c, err)
	}

	return h.respSvc.Success(c, report)
}

func (h *UsageHandler) dailyRange(c *fiber.Ctx, requestID string) error {
	start := c.Query("start_date")
	end := c.Query("end_date")

	reports, err := h.ledger.QueryDailyRange(c.UserContext(), start, end, filterFromQuery(c))
	if err != nil {
		fiberlog.Errorf("[%s] daily usage range query failed: %v", requestID, err)
		return h.respSvc.Error(c, err)
	}

	return h.respSvc.Success(c, fiber.Map{
		"start_date": start,
		"end_date":   end,
		"days":       reports,
	})
}

// MonthlyUsage handles GET /v1/usage/monthly/:month. Without a month it
// reports the current UTC month.
func (h *UsageHandler) MonthlyUsage(c *fiber.Ctx) error {
	requestID := h.reqSvc.GetRequestID(c)

	month := c.Params("month")
	if month == "" {
		month = time.Now().UTC().Format(models.YearMonthLayout)
	}

	report, err := h.ledger.QueryMonthly(c.UserContext(), month, filterFromQuery(c))
	if err != nil {
		fiberlog.Errorf("[%s] monthly usage query failed: %v", requestID, err)
		return h.respSvc.Error(c, err)
	}

	return h.respSvc.Success(c, report)
}
