package api

import (
	"github.com/omnigate/omnigate/internal/models"
	"github.com/omnigate/omnigate/internal/services/chat"
	"github.com/omnigate/omnigate/internal/services/request"
	"github.com/omnigate/omnigate/internal/services/response"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// CompletionHandler handles chat completions end-to-end
type CompletionHandler struct {
	orchestrator *chat.Orchestrator
	reqSvc       *request.Service
	respSvc      *response.Service
}

// NewCompletionHandler wires up dependencies and initializes the completion handler
func NewCompletionHandler(orchestrator *chat.Orchestrator, reqSvc *request.Service, respSvc *response.Service) *CompletionHandler {
	return &CompletionHandler{
		orchestrator: orchestrator,
		reqSvc:       reqSvc,
		respSvc:      respSvc,
	}
}

// ChatCompletion handles POST /v1/chat/completions
func (h *CompletionHandler) ChatCompletion(c *fiber.Ctx) error {
	requestID := h.reqSvc.GetRequestID(c)
	fiberlog.Infof("[%s] starting chat completion request", requestID)

	var req models.ChatCompletionRequest
	if err := c.BodyParser(&req); err != nil {
		fiberlog.Errorf("[%s] failed to parse request body: %v", requestID, err)
		return h.respSvc.Error(c, models.NewValidationError("body", "invalid request body"))
	}

	resp, err := h.orchestrator.Complete(c.UserContext(), requestID, &req)
	if err != nil {
		fiberlog.Errorf("[%s] chat completion failed: %v", requestID, err)
		return h.respSvc.Error(c, err)
	}

	return h.respSvc.Success(c, resp)
}
