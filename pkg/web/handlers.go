package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/pion/webrtc/v3"

	"github.com/teslashibe/go-livetranslate/internal/config"
	"github.com/teslashibe/go-livetranslate/pkg/hub"
	"github.com/teslashibe/go-livetranslate/pkg/translator"
)

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	translator.Status
	SourceCode string `json:"source_code"`
	TargetCode string `json:"target_code"`
	Clients    int    `json:"clients"`
}

// LanguagesResponse is the body of GET /api/languages.
type LanguagesResponse struct {
	Languages []config.Language `json:"languages"`
	Source    string            `json:"source"`
	Target    string            `json:"target"`
}

// SessionRequest is the body of POST /api/session. Empty codes keep the
// current selection.
type SessionRequest struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

func errorJSON(c *fiber.Ctx, code int, msg string) error {
	return c.Status(code).JSON(fiber.Map{"error": msg})
}

func knownLanguage(code string) bool {
	for _, l := range config.Languages {
		if l.Code == code {
			return true
		}
	}
	return false
}

func (s *Server) status() StatusResponse {
	source, target := s.Languages()
	return StatusResponse{
		Status:     s.ctrl.Status(),
		SourceCode: source,
		TargetCode: target,
		Clients:    s.statusHub.ClientCount(),
	}
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.status())
}

func (s *Server) handleLanguages(c *fiber.Ctx) error {
	source, target := s.Languages()
	return c.JSON(LanguagesResponse{Languages: config.Languages, Source: source, Target: target})
}

// handleSwap exchanges source and target. The selection is fixed while a
// session is open.
func (s *Server) handleSwap(c *fiber.Ctx) error {
	if s.ctrl.Status().Connected() {
		return errorJSON(c, fiber.StatusConflict, "cannot swap languages while connected")
	}

	s.mu.Lock()
	s.source, s.target = s.target, s.source
	source, target := s.source, s.target
	s.mu.Unlock()

	return c.JSON(LanguagesResponse{Languages: config.Languages, Source: source, Target: target})
}

func (s *Server) handleConnect(c *fiber.Ctx) error {
	var req SessionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	s.mu.Lock()
	if req.Source == "" {
		req.Source = s.source
	}
	if req.Target == "" {
		req.Target = s.target
	}
	if !knownLanguage(req.Source) || !knownLanguage(req.Target) {
		s.mu.Unlock()
		return errorJSON(c, fiber.StatusBadRequest, "unknown language")
	}
	s.source, s.target = req.Source, req.Target
	s.mu.Unlock()

	err := s.ctrl.Connect(c.UserContext(), config.LanguageName(req.Source), config.LanguageName(req.Target))
	if err != nil {
		s.logger.Warn("connect failed", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":  err.Error(),
			"status": s.status(),
		})
	}
	return c.JSON(s.status())
}

func (s *Server) handleDisconnect(c *fiber.Ctx) error {
	s.ctrl.Disconnect()
	return c.JSON(s.status())
}

func (s *Server) handleTranscript(c *fiber.Ctx) error {
	return c.JSON(s.ctrl.Transcript())
}

func (s *Server) handleClearTranscript(c *fiber.Ctx) error {
	s.ctrl.ClearTranscript()
	return c.SendStatus(fiber.StatusNoContent)
}

// handleOffer answers a browser's WebRTC offer.
func (s *Server) handleOffer(c *fiber.Ctx) error {
	if s.offerer == nil {
		return errorJSON(c, fiber.StatusServiceUnavailable, "webrtc audio is not enabled")
	}

	var offer webrtc.SessionDescription
	if err := c.BodyParser(&offer); err != nil || offer.SDP == "" {
		return errorJSON(c, fiber.StatusBadRequest, "invalid session description")
	}

	answer, err := s.offerer.Offer(c.UserContext(), offer)
	if err != nil {
		s.logger.Warn("webrtc offer failed", "error", err)
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(answer)
}

// handleStatusWS sends the current status, then streams hub events.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	if err := c.WriteJSON(StatusEvent{Type: EventStatus, Status: s.status()}); err != nil {
		return
	}

	client := hub.NewClient(s.statusHub, c)
	if client == nil {
		return
	}
	client.Run()
}
