package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/referral-service/internal/service"
)

// ReferralsHandler serves the CSV export of all referrals.
type ReferralsHandler struct {
	reports *service.ReportService
}

// NewReferralsHandler constructs handler.
func NewReferralsHandler(reports *service.ReportService) *ReferralsHandler {
	return &ReferralsHandler{reports: reports}
}

// Report handles GET /api/referrals/report.
func (h *ReferralsHandler) Report(c *fiber.Ctx) error {
	body, err := h.reports.RenderCSV(c.Context())
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, "attachment; filename=referral_report.csv")
	return c.Send(body)
}
