package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/h4ks-com/fieldops/internal/indicators"
	"github.com/h4ks-com/fieldops/internal/middleware"
	"github.com/h4ks-com/fieldops/internal/services"
	"github.com/shopspring/decimal"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

type IndicatorErrorResponse struct {
	Error        string                  `json:"error"`
	Kind         string                  `json:"kind"`
	ActivityType string                  `json:"activity_type"`
	Fields       []indicators.FieldError `json:"fields"`
}

type LowStockResponse struct {
	Error     string          `json:"error"`
	Kind      string          `json:"kind"`
	ItemID    uint            `json:"item_id"`
	ItemCode  string          `json:"item_code"`
	Requested decimal.Decimal `json:"requested"`
	Available decimal.Decimal `json:"available"`
	Shortfall decimal.Decimal `json:"shortfall"`
}

type MassBalanceResponse struct {
	Error       string          `json:"error"`
	Kind        string          `json:"kind"`
	HarvestedKg decimal.Decimal `json:"harvested_kg"`
	ExportKg    decimal.Decimal `json:"export_kg"`
	DomesticKg  decimal.Decimal `json:"domestic_kg"`
	RejectedKg  decimal.Decimal `json:"rejected_kg"`
	ExcessKg    decimal.Decimal `json:"excess_kg"`
}

// respondError writes the status and body for a service error.
func respondError(c *gin.Context, err error) {
	kind := services.ErrorKind(err)

	var (
		indicator *services.IndicatorValidationError
		lowStock  *services.LowStockError
		mass      *services.MassBalanceError
	)
	switch {
	case errors.As(err, &indicator):
		c.JSON(http.StatusUnprocessableEntity, IndicatorErrorResponse{
			Error:        err.Error(),
			Kind:         kind,
			ActivityType: indicator.ActivityType,
			Fields:       indicator.Fields,
		})
	case errors.As(err, &lowStock):
		c.JSON(http.StatusConflict, LowStockResponse{
			Error:     err.Error(),
			Kind:      kind,
			ItemID:    lowStock.ItemID,
			ItemCode:  lowStock.ItemCode,
			Requested: lowStock.Requested,
			Available: lowStock.Available,
			Shortfall: lowStock.Shortfall,
		})
	case errors.As(err, &mass):
		c.JSON(http.StatusUnprocessableEntity, MassBalanceResponse{
			Error:       err.Error(),
			Kind:        kind,
			HarvestedKg: mass.HarvestedKg,
			ExportKg:    mass.ExportKg,
			DomesticKg:  mass.DomesticKg,
			RejectedKg:  mass.RejectedKg,
			ExcessKg:    mass.Excess(),
		})
	default:
		status := statusFor(kind)
		if status == http.StatusInternalServerError {
			slog.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
			c.JSON(status, ErrorResponse{Error: "internal error", Kind: kind})
			return
		}
		c.JSON(status, ErrorResponse{Error: err.Error(), Kind: kind})
	}
}

func statusFor(kind string) int {
	switch kind {
	case "validation":
		return http.StatusBadRequest
	case "not_found":
		return http.StatusNotFound
	case "forbidden":
		return http.StatusForbidden
	case "invalid_transition", "conflict":
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request: " + err.Error(), Kind: "validation"})
}

func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + name, Kind: "validation"})
		return 0, false
	}
	return uint(id), true
}

func mustActor(c *gin.Context) (services.Actor, bool) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
	}
	return actor, ok
}
