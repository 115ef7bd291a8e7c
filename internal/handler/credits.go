package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	mw "github.com/iliyamo/trainer-booking/internal/middleware"
	"github.com/iliyamo/trainer-booking/internal/model"
	"github.com/iliyamo/trainer-booking/internal/service"
)

// CreditHandler exposes client balances and package assignment.
type CreditHandler struct {
	Ledger  *service.Ledger
	Clients service.ClientStore
	Log     *zap.Logger
}

func NewCreditHandler(l *service.Ledger, clients service.ClientStore, log *zap.Logger) *CreditHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &CreditHandler{Ledger: l, Clients: clients, Log: log}
}

type assignPackageReq struct {
	PackageID     string     `json:"package_id"`
	SessionsTotal int        `json:"sessions_total"`
	ExpiresAt     *time.Time `json:"expires_at"`
}

// client loads the :id client inside the caller's studio.
func (h *CreditHandler) client(ctx context.Context, c echo.Context) (*model.Client, error) {
	cl, err := h.Clients.Get(ctx, mw.StudioID(c), c.Param("id"))
	if err != nil {
		return nil, service.ClientNotFound(err, c.Param("id"))
	}
	return cl, nil
}

// Credits: GET /v1/clients/:id/credits
func (h *CreditHandler) Credits(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	cl, err := h.client(ctx, c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	balance, err := h.Ledger.Balance(ctx, cl.ID)
	if err != nil {
		return fail(c, h.Log, err)
	}
	pkgs, err := h.Ledger.Packages(ctx, cl.ID)
	if err != nil {
		return fail(c, h.Log, err)
	}
	if pkgs == nil {
		pkgs = []model.ClientPackage{}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"client_id": cl.ID,
		"balance":   balance,
		"packages":  pkgs,
	})
}

// AssignPackage: POST /v1/clients/:id/packages
func (h *CreditHandler) AssignPackage(c echo.Context) error {
	var req assignPackageReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	cl, err := h.client(ctx, c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	p, err := h.Ledger.AssignPackage(ctx, cl.ID, strings.TrimSpace(req.PackageID), req.SessionsTotal, req.ExpiresAt)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, p)
}
