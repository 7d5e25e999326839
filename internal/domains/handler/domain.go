package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/customdomains/internal/domains/service"
	"github.com/jmerrifield20/customdomains/internal/identity"
	"go.uber.org/zap"
)

// StatusClientClosedRequest is written when the caller goes away before the
// pipeline finishes.
const StatusClientClosedRequest = 499

const mockModeMessage = "Mock Mode"

// DomainHandler handles HTTP requests for custom domains.
type DomainHandler struct {
	svc           *service.DomainService
	owners        identity.OwnerResolver
	limiter       gin.HandlerFunc
	exposeDetails bool
	logger        *zap.Logger
}

// NewDomainHandler creates a new DomainHandler.
func NewDomainHandler(svc *service.DomainService, owners identity.OwnerResolver, logger *zap.Logger) *DomainHandler {
	return &DomainHandler{svc: svc, owners: owners, logger: logger}
}

// SetExposeErrorDetails adds the underlying error text to 500 responses.
// Leave it off in production.
func (h *DomainHandler) SetExposeErrorDetails(on bool) {
	h.exposeDetails = on
}

// SetAddLimiter installs a rate limiter in front of POST /domains only.
func (h *DomainHandler) SetAddLimiter(mw gin.HandlerFunc) {
	h.limiter = mw
}

// Register mounts the custom domain routes on the given router group.
func (h *DomainHandler) Register(rg *gin.RouterGroup) {
	domains := rg.Group("/domains", identity.RequireOwner(h.owners))
	{
		add := []gin.HandlerFunc{h.AddDomain}
		if h.limiter != nil {
			add = append([]gin.HandlerFunc{h.limiter}, add...)
		}
		domains.POST("", add...)
		domains.GET("", h.ListDomains)
		domains.GET("/:domain", h.GetDomain)
	}
}

// AddDomain handles POST /domains.
//
// Request body: {"domain": "shop.example.com"}
//
// Response: the stored record plus the token the owner must publish. Provider
// failures are reported in "warning" and never fail the request.
func (h *DomainHandler) AddDomain(c *gin.Context) {
	var req struct {
		Domain string `json:"domain"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Domain == "" {
		c.String(http.StatusBadRequest, "Missing domain")
		return
	}

	ownerID := identity.OwnerFromCtx(c)
	res, err := h.svc.AddDomain(c.Request.Context(), ownerID, req.Domain)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingDomain):
			c.String(http.StatusBadRequest, "Missing domain")
		case errors.Is(err, service.ErrInvalidDomain):
			c.String(http.StatusBadRequest, "Invalid domain")
		case errors.Is(err, service.ErrDomainAlreadyClaimed):
			RecordReconcile("claimed")
			c.JSON(http.StatusBadRequest, gin.H{"error": "Domain already registered"})
		case errors.Is(err, context.Canceled):
			RecordReconcile("cancelled")
			h.logger.Info("add domain cancelled by client", zap.String("domain", req.Domain))
			c.AbortWithStatus(StatusClientClosedRequest)
		default:
			RecordReconcile("failed")
			h.logger.Error("add domain",
				zap.String("domain", req.Domain),
				zap.String("owner_id", ownerID),
				zap.Error(err),
			)
			h.internalError(c, "Failed to add domain", err)
		}
		return
	}

	RecordReconcile(res.Outcome.String())

	switch res.Outcome {
	case service.OutcomeMock:
		c.JSON(http.StatusOK, gin.H{
			"success":            true,
			"verification_token": res.Verification.Token,
			"message":            mockModeMessage,
			"data":               res.Record,
		})
	case service.OutcomeSkipped:
		c.JSON(http.StatusOK, gin.H{
			"success":           true,
			"warning":           res.Warning,
			"skipped_db_update": true,
		})
	default:
		body := gin.H{
			"success":            true,
			"data":               res.Record,
			"verification_token": res.Verification.Token,
		}
		if res.Warning != "" {
			body["warning"] = res.Warning
		}
		c.JSON(http.StatusOK, body)
	}
}

// ListDomains handles GET /domains: the caller's domains, newest first.
func (h *DomainHandler) ListDomains(c *gin.Context) {
	recs, err := h.svc.ListDomains(c.Request.Context(), identity.OwnerFromCtx(c))
	if err != nil {
		h.logger.Error("list domains", zap.Error(err))
		h.internalError(c, "Failed to list domains", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": recs})
}

// GetDomain handles GET /domains/:domain.
func (h *DomainHandler) GetDomain(c *gin.Context) {
	rec, err := h.svc.GetDomain(c.Request.Context(), identity.OwnerFromCtx(c), c.Param("domain"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingDomain), errors.Is(err, service.ErrInvalidDomain):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid domain"})
		case errors.Is(err, service.ErrDomainNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Domain not found"})
		default:
			h.logger.Error("get domain", zap.String("domain", c.Param("domain")), zap.Error(err))
			h.internalError(c, "Failed to get domain", err)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": rec})
}

func (h *DomainHandler) internalError(c *gin.Context, msg string, err error) {
	body := gin.H{"error": msg}
	if h.exposeDetails {
		body["details"] = err.Error()
	}
	c.JSON(http.StatusInternalServerError, body)
}
