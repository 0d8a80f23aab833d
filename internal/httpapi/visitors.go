package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/service"
	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/types"
)

type createVisitorRequest struct {
	VisitorName    string `json:"visitor_name"`
	Phone          string `json:"phone"`
	IDType         string `json:"id_type"`
	IDNumber       string `json:"id_number"`
	VehicleNo      string `json:"vehicle_no"`
	Purpose        string `json:"purpose"`
	NumberOfPeople int    `json:"number_of_people"`
	FlatID         string `json:"flat_id"`
	IdempotencyKey string `json:"idempotency_key"`
}

type createPassRequest struct {
	VisitorName    string     `json:"visitor_name"`
	Phone          string     `json:"phone"`
	Purpose        string     `json:"purpose"`
	NumberOfPeople int        `json:"number_of_people"`
	FlatID         string     `json:"flat_id"`
	QRCode         string     `json:"qr_code"`
	ExpectedStart  *time.Time `json:"expected_start"`
	ExpectedEnd    *time.Time `json:"expected_end"`
	IdempotencyKey string     `json:"idempotency_key"`
}

type decisionRequest struct {
	Decision string `json:"decision"`
	Note     string `json:"note"`
}

type redeemRequest struct {
	Code string `json:"code"`
}

type requestResponse struct {
	AccessRequest types.AccessRequest `json:"access_request"`
	Created       bool                `json:"created"`
}

// idempotencyKey prefers the Idempotency-Key header over the body field.
func idempotencyKey(c *gin.Context, body string) string {
	if h := strings.TrimSpace(c.GetHeader("Idempotency-Key")); h != "" {
		return h
	}
	return body
}

func createdStatus(created bool) int {
	if created {
		return http.StatusCreated
	}
	return http.StatusOK
}

func (s *Server) handleCreateVisitor(c *gin.Context) {
	var req createVisitorRequest
	if !bind(c, &req) {
		return
	}
	rec, created, err := s.engine.CreateRequest(c.Request.Context(), actorFrom(c), service.NewRequest{
		VisitorName:    req.VisitorName,
		Phone:          req.Phone,
		IDType:         req.IDType,
		IDNumber:       req.IDNumber,
		VehicleNo:      req.VehicleNo,
		Purpose:        req.Purpose,
		NumberOfPeople: req.NumberOfPeople,
		FlatID:         req.FlatID,
		IdempotencyKey: idempotencyKey(c, req.IdempotencyKey),
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(createdStatus(created), requestResponse{AccessRequest: rec, Created: created})
}

func (s *Server) handleCreatePass(c *gin.Context) {
	var req createPassRequest
	if !bind(c, &req) {
		return
	}
	rec, created, err := s.engine.CreatePass(c.Request.Context(), actorFrom(c), service.NewPass{
		VisitorName:    req.VisitorName,
		Phone:          req.Phone,
		Purpose:        req.Purpose,
		NumberOfPeople: req.NumberOfPeople,
		FlatID:         req.FlatID,
		QRCode:         req.QRCode,
		ExpectedStart:  req.ExpectedStart,
		ExpectedEnd:    req.ExpectedEnd,
		IdempotencyKey: idempotencyKey(c, req.IdempotencyKey),
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(createdStatus(created), requestResponse{AccessRequest: rec, Created: created})
}

func (s *Server) handleGetVisitor(c *gin.Context) {
	rec, err := s.engine.Get(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleHistory(c *gin.Context) {
	ds, err := s.engine.History(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"decisions": nonNil(ds)})
}

func (s *Server) handleRespond(c *gin.Context) {
	s.decide(c, s.engine.Decide)
}

func (s *Server) handleGuardRespond(c *gin.Context) {
	s.decide(c, s.engine.Override)
}

type decideFn func(ctx context.Context, actor types.Actor, id string, d types.Decision, note string) (types.AccessRequest, error)

func (s *Server) decide(c *gin.Context, fn decideFn) {
	var req decisionRequest
	if !bind(c, &req) {
		return
	}
	d, ok := types.ParseDecision(strings.ToLower(strings.TrimSpace(req.Decision)))
	if !ok {
		c.JSON(http.StatusBadRequest, errorBody{Error: "validation_error", Message: `decision must be "accept" or "deny"`, Field: "decision"})
		return
	}
	rec, err := fn(c.Request.Context(), actorFrom(c), c.Param("id"), d, req.Note)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleRedeem(c *gin.Context) {
	var req redeemRequest
	if !bind(c, &req) {
		return
	}
	rec, err := s.engine.Redeem(c.Request.Context(), actorFrom(c), req.Code)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleLookup(c *gin.Context) {
	rec, err := s.engine.LookupByCode(c.Request.Context(), actorFrom(c), c.Query("code"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handlePending(c *gin.Context) {
	rs, err := s.engine.PendingForFlat(c.Request.Context(), actorFrom(c), c.Query("flat_id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": nonNil(rs)})
}

func (s *Server) handlePendingCount(c *gin.Context) {
	flat := c.Query("flat_id")
	n, err := s.engine.PendingCount(c.Request.Context(), actorFrom(c), flat)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flat_id": flat, "count": n})
}

func (s *Server) handlePurgeDenied(c *gin.Context) {
	n, err := s.engine.PurgeDenied(c.Request.Context(), actorFrom(c), c.Query("society_id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

func (s *Server) handleExpected(c *gin.Context) {
	rs, err := s.engine.Expected(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"visitors": nonNil(rs)})
}

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil[T any](xs []T) []T {
	if xs == nil {
		return []T{}
	}
	return xs
}
