package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/types"
)

type checkInRequest struct {
	AccessRequestID string `json:"access_request_id"`
	CheckinMethod   string `json:"checkin_method"`
	Notes           string `json:"notes"`
}

type checkOutRequest struct {
	AccessRequestID string `json:"access_request_id"`
}

type visitResponse struct {
	AccessRequest types.AccessRequest `json:"access_request"`
	Visit         types.Visit         `json:"visit"`
}

func (s *Server) handleCheckIn(c *gin.Context) {
	var req checkInRequest
	if !bind(c, &req) {
		return
	}
	if req.AccessRequestID == "" {
		s.fail(c, types.Invalid("access_request_id", "is required"))
		return
	}
	rec, v, err := s.engine.CheckIn(c.Request.Context(), actorFrom(c), req.AccessRequestID, req.CheckinMethod, req.Notes)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, visitResponse{AccessRequest: rec, Visit: v})
}

func (s *Server) handleCheckOut(c *gin.Context) {
	var req checkOutRequest
	if !bind(c, &req) {
		return
	}
	if req.AccessRequestID == "" {
		s.fail(c, types.Invalid("access_request_id", "is required"))
		return
	}
	rec, v, err := s.engine.CheckOut(c.Request.Context(), actorFrom(c), req.AccessRequestID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, visitResponse{AccessRequest: rec, Visit: v})
}

func (s *Server) handleGetVisit(c *gin.Context) {
	v, err := s.engine.Visit(c.Request.Context(), actorFrom(c), c.Param("request_id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}
