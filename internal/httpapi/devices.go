package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type deviceRequest struct {
	Token      string `json:"token"`
	DeviceType string `json:"device_type"`
}

func (s *Server) handleRegisterDevice(c *gin.Context) {
	var req deviceRequest
	if !bind(c, &req) {
		return
	}
	t, err := s.devices.Register(c.Request.Context(), actorFrom(c), req.Token, req.DeviceType)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) handleUnregisterDevice(c *gin.Context) {
	var req deviceRequest
	if !bind(c, &req) {
		return
	}
	if err := s.devices.Unregister(c.Request.Context(), actorFrom(c), req.Token); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleListDevices(c *gin.Context) {
	ts, err := s.devices.List(c.Request.Context(), actorFrom(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"devices": nonNil(ts)})
}

func (s *Server) handleNotifications(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	logs, err := s.devices.Notifications(c.Request.Context(), actorFrom(c), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": nonNil(logs)})
}
