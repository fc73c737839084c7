package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/apex/log"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// StatusServer exposes the controller state over HTTP while a session runs.
type StatusServer struct {
	e          *echo.Echo
	controller *Controller
}

func NewStatusServer(controller *Controller) *StatusServer {
	s := &StatusServer{
		e:          echo.New(),
		controller: controller,
	}
	s.e.HideBanner = true
	s.e.HidePort = true

	s.e.Use(middleware.Logger())
	s.e.Use(middleware.Recover())

	v1 := s.e.Group("/api/v1")
	v1.GET("/status", s.GetStatus)
	v1.GET("/status/:key", s.GetLanguageStatus)
	return s
}

// Handler is used by tests to serve without a listener.
func (s *StatusServer) Handler() http.Handler {
	return s.e
}

// Start serves on addr until Shutdown is called.
func (s *StatusServer) Start(addr string) {
	go func() {
		log.Infof("status server listening on %s", addr)
		if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("status server stopped")
		}
	}()
}

func (s *StatusServer) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

func (s *StatusServer) GetStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.controller.Snapshot())
}

func (s *StatusServer) GetLanguageStatus(c echo.Context) error {
	key := c.Param("key")
	b, ok := s.controller.Bar(key)
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": fmt.Sprintf("no progress for %q", key)})
	}
	return c.JSON(http.StatusOK, b)
}
