package main

import (
	"crypto/subtle"
	"net/http"

	"github.com/bluesky-social/kyupikon/bot/policystore"
	"github.com/bluesky-social/kyupikon/bot/queuestore"

	"github.com/carlmjohnson/versioninfo"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	slogecho "github.com/samber/slog-echo"
)

type GenericStatus struct {
	Daemon  string `json:"daemon"`
	Status  string `json:"status"`
	Message string `json:"msg,omitempty"`
}

type resetOutput struct {
	Field string `json:"field"`
	Reset int    `json:"reset"`
}

type queueOutput struct {
	Name    string   `json:"name"`
	Entries []string `json:"entries"`
}

// registers collectors on creation, so only built once per process
var adminMetrics = echoprometheus.NewMiddleware("kyupikon")

func (srv *Server) newAdminAPI(adminPassword string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(slogecho.New(srv.logger))
	e.Use(middleware.Recover())
	e.Use(adminMetrics)
	e.Use(middleware.BodyLimit("64K"))

	e.GET("/_health", srv.HandleHealthCheck)

	admin := e.Group("/admin", middleware.BasicAuth(func(username, password string, c echo.Context) (bool, error) {
		return subtle.ConstantTimeCompare([]byte(username), []byte("admin")) == 1 &&
			subtle.ConstantTimeCompare([]byte(password), []byte(adminPassword)) == 1, nil
	}))
	admin.POST("/reset-counters", srv.HandleResetCounters)
	admin.GET("/queues/:name", srv.HandleQueueShow)
	admin.DELETE("/queues/:name", srv.HandleQueueClear)
	admin.GET("/policy/:user", srv.HandlePolicyGet)
	return e
}

func (srv *Server) HandleHealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, GenericStatus{Status: "ok", Daemon: "kyupikon", Message: versioninfo.Short()})
}

// Clears every user's fallback reply counter.
func (srv *Server) HandleResetCounters(c echo.Context) error {
	n, err := srv.stores.Policies.ResetField(c.Request().Context(), policystore.FieldReplyCount)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	adminCounterResets.Inc()
	srv.logger.Info("reset reply counters", "records", n)
	return c.JSON(http.StatusOK, resetOutput{Field: string(policystore.FieldReplyCount), Reset: n})
}

func queueName(c echo.Context) (string, error) {
	name := c.Param("name")
	switch name {
	case queuestore.QueueReply, queuestore.QueuePost:
		return name, nil
	}
	return "", echo.NewHTTPError(http.StatusBadRequest, "unknown queue name")
}

func (srv *Server) HandleQueueShow(c echo.Context) error {
	name, err := queueName(c)
	if err != nil {
		return err
	}
	entries, err := srv.stores.Queues.List(c.Request().Context(), name)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if entries == nil {
		entries = []string{}
	}
	return c.JSON(http.StatusOK, queueOutput{Name: name, Entries: entries})
}

func (srv *Server) HandleQueueClear(c echo.Context) error {
	name, err := queueName(c)
	if err != nil {
		return err
	}
	if err := srv.stores.Queues.Clear(c.Request().Context(), name); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	srv.logger.Info("cleared content queue", "queue", name)
	return c.NoContent(http.StatusNoContent)
}

func (srv *Server) HandlePolicyGet(c echo.Context) error {
	p, err := policystore.Load(c.Request().Context(), srv.stores.Policies, c.Param("user"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}
