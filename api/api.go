/*
Copyright 2024 Authflow Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package api exposes the flow engine over HTTP for the web client. The
// surface is a thin translation layer: it binds DTOs, forwards to the
// engine and renders flow state. Secrets pass through capture endpoints
// and are never echoed back.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/netbankhq/authflow"
	"github.com/netbankhq/authflow/api/middleware"
	"github.com/netbankhq/authflow/config"
)

type Api struct {
	engine *authflow.Authflow
	router *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.POST("/sessions", a.StartSession)
	router.DELETE("/sessions/:id", a.CloseSession)
	router.GET("/sessions/:id/accounts", a.GetAccounts)
	router.GET("/sessions/:id/alerts", a.GetAlerts)
	router.DELETE("/sessions/:id/alerts/:alert_id", a.DismissAlert)

	router.POST("/sessions/:id/transfers", a.StartTransfer)
	router.GET("/sessions/:id/transfers", a.GetTransfer)
	router.POST("/sessions/:id/transfers/submit", a.SubmitTransfer)
	router.POST("/sessions/:id/transfers/second-factor", a.OpenSecondFactor)
	router.POST("/sessions/:id/transfers/second-factor/keys", a.TransferKeyInput)
	router.POST("/sessions/:id/transfers/cancel", a.CancelTransfer)

	router.POST("/verifications", a.OpenVerification)
	router.GET("/verifications/:application_id", a.GetVerification)
	router.POST("/verifications/:application_id/keys", a.VerificationKeyInput)
	router.POST("/verifications/:application_id/resend", a.ResendVerificationCode)
	router.POST("/verifications/:application_id/cancel", a.CancelVerification)
	return a.router
}

func NewAPI(engine *authflow.Authflow) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, "server running...")
	})

	return &Api{engine: engine, router: r}
}
