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

package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/netbankhq/authflow"
	model2 "github.com/netbankhq/authflow/api/model"
)

// StartSession opens a session for an authenticated customer and primes
// the account projection.
func (a Api) StartSession(c *gin.Context) {
	var req model2.StartSession
	if err := c.BindJSON(&req); err != nil {
		return
	}
	if err := req.ValidateStartSession(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := a.engine.CreateSession(c.Request.Context(), req.CustomerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"session_id":  session.ID(),
		"customer_id": session.CustomerID(),
	})
}

func (a Api) CloseSession(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}
	if err := a.engine.CloseSession(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "closed"})
}

// GetAccounts serves the session's account projection. Passing ?refresh=true
// pulls fresh balances from the banking core first.
func (a Api) GetAccounts(c *gin.Context) {
	session, ok := a.session(c)
	if !ok {
		return
	}

	if c.Query("refresh") == "true" {
		accounts, err := a.engine.RefreshAccounts(c.Request.Context(), session.ID(), session.CustomerID())
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"accounts": accounts})
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": a.engine.CachedAccounts(c.Request.Context(), session.ID())})
}

func (a Api) GetAlerts(c *gin.Context) {
	session, ok := a.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": session.Alerts().Active()})
}

func (a Api) DismissAlert(c *gin.Context) {
	session, ok := a.session(c)
	if !ok {
		return
	}
	alertID, err := strconv.ParseInt(c.Param("alert_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "alert_id must be an integer"})
		return
	}
	session.Alerts().Dismiss(alertID)
	c.JSON(http.StatusOK, gin.H{"status": "dismissed"})
}

// session resolves the :id route param to a live session, writing the
// error response itself on failure.
func (a Api) session(c *gin.Context) (*authflow.Session, bool) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return nil, false
	}
	session, err := a.engine.GetSession(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil, false
	}
	return session, true
}
