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

	"github.com/gin-gonic/gin"
	"github.com/netbankhq/authflow"
	model2 "github.com/netbankhq/authflow/api/model"
	"github.com/netbankhq/authflow/model"
)

// OpenVerification starts identity verification for an onboarding
// application. Opening twice while the flow is live returns the same
// flow.
func (a Api) OpenVerification(c *gin.Context) {
	var req model2.OpenVerification
	if err := c.BindJSON(&req); err != nil {
		return
	}
	if err := req.ValidateOpenVerification(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	flow, err := a.engine.OpenVerification(req.ApplicationID)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"challenge": model.OtpChallenge(),
		"flow":      verificationView(flow),
	})
}

func (a Api) GetVerification(c *gin.Context) {
	flow, ok := a.verification(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, verificationView(flow))
}

// VerificationKeyInput feeds one key action into the OTP channel. The
// sixth digit triggers verification inline.
func (a Api) VerificationKeyInput(c *gin.Context) {
	flow, ok := a.verification(c)
	if !ok {
		return
	}
	otp := flow.OtpChannel()
	if otp == nil || otp.Closed() {
		c.JSON(http.StatusConflict, gin.H{"error": "verification channel is closed"})
		return
	}
	var req model2.KeyInput
	if err := c.BindJSON(&req); err != nil {
		return
	}
	if err := req.ValidateKeyInput(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch req.Action {
	case model2.KeyActionType:
		otp.Type(req.Char[0])
	case model2.KeyActionBackspace:
		otp.Backspace()
	case model2.KeyActionPaste:
		otp.Paste(req.Payload)
	}
	c.JSON(http.StatusOK, verificationView(flow))
}

// ResendVerificationCode requests a fresh code. Before the cooldown
// elapses the request is rejected locally with 429.
func (a Api) ResendVerificationCode(c *gin.Context) {
	flow, ok := a.verification(c)
	if !ok {
		return
	}
	err := flow.Resend(c.Request.Context())
	switch {
	case err == nil:
		c.JSON(http.StatusOK, verificationView(flow))
	case err == authflow.ErrCooldownActive:
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":              err.Error(),
			"cooldown_remaining": flow.OtpChannel().CooldownRemaining(),
		})
	case err == authflow.ErrInvalidTransition:
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (a Api) CancelVerification(c *gin.Context) {
	flow, ok := a.verification(c)
	if !ok {
		return
	}
	if err := flow.Cancel(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, verificationView(flow))
}

func (a Api) verification(c *gin.Context) (*authflow.VerificationFlow, bool) {
	id, passed := c.Params.Get("application_id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "application_id is required. pass id in the route /:application_id"})
		return nil, false
	}
	flow, err := a.engine.GetVerification(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil, false
	}
	return flow, true
}

func verificationView(flow *authflow.VerificationFlow) gin.H {
	view := gin.H{"state": flow.State()}
	if otp := flow.OtpChannel(); otp != nil && !otp.Closed() {
		view["cells"] = cellsView(otp.Cells())
		view["cooldown_remaining"] = otp.CooldownRemaining()
		view["can_resend"] = otp.CanResend()
	}
	view["alerts"] = flow.Alerts().Active()
	return view
}
