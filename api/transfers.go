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
	"github.com/netbankhq/authflow/secondfactor"
)

// StartTransfer begins a fresh transfer flow for the session.
func (a Api) StartTransfer(c *gin.Context) {
	session, ok := a.session(c)
	if !ok {
		return
	}
	flow, err := session.StartTransfer()
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, transferView(flow))
}

// GetTransfer renders the current flow state.
func (a Api) GetTransfer(c *gin.Context) {
	flow, ok := a.transfer(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, transferView(flow))
}

// SubmitTransfer validates the transfer form. Validation failures come
// back as 422 with per-field errors; the flow stays in Drafting.
func (a Api) SubmitTransfer(c *gin.Context) {
	flow, ok := a.transfer(c)
	if !ok {
		return
	}
	var req model2.SubmitTransfer
	if err := c.BindJSON(&req); err != nil {
		return
	}

	err := flow.Submit(c.Request.Context(), req.ToTransferForm())
	switch {
	case err == nil:
		c.JSON(http.StatusOK, transferView(flow))
	case err == authflow.ErrLocalValidation:
		c.JSON(http.StatusUnprocessableEntity, transferView(flow))
	case err == authflow.ErrInvalidTransition:
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// OpenSecondFactor opens the PIN capture channel and describes the
// challenge shape to the client.
func (a Api) OpenSecondFactor(c *gin.Context) {
	flow, ok := a.transfer(c)
	if !ok {
		return
	}
	if _, err := flow.OpenSecondFactor(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"challenge": model.PinChallenge(),
		"flow":      transferView(flow),
	})
}

// TransferKeyInput feeds one key action into the PIN channel. The fourth
// digit triggers authorization inline, so the returned view already
// reflects the outcome.
func (a Api) TransferKeyInput(c *gin.Context) {
	flow, ok := a.transfer(c)
	if !ok {
		return
	}
	pin := flow.PinChannel()
	if pin == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "second factor is not open"})
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
		pin.Type(req.Char[0])
	case model2.KeyActionBackspace:
		pin.Backspace()
	case model2.KeyActionPaste:
		pin.Paste(req.Payload)
	}
	c.JSON(http.StatusOK, transferView(flow))
}

func (a Api) CancelTransfer(c *gin.Context) {
	flow, ok := a.transfer(c)
	if !ok {
		return
	}
	if err := flow.Cancel(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, transferView(flow))
}

func (a Api) transfer(c *gin.Context) (*authflow.TransferFlow, bool) {
	session, ok := a.session(c)
	if !ok {
		return nil, false
	}
	flow := session.Transfer()
	if flow == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no transfer flow in progress"})
		return nil, false
	}
	return flow, true
}

// transferView renders the flow for the client. Captured digits never
// appear here; cells are reduced to a filled mask.
func transferView(flow *authflow.TransferFlow) gin.H {
	view := gin.H{"state": flow.State()}
	if fieldErrors := flow.FieldErrors(); len(fieldErrors) > 0 {
		view["field_errors"] = fieldErrors
	}
	if attempts := flow.AttemptsLeft(); attempts >= 0 {
		view["attempts_left"] = attempts
	}
	if receipt := flow.Receipt(); receipt != nil {
		view["receipt"] = receipt
	}
	if pin := flow.PinChannel(); pin != nil && !pin.Closed() {
		view["cells"] = cellsView(pin.Cells())
	}
	return view
}

func cellsView(cells *secondfactor.DigitCells) gin.H {
	return gin.H{
		"filled":   cells.Filled(),
		"focused":  cells.Focused(),
		"disabled": cells.Disabled(),
	}
}
