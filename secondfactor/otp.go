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

package secondfactor

import (
	"sync"
	"time"

	"github.com/netbankhq/authflow/model"
)

// OtpChannel captures a 6-digit one-time code and manages the resend
// cooldown. The countdown starts at 60 seconds when the channel opens,
// decrements once per second while it is open, and resets to 60 on a
// successful resend. The ticker is owned by the channel and stopped on
// Close; a closed channel can never mutate state again.
type OtpChannel struct {
	mu       sync.Mutex
	cells    *DigitCells
	submit   SubmitFunc
	cooldown int
	ticker   *time.Ticker
	done     chan struct{}
	closed   bool
}

func NewOtpChannel(submit SubmitFunc) *OtpChannel {
	c := &OtpChannel{
		cells:    NewDigitCells(model.OtpLength),
		submit:   submit,
		cooldown: model.ResendCooldownSeconds,
		ticker:   time.NewTicker(time.Second),
		done:     make(chan struct{}),
	}
	go c.countdown()
	return c
}

func (c *OtpChannel) countdown() {
	for {
		select {
		case <-c.done:
			return
		case <-c.ticker.C:
			c.mu.Lock()
			if c.cooldown > 0 {
				c.cooldown--
			}
			c.mu.Unlock()
		}
	}
}

// Cells exposes the focus controller for rendering.
func (c *OtpChannel) Cells() *DigitCells { return c.cells }

// Type enters one character, auto-submitting when all six cells fill.
func (c *OtpChannel) Type(ch byte) {
	c.cells.Type(ch)
	c.maybeSubmit()
}

func (c *OtpChannel) Paste(payload string) {
	c.cells.Paste(payload)
	c.maybeSubmit()
}

func (c *OtpChannel) Backspace() {
	c.cells.Backspace()
}

func (c *OtpChannel) maybeSubmit() {
	c.mu.Lock()
	if c.closed || !c.cells.Complete() {
		c.mu.Unlock()
		return
	}
	code := c.cells.Value()
	// Cells stay filled so a transport failure can resubmit without
	// retyping; a wrong-code outcome clears them via Reset.
	c.cells.SetDisabled(true)
	submit := c.submit
	c.mu.Unlock()

	if submit != nil {
		submit(code)
	}
}

// Resubmit re-fires the submit contract with the currently captured code
// after a transport failure. It is a no-op unless the row is complete.
func (c *OtpChannel) Resubmit() {
	c.mu.Lock()
	if c.closed || !c.cells.Complete() {
		c.mu.Unlock()
		return
	}
	code := c.cells.Value()
	c.cells.SetDisabled(true)
	submit := c.submit
	c.mu.Unlock()

	if submit != nil {
		submit(code)
	}
}

// PreserveForRetry re-enables input after a transport failure, keeping the
// captured cells intact.
func (c *OtpChannel) PreserveForRetry() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.cells.SetDisabled(false)
}

// Reset clears the cells and refocuses the first one after a wrong-code
// outcome.
func (c *OtpChannel) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.cells.Clear()
	c.cells.SetDisabled(false)
}

// CooldownRemaining returns the seconds left before a resend is permitted.
func (c *OtpChannel) CooldownRemaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cooldown
}

// CanResend reports whether the cooldown has elapsed.
func (c *OtpChannel) CanResend() bool {
	return c.CooldownRemaining() == 0
}

// MarkResent resets the cooldown to its full length and clears the cells.
// Callers invoke it only after the resend request succeeded.
func (c *OtpChannel) MarkResent() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.cooldown = model.ResendCooldownSeconds
	c.cells.Clear()
	c.cells.SetDisabled(false)
}

// Close stops the countdown ticker and tears the channel down.
func (c *OtpChannel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.ticker.Stop()
	close(c.done)
	c.cells.Clear()
	c.cells.SetDisabled(true)
}

// Closed reports whether the channel has been torn down.
func (c *OtpChannel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
