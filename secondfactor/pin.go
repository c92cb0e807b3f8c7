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

	"github.com/netbankhq/authflow/model"
)

// SubmitFunc receives a completed secret exactly once per fill. The
// channel wipes its own copy before the callback returns control to the
// caller, so the secret is never retained across attempts.
type SubmitFunc func(secret string)

// PinChannel captures a 4-digit card PIN. When the last cell fills it
// invokes the submit contract automatically; no explicit submit action is
// exposed. While the surrounding flow is authorizing, the cells are
// disabled.
type PinChannel struct {
	mu     sync.Mutex
	cells  *DigitCells
	submit SubmitFunc
	closed bool
}

func NewPinChannel(submit SubmitFunc) *PinChannel {
	return &PinChannel{
		cells:  NewDigitCells(model.PinLength),
		submit: submit,
	}
}

// Cells exposes the focus controller for rendering.
func (p *PinChannel) Cells() *DigitCells { return p.cells }

// Type enters one character, auto-submitting when the row completes.
func (p *PinChannel) Type(ch byte) {
	p.cells.Type(ch)
	p.maybeSubmit()
}

// Paste assigns the digit characters of the payload across the cells,
// auto-submitting only when all cells hold digits.
func (p *PinChannel) Paste(payload string) {
	p.cells.Paste(payload)
	p.maybeSubmit()
}

func (p *PinChannel) Backspace() {
	p.cells.Backspace()
}

func (p *PinChannel) maybeSubmit() {
	p.mu.Lock()
	if p.closed || !p.cells.Complete() {
		p.mu.Unlock()
		return
	}
	secret := p.cells.Value()
	// Discard the captured digits immediately; the mask state is owned by
	// the renderer, the secret is not kept past this point.
	p.cells.Clear()
	p.cells.SetDisabled(true)
	submit := p.submit
	p.mu.Unlock()

	if submit != nil {
		submit(secret)
	}
}

// Reset re-arms the channel after a retryable outcome: cells cleared,
// focus on the first cell, input enabled.
func (p *PinChannel) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.cells.Clear()
	p.cells.SetDisabled(false)
}

// Close tears the channel down; further input and submits are ignored.
func (p *PinChannel) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.cells.Clear()
	p.cells.SetDisabled(true)
}

// Closed reports whether the channel has been torn down.
func (p *PinChannel) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
