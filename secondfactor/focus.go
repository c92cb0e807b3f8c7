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

// Package secondfactor implements the capture channels for the PIN and OTP
// challenges that gate sensitive operations. Capture state is modeled as a
// row of single-digit cells behind a FocusController, decoupled from any
// rendering technology.
package secondfactor

import (
	"strings"
	"sync"
)

// FocusController abstracts a sequence of single-character input cells.
type FocusController interface {
	// Focus moves the cursor to the cell at index, clamped to the row.
	Focus(index int)
	// Clear empties every cell and returns focus to the first one.
	Clear()
	// SetAll assigns up to len(cells) leading digits across the row and
	// focuses the last filled cell.
	SetAll(digits string)
}

// DigitCells is the in-memory FocusController used by the capture
// channels. It accepts digits only.
type DigitCells struct {
	mu       sync.Mutex
	cells    []byte
	focused  int
	disabled bool
}

func NewDigitCells(size int) *DigitCells {
	return &DigitCells{cells: make([]byte, size)}
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func (d *DigitCells) Focus(index int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if index < 0 {
		index = 0
	}
	if index >= len(d.cells) {
		index = len(d.cells) - 1
	}
	d.focused = index
}

func (d *DigitCells) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clearLocked()
}

func (d *DigitCells) clearLocked() {
	for i := range d.cells {
		d.cells[i] = 0
	}
	d.focused = 0
}

func (d *DigitCells) SetAll(digits string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setAllLocked(digits)
}

func (d *DigitCells) setAllLocked(digits string) {
	d.clearLocked()
	n := len(digits)
	if n > len(d.cells) {
		n = len(d.cells)
	}
	for i := 0; i < n; i++ {
		if !isDigit(digits[i]) {
			break
		}
		d.cells[i] = digits[i]
		d.focused = i
	}
}

// Type enters one digit into the first empty cell at or after the focused
// one, then advances focus to the next empty cell. A filled cell is never
// overwritten; input on a full row, non-digit input and input while
// disabled are ignored.
func (d *DigitCells) Type(ch byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.disabled || !isDigit(ch) {
		return
	}
	target := -1
	for i := d.focused; i < len(d.cells); i++ {
		if d.cells[i] == 0 {
			target = i
			break
		}
	}
	if target == -1 {
		return
	}
	d.cells[target] = ch
	d.focused = target
	for i := target + 1; i < len(d.cells); i++ {
		if d.cells[i] == 0 {
			d.focused = i
			return
		}
	}
}

// Backspace clears the focused cell; on an empty cell it moves focus to the
// previous cell and clears that one instead.
func (d *DigitCells) Backspace() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.disabled {
		return
	}
	if d.cells[d.focused] != 0 {
		d.cells[d.focused] = 0
		return
	}
	if d.focused > 0 {
		d.focused--
		d.cells[d.focused] = 0
	}
}

// Paste assigns up to len(cells) leading digits of the payload left to
// right, keeping only digit characters in order. A payload with no digits
// is ignored.
func (d *DigitCells) Paste(payload string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.disabled {
		return
	}
	var b strings.Builder
	for i := 0; i < len(payload); i++ {
		if isDigit(payload[i]) {
			b.WriteByte(payload[i])
		}
	}
	if b.Len() == 0 {
		return
	}
	d.setAllLocked(b.String())
}

// Value returns the captured digits so far.
func (d *DigitCells) Value() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var b strings.Builder
	for _, c := range d.cells {
		if c != 0 {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Complete reports whether every cell holds a digit.
func (d *DigitCells) Complete() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.cells {
		if c == 0 {
			return false
		}
	}
	return true
}

// Filled returns a per-cell mask of which cells hold a digit. Renderers
// use this to draw the row without ever seeing the digits.
func (d *DigitCells) Filled() []bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]bool, len(d.cells))
	for i, c := range d.cells {
		out[i] = c != 0
	}
	return out
}

// Focused returns the index of the focused cell.
func (d *DigitCells) Focused() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.focused
}

// SetDisabled toggles input on the row; cells are disabled while an
// authorization call is in flight.
func (d *DigitCells) SetDisabled(disabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disabled = disabled
}

func (d *DigitCells) Disabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.disabled
}
