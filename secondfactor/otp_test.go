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
	"testing"

	"github.com/netbankhq/authflow/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (c *OtpChannel) setCooldownForTest(seconds int) {
	c.mu.Lock()
	c.cooldown = seconds
	c.mu.Unlock()
}

func TestOtpAutoSubmitsOnSixDigits(t *testing.T) {
	var submitted []string
	c := NewOtpChannel(func(code string) {
		submitted = append(submitted, code)
	})
	defer c.Close()

	c.Paste("12345")
	assert.Empty(t, submitted)

	c.Type('6')
	require.Len(t, submitted, 1)
	assert.Equal(t, "123456", submitted[0])
}

func TestOtpCooldownGating(t *testing.T) {
	c := NewOtpChannel(nil)
	defer c.Close()

	assert.Equal(t, model.ResendCooldownSeconds, c.CooldownRemaining())
	assert.False(t, c.CanResend())

	c.setCooldownForTest(1)
	assert.False(t, c.CanResend())

	c.setCooldownForTest(0)
	assert.True(t, c.CanResend())
}

func TestOtpMarkResentResetsCooldownAndCells(t *testing.T) {
	c := NewOtpChannel(nil)
	defer c.Close()

	c.setCooldownForTest(0)
	c.Paste("123")
	require.Equal(t, "123", c.Cells().Value())

	c.MarkResent()
	assert.Equal(t, model.ResendCooldownSeconds, c.CooldownRemaining())
	assert.Empty(t, c.Cells().Value())
	assert.False(t, c.CanResend())
}

func TestOtpWrongCodeResetClearsCells(t *testing.T) {
	var submitted []string
	c := NewOtpChannel(func(code string) {
		submitted = append(submitted, code)
	})
	defer c.Close()

	c.Paste("111111")
	require.Len(t, submitted, 1)

	c.Reset()
	assert.Empty(t, c.Cells().Value())
	assert.Equal(t, 0, c.Cells().Focused())
	assert.False(t, c.Cells().Disabled())
}

func TestOtpTransportFailurePreservesCells(t *testing.T) {
	var submitted []string
	c := NewOtpChannel(func(code string) {
		submitted = append(submitted, code)
	})
	defer c.Close()

	c.Paste("222222")
	require.Len(t, submitted, 1)

	// The captured code survives a transport failure so the user can
	// retry without retyping.
	c.PreserveForRetry()
	assert.Equal(t, "222222", c.Cells().Value())
	assert.False(t, c.Cells().Disabled())

	c.Resubmit()
	require.Len(t, submitted, 2)
	assert.Equal(t, "222222", submitted[1])
}

func TestOtpCloseStopsEverything(t *testing.T) {
	var submitted []string
	c := NewOtpChannel(func(code string) {
		submitted = append(submitted, code)
	})

	c.Close()
	c.Paste("123456")
	c.Resubmit()
	assert.Empty(t, submitted)
	assert.True(t, c.Closed())

	// Close is idempotent.
	c.Close()
}
