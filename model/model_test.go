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

package model

import (
	"testing"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validForm() TransferForm {
	return TransferForm{
		FromAccountID:   "acc_123",
		ToAccountNumber: "ABCD123456789012",
		Amount:          "500",
	}
}

func TestValidateTransferForm_Valid(t *testing.T) {
	form := validForm()
	assert.NoError(t, form.ValidateTransferForm())
}

func TestValidateTransferForm_AccountNumber(t *testing.T) {
	tests := []struct {
		name   string
		number string
		valid  bool
	}{
		{"uppercase prefix with 12 digits", "ABCD123456789012", true},
		{"lowercase prefix", "abcd123456789012", false},
		{"too short", "ABCD12345", false},
		{"too long", "ABCD1234567890123", false},
		{"digits in prefix", "AB12123456789012", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := validForm()
			form.ToAccountNumber = tt.number
			err := form.ValidateTransferForm()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				errs, ok := err.(validation.Errors)
				require.True(t, ok)
				assert.Contains(t, errs, "to_account_number")
			}
		})
	}
}

func TestValidateTransferForm_Amount(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		valid  bool
	}{
		{"at minimum", "100.00", true},
		{"above minimum", "500", true},
		{"below minimum", "99.99", false},
		{"zero", "0", false},
		{"negative", "-50", false},
		{"not a number", "ten", false},
		{"three decimal places", "100.123", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := validForm()
			form.Amount = tt.amount
			err := form.ValidateTransferForm()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				errs, ok := err.(validation.Errors)
				require.True(t, ok)
				assert.Contains(t, errs, "amount")
			}
		})
	}
}

func TestValidateTransferForm_FromAccountRequired(t *testing.T) {
	form := validForm()
	form.FromAccountID = ""
	err := form.ValidateTransferForm()
	require.Error(t, err)
	errs := err.(validation.Errors)
	assert.Contains(t, errs, "from_account_id")
}

func TestToTransferRequest(t *testing.T) {
	form := validForm()
	form.Remarks = "rent"
	req, err := form.ToTransferRequest()
	require.NoError(t, err)
	assert.Equal(t, "acc_123", req.FromAccountID)
	assert.Equal(t, "ABCD123456789012", req.ToAccountNumber)
	assert.True(t, req.Amount.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, "rent", req.Remarks)
}

func TestTerminalStates(t *testing.T) {
	assert.True(t, StateCommitted.Terminal())
	assert.True(t, StateRejected.Terminal())
	assert.True(t, StateCancelled.Terminal())
	assert.False(t, StateDrafting.Terminal())
	assert.False(t, StateAuthorizing.Terminal())
}

func TestChallengeShapes(t *testing.T) {
	pin := PinChallenge()
	assert.Equal(t, ChallengePin, pin.Kind)
	assert.Equal(t, 4, pin.Length)
	assert.Zero(t, pin.ResendCooldownSeconds)

	otp := OtpChallenge()
	assert.Equal(t, ChallengeOtp, otp.Kind)
	assert.Equal(t, 6, otp.Length)
	assert.Equal(t, 60, otp.ResendCooldownSeconds)
}
