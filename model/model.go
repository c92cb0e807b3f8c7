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
	"regexp"

	"github.com/shopspring/decimal"
)

// Wire-format constants shared with the remote banking core.
const (
	PinLength             = 4
	OtpLength             = 6
	ResendCooldownSeconds = 60
	MaxPinAttempts        = 3
)

// AccountNumberPattern matches a destination account number: four uppercase
// letters followed by twelve digits.
var AccountNumberPattern = regexp.MustCompile(`^[A-Z]{4}\d{12}$`)

// MinTransferAmount is the smallest amount the ledger accepts for a transfer.
var MinTransferAmount = decimal.NewFromInt(100)

// FlowState is the single tagged state value of an authorization flow.
// A flow is always in exactly one of these states; invalid combinations
// such as "loading and committed" cannot be represented.
type FlowState string

const (
	StateDrafting             FlowState = "DRAFTING"
	StateLocalValidated       FlowState = "LOCAL_VALIDATED"
	StateAwaitingSecondFactor FlowState = "AWAITING_SECOND_FACTOR"
	StateAuthorizing          FlowState = "AUTHORIZING"
	StateCommitted            FlowState = "COMMITTED"
	StateRejected             FlowState = "REJECTED"
	StateCancelled            FlowState = "CANCELLED"
)

// Terminal reports whether the state admits no further transitions.
func (s FlowState) Terminal() bool {
	return s == StateCommitted || s == StateRejected || s == StateCancelled
}

// TransferRequest is the frozen snapshot of a validated transfer form.
// Once second-factor capture begins the orchestrator holds it immutably;
// later edits to the source form do not reach an in-flight request.
// Remarks are local-only and never transmitted to the ledger.
type TransferRequest struct {
	FromAccountID   string          `json:"from_account_id"`
	ToAccountNumber string          `json:"to_account_number"`
	Amount          decimal.Decimal `json:"amount"`
	Remarks         string          `json:"-"`
}

// Account is a cached projection of a ledger-owned account. The balance is
// advisory for pre-submit checks only; the ledger remains the source of
// truth and can still reject a transfer.
type Account struct {
	ID            string          `json:"id"`
	AccountNumber string          `json:"account_number"`
	Balance       decimal.Decimal `json:"balance"`
	Status        string          `json:"status"`
}

// AlertKind classifies a user-facing notification.
type AlertKind string

const (
	AlertSuccess AlertKind = "success"
	AlertError   AlertKind = "error"
	AlertWarning AlertKind = "warning"
	AlertInfo    AlertKind = "info"
)

// Alert is a transient user-facing notification. IDs are unique and
// monotonically increasing within a queue; rendering order equals
// insertion order. AutoCloseMs of 0 disables auto-close.
type Alert struct {
	ID          int64     `json:"id"`
	Kind        AlertKind `json:"kind"`
	Message     string    `json:"message"`
	AutoCloseMs int       `json:"auto_close_ms"`
}

// ChallengeKind discriminates the second-factor challenge variants.
type ChallengeKind string

const (
	ChallengePin ChallengeKind = "pin"
	ChallengeOtp ChallengeKind = "otp"
)

// SecondFactorChallenge describes the second factor gating an operation.
// It carries challenge shape only; captured digits live in the capture
// channel and are discarded after each authorization attempt.
type SecondFactorChallenge struct {
	Kind                  ChallengeKind `json:"kind"`
	Length                int           `json:"length"`
	ResendCooldownSeconds int           `json:"resend_cooldown_seconds,omitempty"`
}

// PinChallenge returns the 4-digit card PIN challenge.
func PinChallenge() SecondFactorChallenge {
	return SecondFactorChallenge{Kind: ChallengePin, Length: PinLength}
}

// OtpChallenge returns the 6-digit one-time-code challenge used during
// onboarding identity verification.
func OtpChallenge() SecondFactorChallenge {
	return SecondFactorChallenge{
		Kind:                  ChallengeOtp,
		Length:                OtpLength,
		ResendCooldownSeconds: ResendCooldownSeconds,
	}
}
