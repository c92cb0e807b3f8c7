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

package authflow

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/netbankhq/authflow/alerts"
	"github.com/netbankhq/authflow/internal/classify"
	"github.com/netbankhq/authflow/internal/notification"
	"github.com/netbankhq/authflow/ledger"
	"github.com/netbankhq/authflow/model"
	"github.com/netbankhq/authflow/secondfactor"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var transferTracer = otel.Tracer("authflow.transfers")

// ErrLocalValidation is returned by Submit when the form fails local
// validation; the per-field detail is available via FieldErrors.
var ErrLocalValidation = errors.New("transfer form failed local validation")

// ErrPinLength is returned when the submitted PIN is not exactly four
// digits. No network call is made.
var ErrPinLength = errors.New("pin must be exactly 4 digits")

var pinCodePattern = regexp.MustCompile(`^\d{4}$`)

// alertAutoClose is the display duration for transient alerts. Fatal
// outcomes stay until dismissed.
const alertAutoClose = 5 * time.Second

// TransferFlow drives one transfer from draft to a terminal state:
//
//	Drafting → LocalValidated → AwaitingSecondFactor → Authorizing →
//	Committed | Rejected | Cancelled
//
// At most one authorization call is in flight per flow; a response
// arriving after cancellation or a terminal transition is discarded.
type TransferFlow struct {
	mu      sync.Mutex
	service *Authflow
	alerts  *alerts.Queue

	sessionID  string
	customerID string

	state       model.FlowState
	request     *model.TransferRequest
	reference   string
	fieldErrors map[string]string
	pin         *secondfactor.PinChannel
	receipt     *ledger.TransferReceipt

	// generation invalidates in-flight authorization calls. Cancel bumps
	// it; a returning call that no longer matches applies nothing.
	generation int

	// attemptsLeft mirrors the count reported by the core. The lockout
	// policy itself is server-authoritative.
	attemptsLeft int
}

func newTransferFlow(service *Authflow, sessionID, customerID string, q *alerts.Queue) *TransferFlow {
	return &TransferFlow{
		service:      service,
		alerts:       q,
		sessionID:    sessionID,
		customerID:   customerID,
		state:        model.StateDrafting,
		attemptsLeft: classify.AttemptsUnknown,
	}
}

func (f *TransferFlow) State() model.FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// FieldErrors returns the per-field validation annotations of the last
// Submit or rejection.
func (f *TransferFlow) FieldErrors() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.fieldErrors))
	for k, v := range f.fieldErrors {
		out[k] = v
	}
	return out
}

// Request returns the frozen snapshot, or nil outside an active attempt.
func (f *TransferFlow) Request() *model.TransferRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.request == nil {
		return nil
	}
	snapshot := *f.request
	return &snapshot
}

// Receipt returns the commit receipt once the flow is Committed.
func (f *TransferFlow) Receipt() *ledger.TransferReceipt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.receipt
}

// AttemptsLeft returns the last attempts-remaining count reported by the
// core, or classify.AttemptsUnknown.
func (f *TransferFlow) AttemptsLeft() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attemptsLeft
}

// Submit validates the transfer form. On success the flow freezes an
// immutable snapshot and moves to LocalValidated; later edits to the form
// do not reach the snapshot. On failure the flow stays in Drafting with
// per-field errors and one aggregate alert.
func (f *TransferFlow) Submit(ctx context.Context, form model.TransferForm) error {
	ctx, span := transferTracer.Start(ctx, "SubmitTransferForm")
	defer span.End()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != model.StateDrafting {
		return ErrInvalidTransition
	}

	fieldErrors := map[string]string{}
	if err := form.ValidateTransferForm(); err != nil {
		if verrs, ok := err.(validation.Errors); ok {
			for field, ferr := range verrs {
				fieldErrors[field] = ferr.Error()
			}
		} else {
			fieldErrors["form"] = err.Error()
		}
	}

	// Advisory balance check against the cached projection. The core can
	// still reject; this only fails fast on an obviously short balance.
	if _, taken := fieldErrors["amount"]; !taken {
		if acc := f.service.cachedAccount(ctx, f.sessionID, form.FromAccountID); acc != nil {
			if req, err := form.ToTransferRequest(); err == nil && req.Amount.GreaterThan(acc.Balance) {
				fieldErrors["amount"] = "insufficient balance"
			}
		}
	}

	if len(fieldErrors) > 0 {
		f.fieldErrors = fieldErrors
		span.AddEvent("local validation failed")
		f.alerts.Push(model.AlertError, "Please fix the highlighted fields", alertAutoClose)
		return ErrLocalValidation
	}

	req, err := form.ToTransferRequest()
	if err != nil {
		// Unreachable after a passing validation; kept as a guard.
		return err
	}

	f.fieldErrors = nil
	f.request = &req
	f.reference = uuid.New().String()
	f.state = model.StateLocalValidated
	span.AddEvent("transfer request frozen", trace.WithAttributes(
		attribute.String("transfer.reference", f.reference)))
	return nil
}

// OpenSecondFactor opens the PIN capture channel for the frozen request.
// The channel auto-submits once four digits are captured.
func (f *TransferFlow) OpenSecondFactor() (*secondfactor.PinChannel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != model.StateLocalValidated {
		return nil, ErrInvalidTransition
	}
	f.state = model.StateAwaitingSecondFactor
	f.pin = secondfactor.NewPinChannel(func(pin string) {
		_ = f.SubmitSecondFactor(context.Background(), pin)
	})
	return f.pin, nil
}

// PinChannel returns the open capture channel, or nil.
func (f *TransferFlow) PinChannel() *secondfactor.PinChannel {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pin
}

// SubmitSecondFactor authorizes the frozen request with the captured PIN.
// Exactly one call may be in flight; resubmission is rejected until the
// outcome lands. The PIN is used for this single call and not retained.
func (f *TransferFlow) SubmitSecondFactor(ctx context.Context, pin string) error {
	ctx, span := transferTracer.Start(ctx, "AuthorizeTransfer")
	defer span.End()

	if !pinCodePattern.MatchString(pin) {
		return ErrPinLength
	}

	f.mu.Lock()
	if f.state != model.StateAwaitingSecondFactor {
		f.mu.Unlock()
		return ErrInvalidTransition
	}
	f.state = model.StateAuthorizing
	generation := f.generation
	req := *f.request
	reference := f.reference
	f.mu.Unlock()

	receipt, err := f.service.ledger.Transfer(ctx, req, pin, reference)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.generation != generation || f.state != model.StateAuthorizing {
		// The flow was cancelled while the call was in flight. The
		// outcome is discarded; no cache write, no alert.
		span.AddEvent("stale authorization outcome discarded")
		return nil
	}

	if err != nil {
		f.settleFailureLocked(ctx, span, err)
		return nil
	}

	f.state = model.StateCommitted
	f.receipt = receipt
	f.request = nil
	f.generation++
	if f.pin != nil {
		f.pin.Close()
	}
	f.service.applyCommittedBalance(ctx, f.sessionID, req.FromAccountID, receipt)
	f.alerts.Push(model.AlertSuccess,
		fmt.Sprintf("Transfer complete. Transaction %s. New balance: %s",
			receipt.TransactionID, receipt.FromAccountBalance.StringFixed(2)),
		alertAutoClose)
	span.AddEvent("transfer committed", trace.WithAttributes(
		attribute.String("transaction.id", receipt.TransactionID)))

	go func() {
		if werr := SendWebhook(FlowWebhook{Event: "transfer.committed", Payload: receipt}); werr != nil {
			notification.NotifyError(werr)
		}
	}()
	return nil
}

// settleFailureLocked applies a classified authorization failure. A wrong
// PIN stays retryable in place; every other kind rejects the attempt and
// the user must restart from a fresh draft.
func (f *TransferFlow) settleFailureLocked(ctx context.Context, span trace.Span, err error) {
	c := classifyOutcome(err)
	span.RecordError(err)
	span.SetAttributes(attribute.String("authorization.outcome", string(c.Kind)))

	if c.RetryableInPlace() {
		f.state = model.StateAwaitingSecondFactor
		f.attemptsLeft = c.AttemptsLeft
		if f.pin != nil {
			f.pin.Reset()
		}
		f.alerts.Push(model.AlertWarning, invalidPinMessage(c.AttemptsLeft), alertAutoClose)
		return
	}

	f.state = model.StateRejected
	f.request = nil
	f.generation++
	if f.pin != nil {
		f.pin.Close()
	}
	switch c.Kind {
	case classify.KindInsufficientBalance, classify.KindBelowMinimumAmount:
		f.fieldErrors = map[string]string{"amount": remediationMessage(c)}
	}
	f.alerts.Push(model.AlertError, remediationMessage(c), 0)

	if c.Kind == classify.KindUnknown {
		notification.NotifyError(err)
	}
	go func() {
		if werr := SendWebhook(FlowWebhook{Event: "transfer.rejected", Payload: map[string]string{
			"kind":   string(c.Kind),
			"detail": c.Detail,
		}}); werr != nil {
			notification.NotifyError(werr)
		}
	}()
}

// Cancel abandons the attempt. It is legal from LocalValidated,
// AwaitingSecondFactor and Authorizing; an in-flight authorization
// response arriving afterwards is discarded, not applied.
func (f *TransferFlow) Cancel() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.state {
	case model.StateLocalValidated, model.StateAwaitingSecondFactor, model.StateAuthorizing:
	default:
		return ErrInvalidTransition
	}
	f.state = model.StateCancelled
	f.generation++
	f.request = nil
	if f.pin != nil {
		f.pin.Close()
	}
	return nil
}

func invalidPinMessage(attemptsLeft int) string {
	if attemptsLeft == classify.AttemptsUnknown {
		return "Incorrect PIN. Please try again"
	}
	if attemptsLeft == 1 {
		return "Incorrect PIN. 1 attempt remaining"
	}
	return fmt.Sprintf("Incorrect PIN. %d attempts remaining", attemptsLeft)
}

func remediationMessage(c classify.Classification) string {
	switch c.Kind {
	case classify.KindPinNotSet:
		return "You have not set a PIN for this card. Set a PIN before transferring funds"
	case classify.KindNoCardFound:
		return "No card is linked to this account. Request a card to authorize transfers"
	case classify.KindCardBlocked:
		return "Your card is blocked. Contact support to unblock it"
	case classify.KindTooManyAttempts:
		return "Too many wrong PIN attempts. Your card has been blocked"
	case classify.KindBelowMinimumAmount:
		return fmt.Sprintf("The bank rejected this transfer: minimum amount is %s", model.MinTransferAmount.String())
	case classify.KindInsufficientBalance:
		return "Insufficient balance in the source account"
	case classify.KindValidationError:
		return fmt.Sprintf("The bank rejected this transfer: %s", c.Detail)
	default:
		return "Transfer failed. Please try again later"
	}
}
