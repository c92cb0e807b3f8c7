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
	"regexp"
	"sync"
	"time"

	"github.com/netbankhq/authflow/alerts"
	"github.com/netbankhq/authflow/ledger"
	"github.com/netbankhq/authflow/model"
	"github.com/netbankhq/authflow/secondfactor"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var verificationTracer = otel.Tracer("authflow.verification")

// successDisplayDelay keeps the success alert on screen before the
// channel closes and completion is signalled to the caller.
const successDisplayDelay = 1500 * time.Millisecond

var (
	// ErrCooldownActive is returned when a resend is requested before the
	// countdown reaches zero. No network call is made.
	ErrCooldownActive = errors.New("resend cooldown has not elapsed")

	// ErrCodeLength is returned when the submitted code is not exactly
	// six digits.
	ErrCodeLength = errors.New("verification code must be exactly 6 digits")
)

var otpCodePattern = regexp.MustCompile(`^\d{6}$`)

// VerificationFlow drives onboarding identity verification: a 6-digit
// one-time code with a resend cooldown. It mirrors the transfer flow's
// shape with a narrower outcome set: a wrong code and a transport failure
// are both retryable in place, success commits after a short display
// delay, and cancellation tears everything down.
type VerificationFlow struct {
	mu      sync.Mutex
	service *Authflow
	alerts  *alerts.Queue

	applicationID string
	state         model.FlowState
	otp           *secondfactor.OtpChannel
	generation    int

	successTimer *time.Timer
	done         chan struct{}
}

func newVerificationFlow(service *Authflow, applicationID string) *VerificationFlow {
	return &VerificationFlow{
		service:       service,
		alerts:        alerts.NewQueue(),
		applicationID: applicationID,
		state:         model.StateDrafting,
		done:          make(chan struct{}),
	}
}

func (f *VerificationFlow) State() model.FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Alerts exposes the flow's notification queue.
func (f *VerificationFlow) Alerts() *alerts.Queue {
	return f.alerts
}

// Done is closed once verification completed and the display delay
// elapsed; callers use it to advance the onboarding journey.
func (f *VerificationFlow) Done() <-chan struct{} {
	return f.done
}

// Open starts the capture channel; the cooldown countdown begins
// immediately.
func (f *VerificationFlow) Open() (*secondfactor.OtpChannel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != model.StateDrafting {
		return nil, ErrInvalidTransition
	}
	f.state = model.StateAwaitingSecondFactor
	f.otp = secondfactor.NewOtpChannel(func(code string) {
		_ = f.Verify(context.Background(), code)
	})
	return f.otp, nil
}

// OtpChannel returns the open capture channel, or nil.
func (f *VerificationFlow) OtpChannel() *secondfactor.OtpChannel {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.otp
}

// Verify submits the captured code. A wrong code clears the cells for
// re-entry; a transport failure preserves them so the user can resubmit
// without retyping. Success surfaces an alert, then closes the channel
// and signals Done after the display delay.
func (f *VerificationFlow) Verify(ctx context.Context, code string) error {
	ctx, span := verificationTracer.Start(ctx, "VerifyApplication")
	defer span.End()

	if !otpCodePattern.MatchString(code) {
		return ErrCodeLength
	}

	f.mu.Lock()
	if f.state != model.StateAwaitingSecondFactor {
		f.mu.Unlock()
		return ErrInvalidTransition
	}
	f.state = model.StateAuthorizing
	generation := f.generation
	applicationID := f.applicationID
	f.mu.Unlock()

	err := f.service.ledger.VerifyApplication(ctx, applicationID, code)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.generation != generation || f.state != model.StateAuthorizing {
		span.AddEvent("stale verification outcome discarded")
		return nil
	}

	if err == nil {
		f.state = model.StateCommitted
		f.generation++
		f.alerts.Push(model.AlertSuccess, "Identity verified", 0)
		span.AddEvent("application verified", trace.WithAttributes(
			attribute.String("application.id", applicationID)))
		f.successTimer = time.AfterFunc(successDisplayDelay, f.finish)
		return nil
	}

	span.RecordError(err)
	f.state = model.StateAwaitingSecondFactor

	var apiErr *ledger.APIError
	if errors.As(err, &apiErr) && apiErr.Status < 500 {
		// Wrong code: clear the cells, focus back on the first one.
		if f.otp != nil {
			f.otp.Reset()
		}
		f.alerts.Push(model.AlertError, "That code is not correct. Please re-enter it", alertAutoClose)
		return nil
	}

	// Transport or server failure: keep the captured cells for a retry.
	if f.otp != nil {
		f.otp.PreserveForRetry()
	}
	f.alerts.Push(model.AlertError, "We could not verify the code right now. Please try again", alertAutoClose)
	return nil
}

// Resend asks the core for a fresh code. It is rejected locally, without
// a network call, until the cooldown reaches zero; on success the
// countdown restarts at its full length and the cells are cleared.
func (f *VerificationFlow) Resend(ctx context.Context) error {
	ctx, span := verificationTracer.Start(ctx, "ResendOtp")
	defer span.End()

	f.mu.Lock()
	if f.state != model.StateAwaitingSecondFactor {
		f.mu.Unlock()
		return ErrInvalidTransition
	}
	if f.otp == nil || !f.otp.CanResend() {
		f.mu.Unlock()
		return ErrCooldownActive
	}
	generation := f.generation
	applicationID := f.applicationID
	f.mu.Unlock()

	err := f.service.ledger.ResendOtp(ctx, applicationID)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.generation != generation || f.state != model.StateAwaitingSecondFactor {
		span.AddEvent("stale resend outcome discarded")
		return nil
	}

	if err != nil {
		span.RecordError(err)
		f.alerts.Push(model.AlertError, "Could not send a new code. Please try again later", alertAutoClose)
		return nil
	}

	f.otp.MarkResent()
	f.alerts.Push(model.AlertInfo, "A new code has been sent", alertAutoClose)
	return nil
}

// Cancel abandons the verification. All owned timers stop; a late
// response for an in-flight call is discarded.
func (f *VerificationFlow) Cancel() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.state {
	case model.StateAwaitingSecondFactor, model.StateAuthorizing:
	default:
		return ErrInvalidTransition
	}
	f.state = model.StateCancelled
	f.generation++
	if f.successTimer != nil {
		f.successTimer.Stop()
	}
	if f.otp != nil {
		f.otp.Close()
	}
	f.alerts.Close()
	return nil
}

// finish closes the channel and signals completion after the success
// display delay.
func (f *VerificationFlow) finish() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != model.StateCommitted {
		return
	}
	if f.otp != nil {
		f.otp.Close()
	}
	close(f.done)
}
