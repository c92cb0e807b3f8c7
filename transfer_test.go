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
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/netbankhq/authflow/config"
	"github.com/netbankhq/authflow/internal/cache"
	"github.com/netbankhq/authflow/internal/classify"
	"github.com/netbankhq/authflow/ledger"
	"github.com/netbankhq/authflow/model"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLedger struct {
	transferFn func(ctx context.Context, req model.TransferRequest, pin, reference string) (*ledger.TransferReceipt, error)
	accounts   []model.Account
	verifyFn   func(ctx context.Context, applicationID, code string) error
	resendFn   func(ctx context.Context, applicationID string) error

	transferCalls int
	resendCalls   int
}

func (f *fakeLedger) Transfer(ctx context.Context, req model.TransferRequest, pin, reference string) (*ledger.TransferReceipt, error) {
	f.transferCalls++
	if f.transferFn == nil {
		return &ledger.TransferReceipt{TransactionID: "txn_1"}, nil
	}
	return f.transferFn(ctx, req, pin, reference)
}

func (f *fakeLedger) ListAccounts(ctx context.Context, customerID string) ([]model.Account, error) {
	return f.accounts, nil
}

func (f *fakeLedger) VerifyApplication(ctx context.Context, applicationID, code string) error {
	if f.verifyFn == nil {
		return nil
	}
	return f.verifyFn(ctx, applicationID, code)
}

func (f *fakeLedger) ResendOtp(ctx context.Context, applicationID string) error {
	f.resendCalls++
	if f.resendFn == nil {
		return nil
	}
	return f.resendFn(ctx, applicationID)
}

func newTestService(t *testing.T, l LedgerService) *Authflow {
	t.Helper()
	config.MockConfig(&config.Configuration{
		ProjectName: "Authflow",
		Ledger:      config.LedgerConfig{BaseUrl: "http://core.bank.local", TimeoutSec: 5},
		Redis:       config.RedisConfig{Dns: "localhost:6379"},
	})

	mr := miniredis.RunT(t)
	c, err := cache.NewCacheWithAddresses([]string{mr.Addr()})
	require.NoError(t, err)
	return NewAuthflow(l, c)
}

func validForm() model.TransferForm {
	return model.TransferForm{
		FromAccountID:   "acc_1",
		ToAccountNumber: "ABCD123456789012",
		Amount:          "500",
		Remarks:         "rent",
	}
}

func seededAccounts() []model.Account {
	return []model.Account{
		{ID: "acc_1", AccountNumber: "WXYZ111122223333", Balance: decimal.NewFromInt(1500), Status: "active"},
		{ID: "acc_2", AccountNumber: "WXYZ444455556666", Balance: decimal.NewFromInt(50), Status: "active"},
	}
}

func startedFlow(t *testing.T, l *fakeLedger) (*Authflow, *Session, *TransferFlow) {
	t.Helper()
	service := newTestService(t, l)
	session, err := service.CreateSession(context.Background(), "cust_1")
	require.NoError(t, err)
	flow, err := session.StartTransfer()
	require.NoError(t, err)
	return service, session, flow
}

func TestSubmitRejectsInvalidForm(t *testing.T) {
	_, session, flow := startedFlow(t, &fakeLedger{accounts: seededAccounts()})

	form := model.TransferForm{
		FromAccountID:   "",
		ToAccountNumber: "abcd-not-valid",
		Amount:          "50",
	}
	err := flow.Submit(context.Background(), form)
	require.ErrorIs(t, err, ErrLocalValidation)
	assert.Equal(t, model.StateDrafting, flow.State())

	fieldErrors := flow.FieldErrors()
	assert.Contains(t, fieldErrors, "from_account_id")
	assert.Contains(t, fieldErrors, "to_account_number")
	assert.Contains(t, fieldErrors, "amount")

	// One aggregate alert regardless of how many fields failed.
	active := session.Alerts().Active()
	require.Len(t, active, 1)
	assert.Equal(t, model.AlertError, active[0].Kind)
}

func TestSubmitFlagsInsufficientCachedBalance(t *testing.T) {
	_, _, flow := startedFlow(t, &fakeLedger{accounts: seededAccounts()})

	form := validForm()
	form.FromAccountID = "acc_2" // balance 50, amount 500
	err := flow.Submit(context.Background(), form)
	require.ErrorIs(t, err, ErrLocalValidation)
	assert.Contains(t, flow.FieldErrors(), "amount")
}

func TestSubmitFreezesSnapshot(t *testing.T) {
	_, _, flow := startedFlow(t, &fakeLedger{accounts: seededAccounts()})

	form := validForm()
	require.NoError(t, flow.Submit(context.Background(), form))
	assert.Equal(t, model.StateLocalValidated, flow.State())

	// Editing the form after submission must not reach the snapshot.
	form.Amount = "999999"
	req := flow.Request()
	require.NotNil(t, req)
	assert.True(t, req.Amount.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, "rent", req.Remarks)

	// Resubmitting an already-validated flow is rejected.
	assert.ErrorIs(t, flow.Submit(context.Background(), validForm()), ErrInvalidTransition)
}

func TestAuthorizeCommitsAndUpdatesCache(t *testing.T) {
	l := &fakeLedger{
		accounts: seededAccounts(),
		transferFn: func(ctx context.Context, req model.TransferRequest, pin, reference string) (*ledger.TransferReceipt, error) {
			assert.Equal(t, "1234", pin)
			assert.NotEmpty(t, reference)
			return &ledger.TransferReceipt{
				TransactionID:      "txn_42",
				FromAccountBalance: decimal.NewFromInt(1000),
			}, nil
		},
	}
	service, session, flow := startedFlow(t, l)

	require.NoError(t, flow.Submit(context.Background(), validForm()))
	pin, err := flow.OpenSecondFactor()
	require.NoError(t, err)
	assert.Equal(t, model.StateAwaitingSecondFactor, flow.State())

	// The fourth digit auto-submits; the callback runs inline.
	for _, ch := range "1234" {
		pin.Type(byte(ch))
	}

	assert.Equal(t, model.StateCommitted, flow.State())
	require.NotNil(t, flow.Receipt())
	assert.Equal(t, "txn_42", flow.Receipt().TransactionID)
	assert.Nil(t, flow.Request())

	// The cached projection now carries the authoritative balance.
	accounts := service.CachedAccounts(context.Background(), session.ID())
	require.Len(t, accounts, 2)
	assert.True(t, accounts[0].Balance.Equal(decimal.NewFromInt(1000)))

	var kinds []model.AlertKind
	for _, a := range session.Alerts().Active() {
		kinds = append(kinds, a.Kind)
	}
	assert.Contains(t, kinds, model.AlertSuccess)
}

func TestWrongPinRetriesInPlace(t *testing.T) {
	l := &fakeLedger{
		accounts: seededAccounts(),
		transferFn: func(ctx context.Context, req model.TransferRequest, pin, reference string) (*ledger.TransferReceipt, error) {
			return nil, &ledger.APIError{Status: 401, Message: "Invalid PIN. 2 attempts left"}
		},
	}
	_, session, flow := startedFlow(t, l)

	require.NoError(t, flow.Submit(context.Background(), validForm()))
	pin, err := flow.OpenSecondFactor()
	require.NoError(t, err)
	for _, ch := range "9999" {
		pin.Type(byte(ch))
	}

	assert.Equal(t, model.StateAwaitingSecondFactor, flow.State())
	assert.Equal(t, 2, flow.AttemptsLeft())

	// The channel is re-armed for another attempt with empty cells.
	assert.Empty(t, pin.Cells().Value())
	assert.Equal(t, 0, pin.Cells().Focused())
	assert.False(t, pin.Cells().Disabled())

	active := session.Alerts().Active()
	require.Len(t, active, 1)
	assert.Equal(t, model.AlertWarning, active[0].Kind)
	assert.Contains(t, active[0].Message, "2 attempts")
}

func TestCardBlockedRejects(t *testing.T) {
	l := &fakeLedger{
		accounts: seededAccounts(),
		transferFn: func(ctx context.Context, req model.TransferRequest, pin, reference string) (*ledger.TransferReceipt, error) {
			return nil, &ledger.APIError{Status: 403, Message: "Your card is blocked"}
		},
	}
	_, session, flow := startedFlow(t, l)

	require.NoError(t, flow.Submit(context.Background(), validForm()))
	pin, err := flow.OpenSecondFactor()
	require.NoError(t, err)
	for _, ch := range "1234" {
		pin.Type(byte(ch))
	}

	assert.Equal(t, model.StateRejected, flow.State())
	assert.True(t, pin.Closed())

	// Fatal outcomes stay until dismissed.
	active := session.Alerts().Active()
	require.Len(t, active, 1)
	assert.Equal(t, model.AlertError, active[0].Kind)
	assert.Zero(t, active[0].AutoCloseMs)
}

func TestServerSideMinimumAmountAnnotatesField(t *testing.T) {
	l := &fakeLedger{
		accounts: seededAccounts(),
		transferFn: func(ctx context.Context, req model.TransferRequest, pin, reference string) (*ledger.TransferReceipt, error) {
			return nil, &ledger.APIError{Status: 422, Message: "Minimum transfer amount is ₹100"}
		},
	}
	_, _, flow := startedFlow(t, l)

	require.NoError(t, flow.Submit(context.Background(), validForm()))
	pin, err := flow.OpenSecondFactor()
	require.NoError(t, err)
	for _, ch := range "1234" {
		pin.Type(byte(ch))
	}

	assert.Equal(t, model.StateRejected, flow.State())
	assert.Contains(t, flow.FieldErrors(), "amount")
}

func TestCancelDiscardsLateResponse(t *testing.T) {
	release := make(chan struct{})
	l := &fakeLedger{
		accounts: seededAccounts(),
		transferFn: func(ctx context.Context, req model.TransferRequest, pin, reference string) (*ledger.TransferReceipt, error) {
			<-release
			return &ledger.TransferReceipt{
				TransactionID:      "txn_late",
				FromAccountBalance: decimal.NewFromInt(1),
			}, nil
		},
	}
	service, session, flow := startedFlow(t, l)

	require.NoError(t, flow.Submit(context.Background(), validForm()))
	_, err := flow.OpenSecondFactor()
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = flow.SubmitSecondFactor(context.Background(), "1234")
	}()

	require.Eventually(t, func() bool {
		return flow.State() == model.StateAuthorizing
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, flow.Cancel())
	close(release)
	<-done

	// The late success must not resurrect the flow or touch the cache.
	assert.Equal(t, model.StateCancelled, flow.State())
	assert.Nil(t, flow.Receipt())
	accounts := service.CachedAccounts(context.Background(), session.ID())
	require.Len(t, accounts, 2)
	assert.True(t, accounts[0].Balance.Equal(decimal.NewFromInt(1500)))
	assert.Empty(t, session.Alerts().Active())
}

func TestSubmitSecondFactorRejectsMalformedPin(t *testing.T) {
	l := &fakeLedger{accounts: seededAccounts()}
	_, _, flow := startedFlow(t, l)

	require.NoError(t, flow.Submit(context.Background(), validForm()))
	_, err := flow.OpenSecondFactor()
	require.NoError(t, err)

	assert.ErrorIs(t, flow.SubmitSecondFactor(context.Background(), "123"), ErrPinLength)
	assert.ErrorIs(t, flow.SubmitSecondFactor(context.Background(), "123a"), ErrPinLength)

	// The flow stays armed and nothing reached the core.
	assert.Equal(t, model.StateAwaitingSecondFactor, flow.State())
	assert.Zero(t, l.transferCalls)
}

func TestCancelOnlyFromActiveStates(t *testing.T) {
	_, _, flow := startedFlow(t, &fakeLedger{accounts: seededAccounts()})

	// Drafting has nothing to cancel.
	assert.ErrorIs(t, flow.Cancel(), ErrInvalidTransition)

	require.NoError(t, flow.Submit(context.Background(), validForm()))
	require.NoError(t, flow.Cancel())
	assert.Equal(t, model.StateCancelled, flow.State())

	// Cancelling twice is rejected.
	assert.ErrorIs(t, flow.Cancel(), ErrInvalidTransition)
}

func TestOneActiveFlowPerSession(t *testing.T) {
	_, session, flow := startedFlow(t, &fakeLedger{accounts: seededAccounts()})

	require.NoError(t, flow.Submit(context.Background(), validForm()))
	_, err := session.StartTransfer()
	assert.ErrorIs(t, err, ErrFlowActive)

	require.NoError(t, flow.Cancel())
	next, err := session.StartTransfer()
	require.NoError(t, err)
	assert.Equal(t, model.StateDrafting, next.State())
}

func TestUnknownFailureClassifiesAsUnknown(t *testing.T) {
	l := &fakeLedger{
		accounts: seededAccounts(),
		transferFn: func(ctx context.Context, req model.TransferRequest, pin, reference string) (*ledger.TransferReceipt, error) {
			return nil, errors.New("dial tcp: connection refused")
		},
	}
	_, session, flow := startedFlow(t, l)

	require.NoError(t, flow.Submit(context.Background(), validForm()))
	_, err := flow.OpenSecondFactor()
	require.NoError(t, err)
	require.NoError(t, flow.SubmitSecondFactor(context.Background(), "1234"))

	assert.Equal(t, model.StateRejected, flow.State())
	active := session.Alerts().Active()
	require.Len(t, active, 1)
	assert.Contains(t, active[0].Message, "try again later")
}

func TestCloseSessionCancelsFlowAndDropsCache(t *testing.T) {
	service, session, flow := startedFlow(t, &fakeLedger{accounts: seededAccounts()})
	require.NoError(t, flow.Submit(context.Background(), validForm()))

	require.NoError(t, service.CloseSession(context.Background(), session.ID()))
	assert.Equal(t, model.StateCancelled, flow.State())

	_, err := service.GetSession(session.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestClassifyOutcomePassesThroughAPIErrors(t *testing.T) {
	c := classifyOutcome(&ledger.APIError{Status: 401, Message: "Invalid PIN. 1 attempt left"})
	assert.Equal(t, classify.KindInvalidPin, c.Kind)
	assert.Equal(t, 1, c.AttemptsLeft)

	c = classifyOutcome(errors.New("timeout"))
	assert.Equal(t, classify.KindUnknown, c.Kind)
	assert.Equal(t, classify.AttemptsUnknown, c.AttemptsLeft)
}
