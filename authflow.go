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

// Package authflow drives the stateful, second-factor-gated flows of a
// banking web client: transfer authorization (card PIN) and onboarding
// identity verification (one-time code). The remote banking core remains
// the authority for all financial state; this engine owns flow state,
// advisory caches and user-facing outcomes.
package authflow

import (
	"context"
	"fmt"
	"time"

	"github.com/netbankhq/authflow/internal/cache"
	"github.com/netbankhq/authflow/internal/classify"
	"github.com/netbankhq/authflow/ledger"
	"github.com/netbankhq/authflow/model"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// accountsCacheTTL bounds how long an advisory account projection is
// served before the next refresh from the core.
const accountsCacheTTL = 5 * time.Minute

// ErrInvalidTransition is returned when an operation is not legal in the
// flow's current state.
var ErrInvalidTransition = errors.New("operation not valid in current flow state")

// LedgerService is the boundary to the remote banking core. *ledger.Client
// is the production implementation; tests substitute their own.
type LedgerService interface {
	Transfer(ctx context.Context, req model.TransferRequest, pin, reference string) (*ledger.TransferReceipt, error)
	ListAccounts(ctx context.Context, customerID string) ([]model.Account, error)
	VerifyApplication(ctx context.Context, applicationID, code string) error
	ResendOtp(ctx context.Context, applicationID string) error
}

// Authflow wires the flow engine together: the ledger boundary, the
// session-scoped account cache and the per-session and per-application
// flow registries.
type Authflow struct {
	ledger LedgerService
	cache  cache.Cache

	registry *sessionRegistry
}

func NewAuthflow(l LedgerService, c cache.Cache) *Authflow {
	return &Authflow{
		ledger:   l,
		cache:    c,
		registry: newSessionRegistry(),
	}
}

func accountsKey(sessionID string) string {
	return fmt.Sprintf("accounts:%s", sessionID)
}

// RefreshAccounts pulls the customer's accounts from the core and stores
// the projection under the session's cache namespace.
func (a *Authflow) RefreshAccounts(ctx context.Context, sessionID, customerID string) ([]model.Account, error) {
	accounts, err := a.ledger.ListAccounts(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if err := a.cache.Set(ctx, accountsKey(sessionID), accounts, accountsCacheTTL); err != nil {
		logrus.WithField("session_id", sessionID).Warnf("failed to cache accounts: %v", err)
	}
	return accounts, nil
}

// CachedAccounts returns the session's advisory account projection. A
// cache miss yields an empty slice, never an error; the projection is a
// UX convenience, not an authority.
func (a *Authflow) CachedAccounts(ctx context.Context, sessionID string) []model.Account {
	var accounts []model.Account
	if err := a.cache.Get(ctx, accountsKey(sessionID), &accounts); err != nil {
		logrus.WithField("session_id", sessionID).Warnf("failed to read cached accounts: %v", err)
		return nil
	}
	return accounts
}

// cachedAccount finds one account in the session projection.
func (a *Authflow) cachedAccount(ctx context.Context, sessionID, accountID string) *model.Account {
	for _, acc := range a.CachedAccounts(ctx, sessionID) {
		if acc.ID == accountID {
			return &acc
		}
	}
	return nil
}

// applyCommittedBalance overwrites one cached balance with the
// authoritative value from a commit receipt. This is the only write path
// into the projection besides a full refresh.
func (a *Authflow) applyCommittedBalance(ctx context.Context, sessionID, accountID string, receipt *ledger.TransferReceipt) {
	accounts := a.CachedAccounts(ctx, sessionID)
	for i := range accounts {
		if accounts[i].ID == accountID {
			accounts[i].Balance = receipt.FromAccountBalance
		}
	}
	if len(accounts) == 0 {
		return
	}
	if err := a.cache.Set(ctx, accountsKey(sessionID), accounts, accountsCacheTTL); err != nil {
		logrus.WithField("session_id", sessionID).Warnf("failed to update cached balance: %v", err)
	}
}

// classifyOutcome turns a ledger failure into its structured
// classification. Transport errors carry no backend message and fall
// through as Unknown.
func classifyOutcome(err error) classify.Classification {
	var apiErr *ledger.APIError
	if errors.As(err, &apiErr) {
		return classify.Classify(apiErr.Message, apiErr.Status)
	}
	return classify.Classification{
		Kind:         classify.KindUnknown,
		AttemptsLeft: classify.AttemptsUnknown,
		Detail:       err.Error(),
	}
}
