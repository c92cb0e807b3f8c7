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
	"sync"

	"github.com/google/uuid"
	"github.com/netbankhq/authflow/alerts"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	// ErrSessionNotFound is returned when no session exists for the given id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrVerificationNotFound is returned when no verification flow exists
	// for the given application id.
	ErrVerificationNotFound = errors.New("verification flow not found")

	// ErrFlowActive is returned when a new transfer is started while a
	// previous one is still in a non-terminal state.
	ErrFlowActive = errors.New("a transfer is already in progress")
)

// Session scopes one authenticated customer: their alert queue, their
// cached account projection and at most one active transfer flow at a
// time.
type Session struct {
	mu      sync.Mutex
	service *Authflow

	id         string
	customerID string
	alerts     *alerts.Queue
	flow       *TransferFlow
}

func (s *Session) ID() string         { return s.id }
func (s *Session) CustomerID() string { return s.customerID }

// Alerts exposes the session's notification queue. All flow outcomes for
// this session surface here.
func (s *Session) Alerts() *alerts.Queue {
	return s.alerts
}

// StartTransfer begins a fresh transfer flow for the session. A previous
// flow must have reached a terminal state first; terminal flows are
// replaced silently.
func (s *Session) StartTransfer() (*TransferFlow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flow != nil && !s.flow.State().Terminal() {
		return nil, ErrFlowActive
	}
	s.flow = newTransferFlow(s.service, s.id, s.customerID, s.alerts)
	return s.flow, nil
}

// Transfer returns the session's current transfer flow, or nil.
func (s *Session) Transfer() *TransferFlow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flow
}

// Close tears the session down: cancels any non-terminal flow, stops the
// alert queue's timers and drops the cached account projection.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	flow := s.flow
	s.flow = nil
	s.mu.Unlock()

	if flow != nil && !flow.State().Terminal() {
		_ = flow.Cancel()
	}
	s.alerts.Close()
	if err := s.service.cache.Delete(ctx, accountsKey(s.id)); err != nil {
		logrus.WithField("session_id", s.id).Warnf("failed to drop cached accounts: %v", err)
	}
}

// sessionRegistry holds live sessions and onboarding verification flows.
// Sessions are keyed by their generated id, verifications by the
// application id the onboarding journey carries.
type sessionRegistry struct {
	mu            sync.RWMutex
	sessions      map[string]*Session
	verifications map[string]*VerificationFlow
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{
		sessions:      make(map[string]*Session),
		verifications: make(map[string]*VerificationFlow),
	}
}

// CreateSession registers a session for an authenticated customer and
// primes its account projection. A failed refresh still yields a usable
// session; the projection is advisory.
func (a *Authflow) CreateSession(ctx context.Context, customerID string) (*Session, error) {
	s := &Session{
		service:    a,
		id:         uuid.New().String(),
		customerID: customerID,
		alerts:     alerts.NewQueue(),
	}

	if _, err := a.RefreshAccounts(ctx, s.id, customerID); err != nil {
		logrus.WithField("customer_id", customerID).
			Warnf("failed to prime account projection: %v", err)
	}

	a.registry.mu.Lock()
	a.registry.sessions[s.id] = s
	a.registry.mu.Unlock()
	return s, nil
}

// GetSession looks up a live session.
func (a *Authflow) GetSession(sessionID string) (*Session, error) {
	a.registry.mu.RLock()
	defer a.registry.mu.RUnlock()
	s, ok := a.registry.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// CloseSession removes and tears down a session.
func (a *Authflow) CloseSession(ctx context.Context, sessionID string) error {
	a.registry.mu.Lock()
	s, ok := a.registry.sessions[sessionID]
	delete(a.registry.sessions, sessionID)
	a.registry.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.Close(ctx)
	return nil
}

// OpenVerification starts (or resumes) the identity verification flow
// for an onboarding application. Opening is idempotent while the
// existing flow is still live.
func (a *Authflow) OpenVerification(applicationID string) (*VerificationFlow, error) {
	a.registry.mu.Lock()
	defer a.registry.mu.Unlock()

	if f, ok := a.registry.verifications[applicationID]; ok && !f.State().Terminal() {
		return f, nil
	}
	f := newVerificationFlow(a, applicationID)
	if _, err := f.Open(); err != nil {
		return nil, err
	}
	a.registry.verifications[applicationID] = f
	return f, nil
}

// GetVerification looks up the verification flow for an application.
func (a *Authflow) GetVerification(applicationID string) (*VerificationFlow, error) {
	a.registry.mu.RLock()
	defer a.registry.mu.RUnlock()
	f, ok := a.registry.verifications[applicationID]
	if !ok {
		return nil, ErrVerificationNotFound
	}
	return f, nil
}

// DismissVerification removes a finished verification flow from the
// registry, cancelling it first if it is still live.
func (a *Authflow) DismissVerification(applicationID string) {
	a.registry.mu.Lock()
	f, ok := a.registry.verifications[applicationID]
	delete(a.registry.verifications, applicationID)
	a.registry.mu.Unlock()
	if ok && !f.State().Terminal() {
		_ = f.Cancel()
	}
}
