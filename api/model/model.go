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

// Package model holds the request DTOs of the HTTP surface and their
// validation rules. Field-level transfer rules live in the domain model;
// these only gate request shape.
package model

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/netbankhq/authflow/model"
)

// StartSession opens a session for an authenticated customer.
type StartSession struct {
	CustomerID string `json:"customer_id"`
}

func (s *StartSession) ValidateStartSession() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.CustomerID, validation.Required),
	)
}

// SubmitTransfer carries the raw transfer form. Amount stays a string so
// a malformed entry surfaces as a field error, not a bind failure.
type SubmitTransfer struct {
	FromAccountID   string `json:"from_account_id"`
	ToAccountNumber string `json:"to_account_number"`
	Amount          string `json:"amount"`
	Remarks         string `json:"remarks"`
}

// ToTransferForm maps the DTO onto the domain form, which owns the
// actual field rules.
func (s *SubmitTransfer) ToTransferForm() model.TransferForm {
	return model.TransferForm{
		FromAccountID:   s.FromAccountID,
		ToAccountNumber: s.ToAccountNumber,
		Amount:          s.Amount,
		Remarks:         s.Remarks,
	}
}

// Key input actions accepted by a capture channel.
const (
	KeyActionType      = "type"
	KeyActionBackspace = "backspace"
	KeyActionPaste     = "paste"
)

// KeyInput is one keystroke (or paste) against a capture channel. The
// digits never appear in any response; the server echoes fill state only.
type KeyInput struct {
	Action  string `json:"action"`
	Char    string `json:"char,omitempty"`
	Payload string `json:"payload,omitempty"`
}

func (k *KeyInput) ValidateKeyInput() error {
	return validation.ValidateStruct(k,
		validation.Field(&k.Action, validation.Required,
			validation.In(KeyActionType, KeyActionBackspace, KeyActionPaste)),
		validation.Field(&k.Char, validation.When(k.Action == KeyActionType,
			validation.Required, validation.By(singleCharValidation))),
		validation.Field(&k.Payload, validation.When(k.Action == KeyActionPaste,
			validation.Required)),
	)
}

func singleCharValidation(value interface{}) error {
	s, ok := value.(string)
	if !ok || len(s) != 1 {
		return errors.New("char must be a single character")
	}
	return nil
}

// OpenVerification starts identity verification for an onboarding
// application.
type OpenVerification struct {
	ApplicationID string `json:"application_id"`
}

func (o *OpenVerification) ValidateOpenVerification() error {
	return validation.ValidateStruct(o,
		validation.Field(&o.ApplicationID, validation.Required),
	)
}
