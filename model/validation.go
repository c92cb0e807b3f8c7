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
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"
)

// TransferForm is the raw transfer form as entered by the user. Amount is
// kept as a string until validation so a non-numeric entry surfaces as a
// field error rather than a bind failure.
type TransferForm struct {
	FromAccountID   string `json:"from_account_id"`
	ToAccountNumber string `json:"to_account_number"`
	Amount          string `json:"amount"`
	Remarks         string `json:"remarks"`
}

func amountValidation(value interface{}) error {
	raw, ok := value.(string)
	if !ok {
		return errors.New("invalid type for amount")
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return errors.New("amount must be a number")
	}
	if !amount.IsPositive() {
		return errors.New("amount must be greater than zero")
	}
	if amount.Exponent() < -2 {
		return errors.New("amount supports at most 2 decimal places")
	}
	if amount.LessThan(MinTransferAmount) {
		return errors.New("minimum transfer amount is 100")
	}
	return nil
}

// ValidateTransferForm applies the local validation rules. The returned
// error is a validation.Errors map keyed by json field name, suitable for
// per-field rendering. A passing form is guaranteed to convert cleanly via
// ToTransferRequest.
func (f *TransferForm) ValidateTransferForm() error {
	return validation.ValidateStruct(f,
		validation.Field(&f.FromAccountID, validation.Required),
		validation.Field(&f.ToAccountNumber, validation.Required,
			validation.Match(AccountNumberPattern).Error("account number must be 4 uppercase letters followed by 12 digits")),
		validation.Field(&f.Amount, validation.Required, validation.By(amountValidation)),
	)
}

// ToTransferRequest converts a validated form into an immutable snapshot.
func (f *TransferForm) ToTransferRequest() (TransferRequest, error) {
	amount, err := decimal.NewFromString(f.Amount)
	if err != nil {
		return TransferRequest{}, err
	}
	return TransferRequest{
		FromAccountID:   f.FromAccountID,
		ToAccountNumber: f.ToAccountNumber,
		Amount:          amount,
		Remarks:         f.Remarks,
	}, nil
}
