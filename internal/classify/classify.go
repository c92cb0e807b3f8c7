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

// Package classify maps free-text failure messages from the banking core
// into a structured error taxonomy. All backend message matching lives
// here; call sites never inspect raw message text themselves.
package classify

import (
	"regexp"
	"strconv"
	"strings"
)

type Kind string

const (
	KindInvalidPin          Kind = "INVALID_PIN"
	KindPinNotSet           Kind = "PIN_NOT_SET"
	KindNoCardFound         Kind = "NO_CARD_FOUND"
	KindCardBlocked         Kind = "CARD_BLOCKED"
	KindTooManyAttempts     Kind = "TOO_MANY_ATTEMPTS"
	KindBelowMinimumAmount  Kind = "BELOW_MINIMUM_AMOUNT"
	KindInsufficientBalance Kind = "INSUFFICIENT_BALANCE"
	KindValidationError     Kind = "VALIDATION_ERROR"
	KindUnknown             Kind = "UNKNOWN"
)

// AttemptsUnknown marks a classification whose message carried no
// attempts-left count. The server is authoritative for the lockout policy;
// the client only reflects the count it is told.
const AttemptsUnknown = -1

// Classification is the structured outcome of classifying one raw failure.
type Classification struct {
	Kind         Kind
	AttemptsLeft int
	Detail       string
}

// RetryableInPlace reports whether the flow may retry the second factor
// without leaving the current attempt. Only a wrong PIN qualifies; every
// other kind requires restarting the flow or resolving the condition
// elsewhere (setting a PIN, unblocking the card).
func (c Classification) RetryableInPlace() bool {
	return c.Kind == KindInvalidPin
}

var attemptsLeftPattern = regexp.MustCompile(`(\d+)\s*attempts?\s*(?:left|remaining)`)

// Classify maps a raw backend message and HTTP status to exactly one
// Classification. Matching is ordered most-specific-first so a message
// mentioning both an attempt count and a block resolves deterministically.
// The function is pure; it is exercised against a fixture table of real
// backend messages in the tests.
func Classify(rawMessage string, httpStatus int) Classification {
	message := strings.ToLower(strings.TrimSpace(rawMessage))

	switch {
	// An explicit attempts-left count always means a retryable wrong PIN,
	// even when the message also warns about an upcoming block.
	case attemptsLeftPattern.MatchString(message):
		return Classification{Kind: KindInvalidPin, AttemptsLeft: parseAttemptsLeft(message), Detail: rawMessage}

	case contains(message, "too many", "attempt"),
		contains(message, "maximum", "attempt"),
		contains(message, "max", "attempts exceeded"):
		return Classification{Kind: KindTooManyAttempts, AttemptsLeft: AttemptsUnknown, Detail: rawMessage}

	case contains(message, "blocked"):
		return Classification{Kind: KindCardBlocked, AttemptsLeft: AttemptsUnknown, Detail: rawMessage}

	case contains(message, "pin not set"),
		contains(message, "pin has not been set"),
		contains(message, "set your pin"):
		return Classification{Kind: KindPinNotSet, AttemptsLeft: AttemptsUnknown, Detail: rawMessage}

	case contains(message, "no card"),
		contains(message, "card not found"):
		return Classification{Kind: KindNoCardFound, AttemptsLeft: AttemptsUnknown, Detail: rawMessage}

	case contains(message, "minimum", "amount"):
		return Classification{Kind: KindBelowMinimumAmount, AttemptsLeft: AttemptsUnknown, Detail: rawMessage}

	case contains(message, "insufficient"):
		return Classification{Kind: KindInsufficientBalance, AttemptsLeft: AttemptsUnknown, Detail: rawMessage}

	case contains(message, "invalid pin"),
		contains(message, "incorrect pin"),
		contains(message, "wrong pin"):
		return Classification{Kind: KindInvalidPin, AttemptsLeft: parseAttemptsLeft(message), Detail: rawMessage}

	case httpStatus == 400 || httpStatus == 422,
		contains(message, "validation"),
		contains(message, "invalid"):
		return Classification{Kind: KindValidationError, AttemptsLeft: AttemptsUnknown, Detail: rawMessage}
	}

	return Classification{Kind: KindUnknown, AttemptsLeft: AttemptsUnknown, Detail: rawMessage}
}

// contains reports whether message contains every needle, in any position.
func contains(message string, needles ...string) bool {
	for _, n := range needles {
		if !strings.Contains(message, n) {
			return false
		}
	}
	return true
}

func parseAttemptsLeft(message string) int {
	m := attemptsLeftPattern.FindStringSubmatch(message)
	if m == nil {
		return AttemptsUnknown
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return AttemptsUnknown
	}
	return n
}
