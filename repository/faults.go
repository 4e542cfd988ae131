/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/tomoncle/quarry/database"
	"github.com/tomoncle/quarry/query"
	"github.com/tomoncle/quarry/types"
)

// FaultKind classifies data-access failures.
type FaultKind int

const (
	GenericStore FaultKind = iota
	NotFound
	InvalidIdentifier
	ConstraintViolation
	TransactionFailure
)

var _ types.BaseEnum = GenericStore

var faultKindNames = [...]string{"generic_store", "not_found", "invalid_identifier", "constraint_violation", "transaction_failure"}

func (k FaultKind) IsValid() bool { return k >= GenericStore && k <= TransactionFailure }

func (k FaultKind) Number() int {
	if !k.IsValid() {
		return types.IllegalValue
	}
	return int(k)
}

func (k FaultKind) Name() string {
	if !k.IsValid() {
		return types.IllegalName
	}
	return faultKindNames[k]
}

func (k FaultKind) String() string { return k.Name() }

func (k FaultKind) Desc() string {
	switch k {
	case GenericStore:
		return "storage failure"
	case NotFound:
		return "lookup returned no row"
	case InvalidIdentifier:
		return "identifier did not resolve to a value"
	case ConstraintViolation:
		return "uniqueness or referential conflict"
	case TransactionFailure:
		return "transaction aborted"
	default:
		return types.IllegalDesc
	}
}

// Symbol maps the kind onto the envelope code table.
func (k FaultKind) Symbol() types.CodeSymbol {
	switch k {
	case NotFound:
		return types.NotFound
	case InvalidIdentifier:
		return types.BadEntry
	default:
		return types.ServerError
	}
}

// Fault is the error carried by failed envelopes and transactions.
type Fault struct {
	Kind   FaultKind
	Verb   string // operation, e.g. "getting"
	Entity string
	Err    error
}

// Sentinels for errors.Is; they match any Fault of the same kind.
var (
	ErrNotFound            = &Fault{Kind: NotFound}
	ErrInvalidIdentifier   = &Fault{Kind: InvalidIdentifier}
	ErrConstraintViolation = &Fault{Kind: ConstraintViolation}
	ErrTransactionFailure  = &Fault{Kind: TransactionFailure}
	ErrGenericStore        = &Fault{Kind: GenericStore}
)

func (f *Fault) Error() string {
	switch {
	case f.Kind == TransactionFailure:
		return "operation failed"
	case f.Kind == NotFound && f.Entity != "":
		return f.Entity + " not found"
	case f.Verb != "" && f.Err != nil:
		return fmt.Sprintf("Error %s %s: %v", f.Verb, f.Entity, f.Err)
	case f.Err != nil:
		return f.Err.Error()
	default:
		return f.Kind.Desc()
	}
}

func (f *Fault) Unwrap() error { return f.Err }

// Is matches faults by kind so that errors.Is(err, ErrNotFound) works for
// every not-found fault.
func (f *Fault) Is(target error) bool {
	t, ok := target.(*Fault)
	return ok && t.Kind == f.Kind
}

func IsNotFound(err error) bool            { return errors.Is(err, ErrNotFound) }
func IsInvalidIdentifier(err error) bool   { return errors.Is(err, ErrInvalidIdentifier) }
func IsConstraintViolation(err error) bool { return errors.Is(err, ErrConstraintViolation) }
func IsTransactionFailure(err error) bool  { return errors.Is(err, ErrTransactionFailure) }

// classify wraps err into a Fault for the given operation. An existing Fault
// is kept as is.
func classify(verb, entity string, err error) *Fault {
	var f *Fault
	if errors.As(err, &f) {
		return f
	}
	kind := GenericStore
	switch {
	case errors.Is(err, sql.ErrNoRows):
		kind = NotFound
	case errors.Is(err, query.ErrInvalidIdentifier):
		kind = InvalidIdentifier
	default:
		if ok, class := database.IsSqlError(err); ok && class.IsConstraintViolation() {
			kind = ConstraintViolation
		}
	}
	return &Fault{Kind: kind, Verb: verb, Entity: entity, Err: err}
}
