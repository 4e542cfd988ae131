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
	"context"
	"fmt"

	"github.com/tomoncle/quarry/database"
	"github.com/uptrace/bun"
)

// TxFunc is the body of a transactional scope. tx is the transaction handle;
// bind repositories to it with WithTx.
type TxFunc func(ctx context.Context, tx bun.IDB) error

// RunInTx runs fn inside a single transaction on db. If fn returns an error
// or panics the transaction is rolled back and a TransactionFailure fault
// wrapping the cause is returned; otherwise it is committed.
func RunInTx(ctx context.Context, db bun.IDB, fn TxFunc) error {
	if db == nil {
		return txFault(errNoDatabase)
	}
	err := db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v", p)
			}
		}()
		return fn(ctx, &tx)
	})
	if err != nil {
		return txFault(err)
	}
	return nil
}

// Operation is RunInTx for a body that produces a value. On failure the zero
// value is returned with the fault.
func Operation[R any](ctx context.Context, db bun.IDB, fn func(ctx context.Context, tx bun.IDB) (R, error)) (R, error) {
	var out R
	err := RunInTx(ctx, db, func(ctx context.Context, tx bun.IDB) error {
		var err error
		out, err = fn(ctx, tx)
		return err
	})
	if err != nil {
		var zero R
		return zero, err
	}
	return out, nil
}

func txFault(err error) *Fault {
	database.GetLogger().Error("transaction rolled back", "error", err)
	return &Fault{Kind: TransactionFailure, Verb: "running", Entity: "transaction", Err: err}
}
