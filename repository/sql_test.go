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
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/tomoncle/quarry/query"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/schema"
)

func newMockDB(t *testing.T, dialect schema.Dialect) (*bun.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqldb, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	db := bun.NewDB(sqldb, dialect)
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("expectations: %v", err)
		}
		_ = db.Close()
	})
	return db, mock
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "email", "age"})
}

func TestSelectSQLShape(t *testing.T) {
	db, mock := newMockDB(t, pgdialect.New())
	repo := NewRepository[user](db, WithLogger(newRecordLogger()))

	want := `FROM "users" AS "u" WHERE (EXISTS (SELECT 1 FROM "memberships" WHERE "memberships"."user_id" = "u"."id" AND "memberships"."company_id" = 1)) ` +
		`AND ("u"."age" > 5) AND ("u"."name" IN ('a', 'b')) ORDER BY "u"."name" DESC`
	mock.ExpectQuery(regexp.QuoteMeta(want)).WillReturnRows(userRows())

	env := repo.Get(context.Background(), query.Spec{
		Filter: query.NewFilter().
			Eq("companyId", 1).
			Where("age", query.Gt(5)).
			Where("name", query.In("a", "b")),
		Order: query.Order{query.Desc("name")},
	})
	if env.Failed() || len(env.Output) != 0 {
		t.Fatalf("Get = %+v", env)
	}
}

func TestSelectNullAndEmptySets(t *testing.T) {
	db, mock := newMockDB(t, pgdialect.New())
	repo := NewRepository[user](db, WithLogger(newRecordLogger()))

	want := `WHERE ("u"."email" IS NULL) AND ("u"."name" IS NOT NULL) AND (1 = 0) AND (1 = 1)`
	mock.ExpectQuery(regexp.QuoteMeta(want)).WillReturnRows(userRows())

	env := repo.Get(context.Background(), query.Spec{
		Filter: query.NewFilter().
			Eq("email", nil).
			Where("name", query.Neq(nil)).
			Where("age", query.In(), query.NotIn()),
	})
	if env.Failed() {
		t.Fatalf("Get: %v", env.Error)
	}
}

func TestSelectConfiguredMembership(t *testing.T) {
	db, mock := newMockDB(t, pgdialect.New())
	repo := NewRepository[user](db,
		WithLogger(newRecordLogger()),
		WithCompiler(&query.Compiler{MembershipRelation: "seats"}),
		WithMembership(query.MembershipJoin{Table: "seats", ForeignKey: "member_id"}))

	want := `WHERE (EXISTS (SELECT 1 FROM "seats" WHERE "seats"."member_id" = "u"."id" AND "seats"."role_id" = 7))`
	mock.ExpectQuery(regexp.QuoteMeta(want)).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	env := repo.Count(context.Background(), query.NewFilter().Eq("roleId", 7))
	if env.Failed() || env.Output != 4 {
		t.Fatalf("Count = %+v", env)
	}
}

func TestDeleteSelectsThenDeletes(t *testing.T) {
	db, mock := newMockDB(t, pgdialect.New())
	repo := NewRepository[user](db, WithLogger(newRecordLogger()))
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE ("u"."id" = '` + id.String() + `') LIMIT 1`)).
		WillReturnRows(userRows().AddRow(id.String(), "alice", "alice@example.com", 30))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "users"`) + ".*" + regexp.QuoteMeta(`WHERE ("id" = '`+id.String()+`')`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	env := repo.Delete(context.Background(), id)
	if env.Failed() || env.Output.Name != "alice" || env.Output.ID != id {
		t.Fatalf("Delete = %+v", env)
	}
}

func TestInvalidIdentifierDoesNoIO(t *testing.T) {
	db, _ := newMockDB(t, pgdialect.New())
	repo := NewRepository[user](db, WithLogger(newRecordLogger()))
	if env := repo.Delete(context.Background(), nil); !IsInvalidIdentifier(env.Error) {
		t.Fatalf("Delete(nil) = %+v", env)
	}
	if env := repo.Update(context.Background(), query.Record{}, &user{}); !IsInvalidIdentifier(env.Error) {
		t.Fatalf("Update(empty) = %+v", env)
	}
}

func TestUpsertSQLPerDialect(t *testing.T) {
	tests := []struct {
		name    string
		dialect schema.Dialect
		want    string
	}{
		{"postgres", pgdialect.New(), `ON CONFLICT ("email") DO UPDATE SET "name" = EXCLUDED."name", "age" = EXCLUDED."age"`},
		{"mysql", mysqldialect.New(), "ON DUPLICATE KEY UPDATE `name` = VALUES(`name`), `age` = VALUES(`age`)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t, tt.dialect)
			repo := NewRepository[user](db, WithLogger(newRecordLogger()))
			mock.ExpectExec(regexp.QuoteMeta(tt.want)).WillReturnResult(sqlmock.NewResult(0, 1))

			u := &user{ID: uuid.New(), Name: "alice", Email: "alice@example.com", Age: 30}
			env := repo.Upsert(context.Background(), []string{"name", "age"}, []string{"email"}, u)
			if env.Failed() {
				t.Fatalf("Upsert: %v", env.Error)
			}
		})
	}
}
