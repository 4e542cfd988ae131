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
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/tomoncle/quarry/database"
	"github.com/tomoncle/quarry/query"
	"github.com/tomoncle/quarry/types"
	"github.com/uptrace/bun"
)

type user struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID          uuid.UUID     `bun:"id,pk,type:varchar(36)" json:"id"`
	Name        string        `bun:"name,notnull" json:"name"`
	Email       string        `bun:"email,notnull,unique" json:"email"`
	Age         int           `bun:"age" json:"age"`
	Memberships []*membership `bun:"rel:has-many,join:id=user_id" json:"memberships,omitempty"`
}

type membership struct {
	bun.BaseModel `bun:"table:memberships,alias:m"`

	ID        int64     `bun:"id,pk,autoincrement"`
	UserID    uuid.UUID `bun:"user_id,type:varchar(36)"`
	RoleID    int64     `bun:"role_id"`
	CompanyID int64     `bun:"company_id"`
	Role      *role     `bun:"rel:belongs-to,join:role_id=id"`
}

type role struct {
	bun.BaseModel `bun:"table:roles"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Name string `bun:"name"`
}

// recordLogger keeps the messages logged per level.
type recordLogger struct {
	mu   sync.Mutex
	logs map[string][]string
}

func newRecordLogger() *recordLogger { return &recordLogger{logs: map[string][]string{}} }

func (l *recordLogger) add(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logs[level] = append(l.logs[level], msg)
}

func (l *recordLogger) lines(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.logs[level]...)
}

func (l *recordLogger) SetLevel(database.LogLevel)         {}
func (l *recordLogger) Debug(msg string, _ ...interface{}) { l.add("debug", msg) }
func (l *recordLogger) Info(msg string, _ ...interface{})  { l.add("info", msg) }
func (l *recordLogger) Warn(msg string, _ ...interface{})  { l.add("warn", msg) }
func (l *recordLogger) Error(msg string, _ ...interface{}) { l.add("error", msg) }

func openTestDB(t *testing.T) *bun.DB {
	t.Helper()
	cfg := database.DefaultConnectionConfig()
	cfg.Type = database.TypeSQLite
	cfg.DBName = "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	cfg.HealthCheckInterval = 0

	m := database.NewDatabaseManager(cfg)
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = m.Disconnect() })

	db := m.GetDB()
	ctx := context.Background()
	for _, model := range []interface{}{(*user)(nil), (*membership)(nil), (*role)(nil)} {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return db
}

type fixture struct {
	db    *bun.DB
	repo  Repository[user]
	log   *recordLogger
	alice *user
	bob   *user
	carol *user
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := openTestDB(t)
	log := newRecordLogger()
	f := &fixture{
		db:    db,
		repo:  NewRepository[user](db, WithLogger(log)),
		log:   log,
		alice: &user{ID: uuid.New(), Name: "alice", Email: "alice@example.com", Age: 30},
		bob:   &user{ID: uuid.New(), Name: "bob", Email: "bob@example.com", Age: 25},
		carol: &user{ID: uuid.New(), Name: "carol", Email: "carol@example.com", Age: 41},
	}
	ctx := context.Background()
	if env := f.repo.CreateMany(ctx, f.alice, f.bob, f.carol); env.Failed() {
		t.Fatalf("seed users: %v", env.Error)
	}
	admin := &role{Name: "admin"}
	if _, err := db.NewInsert().Model(admin).Exec(ctx); err != nil {
		t.Fatalf("seed role: %v", err)
	}
	members := []*membership{
		{UserID: f.alice.ID, RoleID: admin.ID, CompanyID: 1},
		{UserID: f.bob.ID, RoleID: admin.ID, CompanyID: 2},
		{UserID: f.carol.ID, RoleID: admin.ID + 1, CompanyID: 1},
	}
	if _, err := db.NewInsert().Model(&members).Exec(ctx); err != nil {
		t.Fatalf("seed memberships: %v", err)
	}
	return f
}

func names(users []*user) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.Name)
	}
	return out
}

func TestGetOneVersusGetOnEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	filter := query.NewFilter().Eq("email", "nobody@example.com")

	one := f.repo.GetOne(ctx, filter, query.Include{})
	if one.Ok() || one.Status != types.StatusError {
		t.Fatalf("GetOne on no match = %+v", one)
	}
	if one.Code != http.StatusNotFound || one.Message != "user not found" || !IsNotFound(one.Error) {
		t.Errorf("GetOne failure = code %d, message %q, err %v", one.Code, one.Message, one.Error)
	}
	if got := f.log.lines("warn"); len(got) != 1 {
		t.Errorf("warn lines = %q", got)
	}

	many := f.repo.Get(ctx, query.Spec{Filter: filter})
	if many.Failed() || many.Code != http.StatusOK {
		t.Fatalf("Get on no match = %+v", many)
	}
	if many.Output == nil || len(many.Output) != 0 {
		t.Errorf("Get output = %v, want an empty list", many.Output)
	}
}

func TestGetOneWithInclude(t *testing.T) {
	f := newFixture(t)
	env := f.repo.GetOne(context.Background(),
		query.NewFilter().Eq("email", "alice@example.com"),
		query.NewInclude().Nested("memberships", query.NewInclude().All("role")))
	if env.Failed() {
		t.Fatalf("GetOne: %v", env.Error)
	}
	got := env.Output
	if got.ID != f.alice.ID || len(got.Memberships) != 1 {
		t.Fatalf("output = %+v", got)
	}
	if m := got.Memberships[0]; m.CompanyID != 1 || m.Role == nil || m.Role.Name != "admin" {
		t.Errorf("membership = %+v", m)
	}
}

func TestGetWithSelectProjection(t *testing.T) {
	f := newFixture(t)
	env := f.repo.Get(context.Background(), query.Spec{
		Filter:  query.NewFilter().Eq("name", "bob"),
		Include: query.NewInclude().Select("memberships", "companyId"),
	})
	if env.Failed() || len(env.Output) != 1 {
		t.Fatalf("Get = %+v", env)
	}
	ms := env.Output[0].Memberships
	if len(ms) != 1 || ms[0].CompanyID != 2 || ms[0].RoleID != 0 {
		t.Errorf("projected memberships = %+v", ms)
	}
}

func TestGetMembershipHoisting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter query.Filter
		want   []string
	}{
		{"company", query.NewFilter().Eq("companyId", 1), []string{"alice", "carol"}},
		{"company and role", query.NewFilter().Eq("companyId", 1).Eq("roleId", 1), []string{"alice"}},
		{"role with other fields", query.NewFilter().Eq("roleId", 1).Where("age", query.Lt(28)), []string{"bob"}},
		{"no match", query.NewFilter().Eq("companyId", 3), []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := f.repo.Get(ctx, query.Spec{Filter: tt.filter, Order: query.Order{query.Asc("name")}})
			if env.Failed() {
				t.Fatalf("Get: %v", env.Error)
			}
			if diff := cmp.Diff(tt.want, names(env.Output)); diff != "" {
				t.Errorf("names (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGetOperatorsAndOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		spec query.Spec
		want []string
	}{
		{
			name: "range",
			spec: query.Spec{
				Filter: query.NewFilter().Where("age", query.Gte(25), query.Lt(41)),
				Order:  query.Order{query.Desc("name")},
			},
			want: []string{"bob", "alice"},
		},
		{
			name: "in",
			spec: query.Spec{
				Filter: query.NewFilter().Where("name", query.In("alice", "carol")),
				Order:  query.Order{query.Desc("age")},
			},
			want: []string{"carol", "alice"},
		},
		{
			name: "not in and not equal",
			spec: query.Spec{
				Filter: query.NewFilter().Where("name", query.NotIn("alice"), query.Neq("bob")),
			},
			want: []string{"carol"},
		},
		{
			name: "empty in",
			spec: query.Spec{Filter: query.NewFilter().Where("name", query.In())},
			want: []string{},
		},
		{
			name: "eq wins",
			spec: query.Spec{Filter: query.NewFilter().Where("age", query.Gt(100), query.Eq(25))},
			want: []string{"bob"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := f.repo.Get(ctx, tt.spec)
			if env.Failed() {
				t.Fatalf("Get: %v", env.Error)
			}
			if diff := cmp.Diff(tt.want, names(env.Output)); diff != "" {
				t.Errorf("names (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGetUnknownField(t *testing.T) {
	f := newFixture(t)
	env := f.repo.Get(context.Background(), query.Spec{Filter: query.NewFilter().Eq("shoeSize", 44)})
	if env.Ok() || env.Code != http.StatusInternalServerError {
		t.Fatalf("env = %+v", env)
	}
	if !strings.HasPrefix(env.Message, "Error getting user: ") {
		t.Errorf("message = %q", env.Message)
	}
	if len(f.log.lines("error")) != 1 {
		t.Errorf("error lines = %q", f.log.lines("error"))
	}
}

type address struct {
	City    string `json:"city"`
	Country string `json:"country"`
}

type resident struct {
	bun.BaseModel `bun:"table:residents"`

	ID   int64   `bun:"id,pk,autoincrement"`
	Name string  `bun:"full_name" json:"name"`
	Home address `bun:"embed:home_"`
}

func TestGetEmbeddedColumns(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if _, err := db.NewCreateTable().Model((*resident)(nil)).IfNotExists().Exec(ctx); err != nil {
		t.Fatalf("create table: %v", err)
	}
	repo := NewRepository[resident](db, WithLogger(newRecordLogger()))
	if env := repo.CreateMany(ctx,
		&resident{Name: "ann", Home: address{City: "Paris", Country: "FR"}},
		&resident{Name: "ben", Home: address{City: "Lyon", Country: "FR"}},
	); env.Failed() {
		t.Fatalf("seed: %v", env.Error)
	}

	for _, field := range []string{"home_city", "homeCity"} {
		env := repo.Get(ctx, query.Spec{Filter: query.NewFilter().Eq(field, "Paris")})
		if env.Failed() || len(env.Output) != 1 || env.Output[0].Name != "ann" {
			t.Errorf("%s: env = %+v", field, env)
		}
	}
	env := repo.Get(ctx, query.Spec{Filter: query.NewFilter().Eq("name", "ben")})
	if env.Failed() || len(env.Output) != 1 || env.Output[0].Home.City != "Lyon" {
		t.Errorf("json alias: env = %+v", env)
	}
	if env := repo.Get(ctx, query.Spec{Filter: query.NewFilter().Eq("home", "Paris")}); env.Ok() {
		t.Errorf("embedded struct name resolved as a column: %+v", env)
	}
}

func TestCountAndPage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	count := f.repo.Count(ctx, query.NewFilter().Where("age", query.Gt(26)))
	if count.Failed() || count.Output != 2 {
		t.Fatalf("Count = %+v", count)
	}

	page := f.repo.Page(ctx, query.Spec{Order: query.Order{query.Asc("age")}}, types.NewPageRequest(2, 2))
	if page.Failed() {
		t.Fatalf("Page: %v", page.Error)
	}
	p := page.Output
	if p.Total != 3 || p.Page != 2 || p.PageSize != 2 || p.Pages() != 2 {
		t.Errorf("pagination = %+v", p)
	}
	if diff := cmp.Diff([]string{"carol"}, names(p.Items)); diff != "" {
		t.Errorf("items (-want +got):\n%s", diff)
	}

	empty := f.repo.Page(ctx, query.Spec{Filter: query.NewFilter().Eq("name", "dave")}, nil)
	if empty.Failed() || empty.Output.Total != 0 || len(empty.Output.Items) != 0 {
		t.Errorf("empty page = %+v", empty)
	}
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dave := &user{ID: uuid.New(), Name: "dave", Email: "dave@example.com"}
	env := f.repo.Create(ctx, dave)
	if env.Failed() || env.Code != http.StatusCreated || env.Output != dave {
		t.Fatalf("Create = %+v", env)
	}

	dup := f.repo.Create(ctx, &user{ID: uuid.New(), Name: "again", Email: "dave@example.com"})
	if dup.Ok() || !IsConstraintViolation(dup.Error) || dup.Code != http.StatusInternalServerError {
		t.Fatalf("duplicate Create = %+v", dup)
	}
	if !strings.HasPrefix(dup.Message, "Error creating user: ") {
		t.Errorf("message = %q", dup.Message)
	}

	if env := f.repo.Create(ctx, nil); env.Ok() {
		t.Error("Create(nil) succeeded")
	}
	if env := f.repo.CreateMany(ctx); env.Failed() || len(env.Output) != 0 {
		t.Errorf("CreateMany() = %+v", env)
	}
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	env := f.repo.Update(ctx, f.bob.ID, &user{Name: "robert"})
	if env.Failed() || env.Code != http.StatusNoContent {
		t.Fatalf("Update = %+v", env)
	}
	if got := env.Output; got.Name != "robert" || got.Email != "bob@example.com" || got.Age != 25 {
		t.Errorf("updated row = %+v", got)
	}

	env = f.repo.Update(ctx, query.By("email", "carol@example.com"), &user{Name: "carol", Age: 0}, "age")
	if env.Failed() || env.Output.Age != 0 {
		t.Fatalf("Update with columns = %+v", env)
	}

	missing := f.repo.Update(ctx, uuid.New(), &user{Name: "ghost"})
	if missing.Ok() || missing.Code != http.StatusNotFound || !IsNotFound(missing.Error) {
		t.Errorf("Update missing = %+v", missing)
	}
}

func TestIdentifierGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, id := range []any{nil, query.Record{}, map[string]any{}, []int{1}, query.By("shoeSize", 44)} {
		up := f.repo.Update(ctx, id, &user{Name: "x"})
		if up.Ok() || up.Code != http.StatusBadRequest || !IsInvalidIdentifier(up.Error) {
			t.Errorf("Update(%v) = %+v", id, up)
		}
		del := f.repo.Delete(ctx, id)
		if del.Ok() || del.Code != http.StatusBadRequest || !IsInvalidIdentifier(del.Error) {
			t.Errorf("Delete(%v) = %+v", id, del)
		}
	}
	if n := f.repo.Count(ctx, query.Filter{}); n.Output != 3 {
		t.Errorf("rows after rejected writes = %d", n.Output)
	}
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	env := f.repo.Delete(ctx, map[string]any{"email": "alice@example.com"})
	if env.Failed() || env.Code != http.StatusOK || env.Output.ID != f.alice.ID {
		t.Fatalf("Delete = %+v", env)
	}
	again := f.repo.Delete(ctx, f.alice.ID)
	if again.Ok() || again.Code != http.StatusNotFound || again.Message != "user not found" {
		t.Errorf("second Delete = %+v", again)
	}
}

func TestUpsert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dave := &user{ID: uuid.New(), Name: "dave", Email: "dave@example.com", Age: 20}
	renamed := &user{ID: f.alice.ID, Name: "alicia", Email: "alicia@example.com", Age: 31}
	env := f.repo.Upsert(ctx, []string{"name", "age"}, nil, renamed, dave)
	if env.Failed() || len(env.Output) != 2 {
		t.Fatalf("Upsert = %+v", env)
	}
	got := f.repo.GetOne(ctx, query.NewFilter().Eq("id", f.alice.ID), query.Include{})
	if got.Failed() || got.Output.Name != "alicia" || got.Output.Age != 31 {
		t.Errorf("after upsert = %+v", got)
	}
	if n := f.repo.Count(ctx, query.Filter{}); n.Output != 4 {
		t.Errorf("count = %d", n.Output)
	}

	if env := f.repo.Upsert(ctx, nil, nil, dave); env.Ok() {
		t.Error("Upsert without fields succeeded")
	}
}

func TestNilDatabase(t *testing.T) {
	repo := NewRepository[user](nil, WithLogger(newRecordLogger()), WithEntityName("account"))
	env := repo.GetOne(context.Background(), query.Filter{}, query.Include{})
	if env.Ok() || env.Code != http.StatusInternalServerError {
		t.Fatalf("env = %+v", env)
	}
	if env.Message != "Error getting account: database not initialized" {
		t.Errorf("message = %q", env.Message)
	}
}
