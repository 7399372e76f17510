package audit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func anyArgs(n int) []interface{} {
	args := make([]interface{}, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestStore_AppendFillsIdentity(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec("INSERT INTO buyer_history").
		WithArgs(anyArgs(5)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	entry := &Entry{
		BuyerID:   "b-1",
		ChangedBy: "u-1",
		Diff:      json.RawMessage(`{"status":{"from":"New","to":"Qualified"}}`),
	}
	store := NewStore(mock)
	if err := store.Append(context.Background(), nil, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.ID == "" || entry.ChangedAt.IsZero() {
		t.Errorf("append should fill id and timestamp: %+v", entry)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStore_AppendMany(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec("INSERT INTO buyer_history").WithArgs(anyArgs(5)...).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO buyer_history").WithArgs(anyArgs(5)...).WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := NewStore(mock)
	entries := []*Entry{
		{BuyerID: "b-1", ChangedBy: "u-1", Diff: ImportedDiff()},
		{BuyerID: "b-2", ChangedBy: "u-1", Diff: ImportedDiff()},
	}
	if err := store.AppendMany(context.Background(), nil, entries); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStore_ListRecent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"id", "buyer_id", "changed_by", "changed_at", "diff"}).
		AddRow("h-2", "b-1", "u-1", now, json.RawMessage(`{"status":{"from":"New","to":"Qualified"}}`)).
		AddRow("h-1", "b-1", "u-1", now.Add(-time.Hour), json.RawMessage(`{"action":"created","data":{}}`))
	mock.ExpectQuery("FROM buyer_history").WithArgs("b-1", 5).WillReturnRows(rows)

	store := NewStore(mock)
	entries, err := store.ListRecent(context.Background(), "b-1", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != "h-2" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreatedDiffShape(t *testing.T) {
	payload := CreatedDiff(map[string]string{"fullName": "Rajesh Kumar"})
	var decoded struct {
		Action string            `json:"action"`
		Data   map[string]string `json:"data"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Action != ActionCreated || decoded.Data["fullName"] != "Rajesh Kumar" {
		t.Errorf("unexpected payload: %s", payload)
	}
}
