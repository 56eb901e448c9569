package auditlog

import (
	"context"
	"testing"
)

type fakeRepository struct {
	entries []Entry
}

func (f *fakeRepository) Insert(_ context.Context, entry Entry) error {
	f.entries = append(f.entries, entry)
	return nil
}

func TestRecord_RequiresActionAndActor(t *testing.T) {
	repo := &fakeRepository{}
	svc := NewService(repo)

	if err := svc.Record(context.Background(), Entry{Actor: Actor{AdminID: "adm-1"}}); err == nil {
		t.Fatal("expected error for missing action")
	}
	if err := svc.Record(context.Background(), Entry{Action: ActionSearch}); err == nil {
		t.Fatal("expected error for missing actor")
	}
	if len(repo.entries) != 0 {
		t.Fatalf("invalid entries reached the repository: %d", len(repo.entries))
	}
}

func TestRecord_PassesEntryThrough(t *testing.T) {
	repo := &fakeRepository{}
	svc := NewService(repo)

	term := "dana"
	entry := Entry{
		Actor:      Actor{AdminID: "adm-1", AdminName: "Root Admin", IP: "10.0.0.1"},
		Action:     ActionSearch,
		SearchTerm: &term,
	}
	if err := svc.Record(context.Background(), entry); err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(repo.entries) != 1 || repo.entries[0].Actor != entry.Actor || *repo.entries[0].SearchTerm != "dana" {
		t.Fatalf("unexpected stored entry: %+v", repo.entries)
	}
}
