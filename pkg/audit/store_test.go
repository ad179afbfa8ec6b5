package audit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func testRecord(checkID, decision string) Record {
	return NewRecord(RecordParams{
		Stage:        "action",
		CheckID:      checkID,
		CandidateID:  "cand-" + checkID,
		Decision:     decision,
		Codes:        []string{"MANIPULATION"},
		ReasonCount:  1,
		OriginalText: "some candidate text for " + checkID,
	})
}

func TestStore_AppendBuildsChain(t *testing.T) {
	s := NewStore()

	e1, err := s.Append(testRecord("c1", "ALLOW"))
	if err != nil {
		t.Fatal(err)
	}
	e2, err := s.Append(testRecord("c2", "REJECT"))
	if err != nil {
		t.Fatal(err)
	}

	if e1.PreviousHash != "genesis" {
		t.Errorf("first entry must chain from genesis, got %q", e1.PreviousHash)
	}
	if e2.PreviousHash != e1.EntryHash {
		t.Error("second entry not chained to the first")
	}
	if e1.Sequence != 1 || e2.Sequence != 2 {
		t.Errorf("sequences wrong: %d, %d", e1.Sequence, e2.Sequence)
	}
	if !strings.HasPrefix(e1.EntryHash, "sha256:") {
		t.Errorf("hash format: %q", e1.EntryHash)
	}
	if e1.EntryID == "" || e1.EntryID == e2.EntryID {
		t.Error("entry IDs must be unique and non-empty")
	}
}

func TestStore_VerifyCleanChain(t *testing.T) {
	s := NewStore()
	for i := 0; i < 10; i++ {
		if _, err := s.Append(testRecord("c", "ALLOW")); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Verify(); err != nil {
		t.Fatalf("clean chain failed verification: %v", err)
	}
}

func TestStore_VerifyDetectsTampering(t *testing.T) {
	s := NewStore()
	for i := 0; i < 3; i++ {
		if _, err := s.Append(testRecord("c", "ALLOW")); err != nil {
			t.Fatal(err)
		}
	}

	s.entries[1].Record.Decision = "ALLOW_WITH_REPAIR"
	err := s.Verify()
	if !errors.Is(err, ErrChainBroken) {
		t.Fatalf("mutated record not detected: %v", err)
	}
}

func TestStore_VerifyDetectsBrokenLink(t *testing.T) {
	s := NewStore()
	for i := 0; i < 3; i++ {
		if _, err := s.Append(testRecord("c", "ALLOW")); err != nil {
			t.Fatal(err)
		}
	}

	s.entries[2].PreviousHash = "sha256:forged"
	if err := s.Verify(); !errors.Is(err, ErrChainBroken) {
		t.Fatalf("broken link not detected: %v", err)
	}
}

func TestStore_ListNewestFirst(t *testing.T) {
	s := NewStore()
	for _, id := range []string{"a", "b", "c"} {
		if _, err := s.Append(testRecord(id, "ALLOW")); err != nil {
			t.Fatal(err)
		}
	}

	got := s.List(2)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Record.CheckID != "c" || got[1].Record.CheckID != "b" {
		t.Errorf("wrong order: %s, %s", got[0].Record.CheckID, got[1].Record.CheckID)
	}

	all := s.List(0)
	if len(all) != 3 {
		t.Errorf("non-positive limit should return everything, got %d", len(all))
	}
	if s.Len() != 3 {
		t.Errorf("Len = %d", s.Len())
	}
}

func TestStore_HandlersObserveAppends(t *testing.T) {
	s := NewStore()
	var seen []uint64
	s.OnAppend(func(e *Entry) { seen = append(seen, e.Sequence) })

	for i := 0; i < 3; i++ {
		if _, err := s.Append(testRecord("c", "ALLOW")); err != nil {
			t.Fatal(err)
		}
	}
	if len(seen) != 3 || seen[0] != 1 || seen[2] != 3 {
		t.Errorf("handler saw %v", seen)
	}
}

func TestStore_WithClock(t *testing.T) {
	fixed := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	s := NewStore().WithClock(func() time.Time { return fixed })

	e, err := s.Append(testRecord("c1", "ALLOW"))
	if err != nil {
		t.Fatal(err)
	}
	if !e.AppendedAt.Equal(fixed) {
		t.Errorf("appended_at = %v", e.AppendedAt)
	}
}

func TestStore_RecorderContract(t *testing.T) {
	s := NewStore()
	if err := s.Record(context.Background(), testRecord("c1", "REJECT")); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 1 {
		t.Fatalf("record not appended")
	}
}

func TestNewRecord_StripsContent(t *testing.T) {
	text := "manipulate the committee into approving the plan"
	repaired := "ask the committee to review the plan"
	rec := NewRecord(RecordParams{
		Stage:        "action",
		CheckID:      "chk",
		Decision:     "ALLOW_WITH_REPAIR",
		OriginalText: text,
		RepairedText: repaired,
	})

	if rec.ContentLength != len(text) || rec.RepairedLength != len(repaired) {
		t.Errorf("lengths wrong: %d, %d", rec.ContentLength, rec.RepairedLength)
	}
	for _, fp := range []string{rec.ContentFingerprint, rec.RepairedFingerprint} {
		if !strings.HasPrefix(fp, "sha256:") {
			t.Errorf("fingerprint format: %q", fp)
		}
		if strings.Contains(fp, "manipulate") || strings.Contains(fp, "committee") {
			t.Error("fingerprint leaks content")
		}
	}
	if rec.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
}

func TestNewRecord_NoRepairLeavesRepairedFieldsEmpty(t *testing.T) {
	rec := NewRecord(RecordParams{
		Stage: "action", CheckID: "chk", Decision: "ALLOW",
		OriginalText: "benign text",
	})
	if rec.RepairedLength != 0 || rec.RepairedFingerprint != "" {
		t.Errorf("repaired fields should be zero: %+v", rec)
	}
}
