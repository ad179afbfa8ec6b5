package audit

import (
	"testing"
	"time"
)

var receiptSecret = []byte("0123456789abcdef0123456789abcdef")

func issuedRecord() Record {
	d := 0.12
	return NewRecord(RecordParams{
		Stage:        "action",
		CheckID:      "chk-1",
		CandidateID:  "cand-1",
		Decision:     "ALLOW_WITH_REPAIR",
		Codes:        []string{"MANIPULATION"},
		DriftScore:   &d,
		OriginalText: "original candidate text",
		RepairedText: "repaired candidate text",
	})
}

func TestReceipt_RoundTrip(t *testing.T) {
	ri, err := NewReceiptIssuer(receiptSecret, "aegis/test", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	rec := issuedRecord()

	token, err := ri.Issue(rec)
	if err != nil {
		t.Fatal(err)
	}

	claims, err := ri.Validate(token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Decision != rec.Decision || claims.Stage != rec.Stage {
		t.Errorf("claims mismatch: %+v", claims)
	}
	if claims.ContentFingerprint != rec.ContentFingerprint {
		t.Error("content fingerprint not carried")
	}
	if claims.RepairFingerprint != rec.RepairedFingerprint {
		t.Error("repair fingerprint not carried")
	}
	if claims.DriftScore == nil || *claims.DriftScore != 0.12 {
		t.Errorf("drift score not carried: %v", claims.DriftScore)
	}
	if claims.ID != rec.CheckID || claims.Subject != rec.CandidateID {
		t.Errorf("registered claims wrong: id=%s sub=%s", claims.ID, claims.Subject)
	}
}

func TestReceipt_WrongSecretRejected(t *testing.T) {
	ri, err := NewReceiptIssuer(receiptSecret, "aegis/test", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	other, err := NewReceiptIssuer([]byte("another-secret-of-enough-length"), "aegis/test", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	token, err := ri.Issue(issuedRecord())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.Validate(token); err == nil {
		t.Fatal("receipt signed with a different secret must be rejected")
	}
}

func TestReceipt_WrongIssuerRejected(t *testing.T) {
	ri, err := NewReceiptIssuer(receiptSecret, "aegis/test", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	other, err := NewReceiptIssuer(receiptSecret, "someone/else", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	token, err := ri.Issue(issuedRecord())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.Validate(token); err == nil {
		t.Fatal("receipt from a different issuer must be rejected")
	}
}

func TestReceipt_ExpiredRejected(t *testing.T) {
	ri, err := NewReceiptIssuer(receiptSecret, "aegis/test", time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	token, err := ri.Issue(issuedRecord())
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := ri.Validate(token); err == nil {
		t.Fatal("expired receipt must be rejected")
	}
}

func TestNewReceiptIssuer_ShortSecretRejected(t *testing.T) {
	if _, err := NewReceiptIssuer([]byte("short"), "aegis/test", time.Hour); err == nil {
		t.Fatal("short secret must be refused")
	}
}

func TestNewReceiptIssuer_Defaults(t *testing.T) {
	ri, err := NewReceiptIssuer(receiptSecret, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if ri.issuer != "aegis/gate" {
		t.Errorf("default issuer = %q", ri.issuer)
	}
	if ri.ttl != time.Hour {
		t.Errorf("default ttl = %v", ri.ttl)
	}
}
