package model

import "testing"

func TestEventRecordID(t *testing.T) {
	first := EventRecordID("0xabc", 0)
	second := EventRecordID("0xabc", 1)
	if first == second {
		t.Fatalf("ids collide: %s", first)
	}

	if EventRecordID("0xabc", 0) != first {
		t.Fatalf("id not deterministic")
	}

	if first != "0xabc-0" {
		t.Fatalf("unexpected id format: %s", first)
	}
}
