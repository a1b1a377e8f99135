package invites

import "testing"

func TestAttributeSingleIncrement(t *testing.T) {
	old := []Snapshot{{Code: "aaa", Uses: 0}, {Code: "bbb", Uses: 3}}
	current := []Snapshot{{Code: "aaa", Uses: 1}, {Code: "bbb", Uses: 3}}

	candidates, vanished := Attribute(old, current)
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if candidates[0].Code != "aaa" {
		t.Fatalf("expected candidate aaa, got %q", candidates[0].Code)
	}
	if candidates[0].Uses != 0 {
		t.Fatalf("expected pre-join uses 0, got %d", candidates[0].Uses)
	}
	if len(vanished) != 0 {
		t.Fatalf("expected no vanished invites, got %v", vanished)
	}
}

func TestAttributeNoChange(t *testing.T) {
	snapshot := []Snapshot{{Code: "aaa", Uses: 2}, {Code: "bbb", Uses: 5}}

	if candidates, _ := Attribute(snapshot, snapshot); len(candidates) != 0 {
		t.Fatalf("expected no candidates, got %v", candidates)
	}
}

func TestAttributeMultipleIncrements(t *testing.T) {
	old := []Snapshot{{Code: "aaa", Uses: 1}, {Code: "bbb", Uses: 4}, {Code: "ccc", Uses: 9}}
	current := []Snapshot{{Code: "aaa", Uses: 2}, {Code: "bbb", Uses: 4}, {Code: "ccc", Uses: 10}}

	candidates, _ := Attribute(old, current)
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	codes := map[string]bool{}
	for _, c := range candidates {
		codes[c.Code] = true
	}
	if !codes["aaa"] || !codes["ccc"] {
		t.Fatalf("expected aaa and ccc, got %v", candidates)
	}
}

func TestAttributeReportsVanishedInvites(t *testing.T) {
	old := []Snapshot{{Code: "gone", Uses: 3}, {Code: "bbb", Uses: 1}}
	current := []Snapshot{{Code: "bbb", Uses: 2}}

	candidates, vanished := Attribute(old, current)
	if len(candidates) != 1 || candidates[0].Code != "bbb" {
		t.Fatalf("expected only bbb, got %v", candidates)
	}
	if len(vanished) != 1 || vanished[0] != "gone" {
		t.Fatalf("expected gone to be reported, got %v", vanished)
	}
}

func TestAttributeIgnoresBrandNewInvites(t *testing.T) {
	old := []Snapshot{{Code: "aaa", Uses: 0}}
	current := []Snapshot{{Code: "aaa", Uses: 0}, {Code: "fresh", Uses: 0}}

	candidates, vanished := Attribute(old, current)
	if len(candidates) != 0 {
		t.Fatalf("expected no candidates, got %v", candidates)
	}
	if len(vanished) != 0 {
		t.Fatalf("expected no vanished invites, got %v", vanished)
	}
}

func TestFindCode(t *testing.T) {
	snapshot := []Snapshot{{Code: "aaa", Uses: 1}, {Code: "bbb", Uses: 2}}

	entry, ok := FindCode(snapshot, "bbb")
	if !ok || entry.Uses != 2 {
		t.Fatalf("expected bbb with 2 uses, got %v %v", entry, ok)
	}

	if _, ok := FindCode(snapshot, "zzz"); ok {
		t.Fatalf("expected zzz to be absent")
	}
}
