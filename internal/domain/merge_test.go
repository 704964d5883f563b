package domain

import (
	"slices"
	"testing"
)

func atts(ids ...string) []Attachment {
	result := make([]Attachment, len(ids))
	for i, id := range ids {
		result[i] = Attachment{ID: id, URL: "https://blossom.example.com/" + id, ContentHash: id}
	}
	return result
}

func TestMergeSelective(t *testing.T) {
	original := atts("A", "B", "C")
	merged := Merge(original, KeepOnly("A", "C"), atts("D"))

	if got := AttachmentIDs(merged); !slices.Equal(got, []string{"A", "C", "D"}) {
		t.Fatalf("expected [A C D] got %v", got)
	}
}

func TestMergeKeepAllIsIdentity(t *testing.T) {
	original := atts("A", "B", "C")

	merged := Merge(original, KeepOnly(AttachmentIDs(original)...), nil)
	if !SameSequence(original, merged) {
		t.Fatalf("expected identity, got %v", AttachmentIDs(merged))
	}

	merged = Merge(original, KeepAll(), nil)
	if !SameSequence(original, merged) {
		t.Fatalf("legacy mode should be identity, got %v", AttachmentIDs(merged))
	}
}

func TestMergePreservesOrderAndAppendsTail(t *testing.T) {
	original := atts("A", "B", "C", "D", "E")
	uploaded := atts("X", "Y")

	merged := Merge(original, KeepOnly("E", "B", "D"), uploaded)
	got := AttachmentIDs(merged)
	want := []string{"B", "D", "E", "X", "Y"}
	if !slices.Equal(got, want) {
		t.Fatalf("expected %v got %v", want, got)
	}
}

func TestMergeLegacyUnion(t *testing.T) {
	merged := Merge(atts("A", "B"), SelectionFrom(nil), atts("C"))
	if got := AttachmentIDs(merged); !slices.Equal(got, []string{"A", "B", "C"}) {
		t.Fatalf("expected union got %v", got)
	}
}

func TestMergeEmptySelectionRemovesAll(t *testing.T) {
	merged := Merge(atts("A", "B"), SelectionFrom([]string{}), nil)
	if len(merged) != 0 {
		t.Fatalf("expected empty merge got %v", AttachmentIDs(merged))
	}
}

func TestMergeDoesNotDeduplicate(t *testing.T) {
	merged := Merge(atts("A"), KeepAll(), atts("A"))
	if len(merged) != 2 {
		t.Fatalf("engine must not dedupe, got %v", AttachmentIDs(merged))
	}
}

func TestReorder(t *testing.T) {
	got := AttachmentIDs(Reorder(atts("A", "B", "C", "D"), []string{"C", "A", "unknown"}))
	want := []string{"C", "A", "B", "D"}
	if !slices.Equal(got, want) {
		t.Fatalf("expected %v got %v", want, got)
	}
}
