package domain

import (
	"errors"
	"slices"
	"testing"
)

func file(name string) FileInput {
	return FileInput{Name: name, MimeType: "image/png", Data: []byte(name)}
}

func TestOperationLogLastWriterWins(t *testing.T) {
	log := NewOperationLog()

	first, err := log.Record(Operation{Kind: OperationReplace, TargetAttachmentID: "A", PayloadFiles: []FileInput{file("one.png")}})
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	second, err := log.Record(Operation{Kind: OperationReplace, TargetAttachmentID: "A", PayloadFiles: []FileInput{file("two.png")}})
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if _, err := log.Record(Operation{Kind: OperationRemove, TargetAttachmentID: "A"}); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	pending := log.Pending()
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending ops got %d", len(pending))
	}
	if pending[0].OperationID != second.OperationID || pending[0].OperationID == first.OperationID {
		t.Fatalf("later replace should supersede the earlier one")
	}
	if pending[0].RecordedAt <= first.RecordedAt {
		t.Fatalf("logical clock did not advance")
	}
}

func TestOperationLogAddsNeverCollapse(t *testing.T) {
	log := NewOperationLog()
	log.Record(Operation{Kind: OperationAdd, PayloadFiles: []FileInput{file("a.png")}})
	log.Record(Operation{Kind: OperationAdd, PayloadFiles: []FileInput{file("b.png")}})

	if len(log.Pending()) != 2 {
		t.Fatalf("untargeted adds must both be kept")
	}
}

func TestOperationLogRejectsMalformed(t *testing.T) {
	log := NewOperationLog()
	cases := []Operation{
		{Kind: OperationAdd},
		{Kind: OperationRemove},
		{Kind: OperationReplace, TargetAttachmentID: "A"},
		{Kind: OperationReorder, FromPosition: -1},
		{Kind: "rename"},
	}
	for _, op := range cases {
		if _, err := log.Record(op); err == nil {
			t.Fatalf("expected %+v to be rejected", op)
		}
	}
}

func TestOperationLogStatusTransitions(t *testing.T) {
	log := NewOperationLog()
	a, _ := log.Record(Operation{Kind: OperationRemove, TargetAttachmentID: "A"})
	b, _ := log.Record(Operation{Kind: OperationRemove, TargetAttachmentID: "B"})

	log.MarkApplied(a.OperationID)
	log.MarkFailed(errors.New("boom"), b.OperationID)

	if len(log.Pending()) != 0 {
		t.Fatalf("no op should remain pending")
	}
	ops := log.Operations()
	if ops[0].Status != OperationApplied || ops[1].Status != OperationFailed || ops[1].Error != "boom" {
		t.Fatalf("unexpected statuses %+v", ops)
	}

	log.Retry(b.OperationID)
	if len(log.Pending()) != 1 {
		t.Fatalf("retry should make the failed op pending again")
	}

	log.Clear()
	if len(log.Operations()) != 0 {
		t.Fatalf("clear should drop everything")
	}
}

func TestOperationLogPlan(t *testing.T) {
	log := NewOperationLog()
	current := atts("A", "B", "C", "D")

	log.Record(Operation{Kind: OperationRemove, TargetAttachmentID: "B"})
	log.Record(Operation{Kind: OperationReorder, TargetAttachmentID: "D", FromPosition: 2, ToPosition: 0})
	log.Record(Operation{Kind: OperationReplace, TargetAttachmentID: "C", PayloadFiles: []FileInput{file("c2.png")}})
	log.Record(Operation{Kind: OperationAdd, PayloadFiles: []FileInput{file("e.png")}})
	bad, _ := log.Record(Operation{Kind: OperationRemove, TargetAttachmentID: "Z"})

	plan := log.Plan(current)

	if want := []string{"D", "A"}; !slices.Equal(plan.KeptIDs, want) {
		t.Fatalf("expected kept %v got %v", want, plan.KeptIDs)
	}
	if len(plan.NewFiles) != 2 || plan.NewFiles[0].Name != "c2.png" || plan.NewFiles[1].Name != "e.png" {
		t.Fatalf("unexpected new files %+v", plan.NewFiles)
	}
	if len(plan.OperationIDs) != 4 {
		t.Fatalf("expected 4 valid ops got %d", len(plan.OperationIDs))
	}
	if _, ok := plan.Invalid[bad.OperationID]; !ok {
		t.Fatalf("remove of unknown attachment should be invalid")
	}

	merged := Merge(Reorder(current, plan.Order), KeepOnly(plan.KeptIDs...), atts("C2", "E"))
	if got := AttachmentIDs(merged); !slices.Equal(got, []string{"D", "A", "C2", "E"}) {
		t.Fatalf("unexpected merged sequence %v", got)
	}
}

func TestOperationLogPlanRemoveEverything(t *testing.T) {
	log := NewOperationLog()
	log.Record(Operation{Kind: OperationRemove, TargetAttachmentID: "A"})

	plan := log.Plan(atts("A"))
	if plan.KeptIDs == nil || len(plan.KeptIDs) != 0 {
		t.Fatalf("kept ids must be an explicit empty selection, got %#v", plan.KeptIDs)
	}
}

func TestOperationLogPlanKeysPayloadByOperation(t *testing.T) {
	log := NewOperationLog()
	first, _ := log.Record(Operation{Kind: OperationAdd, PayloadFiles: []FileInput{file("photo.png")}})
	second, _ := log.Record(Operation{Kind: OperationAdd, PayloadFiles: []FileInput{file("photo.png")}})
	swap, _ := log.Record(Operation{Kind: OperationReplace, TargetAttachmentID: "B", PayloadFiles: []FileInput{file("b2.png")}})

	plan := log.Plan(atts("A", "B", "C"))

	keys := []string{plan.NewFiles[0].Key, plan.NewFiles[1].Key, plan.NewFiles[2].Key}
	if want := []string{first.OperationID, second.OperationID, swap.OperationID}; !slices.Equal(keys, want) {
		t.Fatalf("expected keys %v got %v", want, keys)
	}
	if len(plan.Replacements) != 1 {
		t.Fatalf("expected one replacement got %+v", plan.Replacements)
	}
	r := plan.Replacements[0]
	if r.TargetID != "B" || r.Key != swap.OperationID || r.Position != 1 {
		t.Fatalf("unexpected replacement %+v", r)
	}
	for _, op := range log.Pending() {
		for _, f := range op.PayloadFiles {
			if f.Key != "" {
				t.Fatalf("planning must not mutate the recorded payload")
			}
		}
	}
}

func TestRestoreReplaced(t *testing.T) {
	replacements := []Replacement{
		{TargetID: "B", Key: "op-b", Position: 1},
		{TargetID: "D", Key: "op-d", Position: 9},
	}

	got := RestoreReplaced([]string{"A", "C"}, replacements, map[string]struct{}{"op-b": {}})
	if !slices.Equal(got, []string{"A", "B", "C"}) {
		t.Fatalf("expected B back at its position, got %v", got)
	}

	got = RestoreReplaced([]string{"A"}, replacements, map[string]struct{}{"op-d": {}})
	if !slices.Equal(got, []string{"A", "D"}) {
		t.Fatalf("out of range position should append, got %v", got)
	}

	got = RestoreReplaced([]string{}, replacements, nil)
	if got == nil || len(got) != 0 {
		t.Fatalf("an empty selection must stay explicit, got %#v", got)
	}

	if RestoreReplaced(nil, replacements, map[string]struct{}{"op-b": {}}) != nil {
		t.Fatalf("nil keeps legacy mode")
	}
}
