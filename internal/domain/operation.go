package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Operation is a recorded user intent against the attachments of one record.
type Operation struct {
	OperationID        string          `json:"operationId"`
	Kind               OperationKind   `json:"kind"`
	TargetAttachmentID string          `json:"targetAttachmentId,omitempty"`
	PayloadFiles       []FileInput     `json:"payloadFiles,omitempty"`
	FromPosition       int             `json:"fromPosition,omitempty"`
	ToPosition         int             `json:"toPosition,omitempty"`
	RecordedAt         uint64          `json:"recordedAt"`
	Status             OperationStatus `json:"status"`
	Error              string          `json:"error,omitempty"`
}

// OperationLog is an ordered, append-only list of operations for one batch.
// It is not safe for concurrent use.
type OperationLog struct {
	ops   []Operation
	clock uint64
}

func NewOperationLog() *OperationLog {
	return &OperationLog{}
}

// Record appends op as pending. A pending op with the same target and kind
// is dropped in favor of the new one.
func (l *OperationLog) Record(op Operation) (Operation, error) {
	switch op.Kind {
	case OperationAdd:
		if len(op.PayloadFiles) == 0 {
			return Operation{}, fmt.Errorf("add operation requires payload files")
		}
	case OperationRemove:
		if op.TargetAttachmentID == "" {
			return Operation{}, fmt.Errorf("remove operation requires a target")
		}
	case OperationReplace:
		if op.TargetAttachmentID == "" || len(op.PayloadFiles) == 0 {
			return Operation{}, fmt.Errorf("replace operation requires a target and payload files")
		}
	case OperationReorder:
		if op.FromPosition < 0 || op.ToPosition < 0 {
			return Operation{}, fmt.Errorf("reorder positions must not be negative")
		}
	default:
		return Operation{}, fmt.Errorf("unknown operation kind %q", op.Kind)
	}

	if op.OperationID == "" {
		op.OperationID = uuid.NewString()
	}
	l.clock++
	op.RecordedAt = l.clock
	op.Status = OperationPending
	op.Error = ""

	if op.TargetAttachmentID != "" {
		for i, existing := range l.ops {
			if existing.Status == OperationPending &&
				existing.Kind == op.Kind &&
				existing.TargetAttachmentID == op.TargetAttachmentID {
				l.ops = append(l.ops[:i], l.ops[i+1:]...)
				break
			}
		}
	}

	l.ops = append(l.ops, op)
	return op, nil
}

// Pending returns the not yet applied operations in recording order.
func (l *OperationLog) Pending() []Operation {
	var result []Operation
	for _, op := range l.ops {
		if op.Status == OperationPending {
			result = append(result, op)
		}
	}
	return result
}

// Operations returns every operation including applied and failed ones.
func (l *OperationLog) Operations() []Operation {
	return append([]Operation(nil), l.ops...)
}

func (l *OperationLog) Clear() {
	l.ops = nil
}

func (l *OperationLog) MarkApplied(ids ...string) {
	l.setStatus(ids, OperationApplied, "")
}

func (l *OperationLog) MarkFailed(err error, ids ...string) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	l.setStatus(ids, OperationFailed, msg)
}

// Retry moves failed operations back to pending.
func (l *OperationLog) Retry(ids ...string) {
	set := toSet(ids)
	for i := range l.ops {
		if _, ok := set[l.ops[i].OperationID]; ok && l.ops[i].Status == OperationFailed {
			l.ops[i].Status = OperationPending
			l.ops[i].Error = ""
		}
	}
}

func (l *OperationLog) setStatus(ids []string, status OperationStatus, msg string) {
	set := toSet(ids)
	for i := range l.ops {
		if _, ok := set[l.ops[i].OperationID]; ok && l.ops[i].Status == OperationPending {
			l.ops[i].Status = status
			l.ops[i].Error = msg
		}
	}
}

// Replacement ties a replaced attachment to the files superseding it. Key
// matches the Key of those files and Position is where the target sat.
type Replacement struct {
	TargetID string
	Key      string
	Position int
}

// BatchPlan is the result of replaying pending operations over a record.
// KeptIDs already excludes replaced targets; Replacements lets the caller
// put a target back when its files did not upload.
type BatchPlan struct {
	KeptIDs      []string
	Order        []string
	NewFiles     []FileInput
	Replacements []Replacement
	OperationIDs []string
	Invalid      map[string]error
}

// IsEmpty reports whether replaying produced nothing to execute.
func (p BatchPlan) IsEmpty() bool {
	return len(p.OperationIDs) == 0
}

// Plan replays the pending operations over current. Operations that no
// longer make sense (unknown target, out of range position) are returned in
// Invalid and skipped; the rest still apply.
func (l *OperationLog) Plan(current []Attachment) BatchPlan {
	seq := append([]Attachment(nil), current...)
	plan := BatchPlan{Invalid: map[string]error{}}

	for _, op := range l.Pending() {
		switch op.Kind {
		case OperationAdd:
			plan.NewFiles = append(plan.NewFiles, keyed(op)...)

		case OperationRemove:
			idx := indexOf(seq, op.TargetAttachmentID)
			if idx < 0 {
				plan.Invalid[op.OperationID] = fmt.Errorf("attachment %s not found", op.TargetAttachmentID)
				continue
			}
			seq = append(seq[:idx], seq[idx+1:]...)

		case OperationReplace:
			idx := indexOf(seq, op.TargetAttachmentID)
			if idx < 0 {
				plan.Invalid[op.OperationID] = fmt.Errorf("attachment %s not found", op.TargetAttachmentID)
				continue
			}
			seq = append(seq[:idx], seq[idx+1:]...)
			plan.NewFiles = append(plan.NewFiles, keyed(op)...)
			plan.Replacements = append(plan.Replacements, Replacement{
				TargetID: op.TargetAttachmentID,
				Key:      op.OperationID,
				Position: idx,
			})

		case OperationReorder:
			if op.FromPosition >= len(seq) || op.ToPosition >= len(seq) {
				plan.Invalid[op.OperationID] = fmt.Errorf("reorder position out of range")
				continue
			}
			if op.TargetAttachmentID != "" && seq[op.FromPosition].ID != op.TargetAttachmentID {
				plan.Invalid[op.OperationID] = fmt.Errorf("attachment %s is no longer at position %d", op.TargetAttachmentID, op.FromPosition)
				continue
			}
			moved := seq[op.FromPosition]
			seq = append(seq[:op.FromPosition], seq[op.FromPosition+1:]...)
			seq = append(seq[:op.ToPosition], append([]Attachment{moved}, seq[op.ToPosition:]...)...)
		}
		plan.OperationIDs = append(plan.OperationIDs, op.OperationID)
	}

	plan.KeptIDs = AttachmentIDs(seq)
	plan.Order = plan.KeptIDs
	return plan
}

// keyed copies the payload of op with every file keyed by the operation id.
func keyed(op Operation) []FileInput {
	files := make([]FileInput, len(op.PayloadFiles))
	for i, f := range op.PayloadFiles {
		f.Key = op.OperationID
		files[i] = f
	}
	return files
}

// RestoreReplaced puts back the targets of replacements whose key failed,
// at their former position. A nil ids stays nil.
func RestoreReplaced(ids []string, replacements []Replacement, failed map[string]struct{}) []string {
	if ids == nil {
		return nil
	}
	result := make([]string, len(ids))
	copy(result, ids)
	for _, r := range replacements {
		if _, ok := failed[r.Key]; !ok {
			continue
		}
		if containsID(result, r.TargetID) {
			continue
		}
		pos := min(max(r.Position, 0), len(result))
		result = append(result[:pos], append([]string{r.TargetID}, result[pos:]...)...)
	}
	return result
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func indexOf(seq []Attachment, id string) int {
	for i, a := range seq {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
