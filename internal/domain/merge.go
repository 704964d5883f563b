package domain

// Selection says which original attachments survive a merge.
type Selection struct {
	all bool
	ids map[string]struct{}
}

// KeepAll is the additive mode: every original attachment survives.
func KeepAll() Selection {
	return Selection{all: true}
}

// KeepOnly is the selective mode. An empty list removes every original attachment.
func KeepOnly(ids ...string) Selection {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return Selection{ids: set}
}

// SelectionFrom maps a nil id list to KeepAll and anything else to KeepOnly.
func SelectionFrom(ids []string) Selection {
	if ids == nil {
		return KeepAll()
	}
	return KeepOnly(ids...)
}

func (s Selection) IsAll() bool {
	return s.all
}

func (s Selection) Keeps(id string) bool {
	if s.all {
		return true
	}
	_, ok := s.ids[id]
	return ok
}

// Merge keeps the selected originals in their original order and appends
// the uploaded attachments in upload order. Ids are not deduplicated.
func Merge(original []Attachment, sel Selection, uploaded []Attachment) []Attachment {
	result := make([]Attachment, 0, len(original)+len(uploaded))
	for _, a := range original {
		if sel.Keeps(a.ID) {
			result = append(result, a)
		}
	}
	return append(result, uploaded...)
}

// Reorder moves the listed ids to the front in the given order; unlisted
// attachments follow in their existing relative order. Unknown ids are ignored.
func Reorder(attachments []Attachment, order []string) []Attachment {
	if len(order) == 0 {
		return attachments
	}

	byID := make(map[string]Attachment, len(attachments))
	for _, a := range attachments {
		byID[a.ID] = a
	}

	result := make([]Attachment, 0, len(attachments))
	placed := make(map[string]struct{}, len(order))
	for _, id := range order {
		a, ok := byID[id]
		if !ok {
			continue
		}
		if _, dup := placed[id]; dup {
			continue
		}
		placed[id] = struct{}{}
		result = append(result, a)
	}
	for _, a := range attachments {
		if _, ok := placed[a.ID]; !ok {
			result = append(result, a)
		}
	}
	return result
}

// SameSequence compares two attachment lists by id and order.
func SameSequence(a, b []Attachment) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}

func AttachmentIDs(attachments []Attachment) []string {
	ids := make([]string, len(attachments))
	for i, a := range attachments {
		ids[i] = a.ID
	}
	return ids
}
