package domain

const (
	RequesterPubkeyCtxKey  = "cb-requesterPubkey"
	RequesterIsOwnerCtxKey = "cb-requesterIsOwner"
)

type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
	MediaKindAudio MediaKind = "audio"
)

type OperationKind string

const (
	OperationAdd     OperationKind = "add"
	OperationRemove  OperationKind = "remove"
	OperationReorder OperationKind = "reorder"
	OperationReplace OperationKind = "replace"
)

type OperationStatus string

const (
	OperationPending OperationStatus = "pending"
	OperationApplied OperationStatus = "applied"
	OperationFailed  OperationStatus = "failed"
)

type RelayOutcome string

const (
	RelayAccepted RelayOutcome = "accepted"
	RelayRejected RelayOutcome = "rejected"
	RelayTimedOut RelayOutcome = "timed-out"
)
