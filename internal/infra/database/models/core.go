package models

import (
	"time"
)

// Revision is one signed revision of a replaceable record, as published by
// this node. Payload holds the zstd compressed event JSON.
type Revision struct {
	ID         string    `json:"id" gorm:"primaryKey;type:text"`
	Address    string    `json:"address" gorm:"type:text;index"`
	Kind       int       `json:"kind" gorm:"type:integer;not null"`
	PubKey     string    `json:"pubkey" gorm:"type:text;index"`
	Identifier string    `json:"identifier" gorm:"type:text"`
	Payload    []byte    `json:"-" gorm:"type:bytea;not null"`
	CreatedAt  time.Time `json:"createdAt" gorm:"type:timestamp with time zone;not null;index"`
	CDate      time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}

// RecordKey points an address at its newest known revision.
type RecordKey struct {
	Address    string    `json:"address" gorm:"primaryKey;type:text"`
	RevisionID string    `json:"revisionID" gorm:"type:text;not null"`
	Revision   Revision  `json:"-" gorm:"foreignKey:RevisionID;references:ID;constraint:OnDelete:CASCADE;"`
	CreatedAt  time.Time `json:"createdAt" gorm:"type:timestamp with time zone;not null"`
	Deleted    bool      `json:"deleted" gorm:"type:boolean;not null;default:false"`
}
