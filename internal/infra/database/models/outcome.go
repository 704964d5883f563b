package models

import (
	"time"
)

type PublishOutcome struct {
	RevisionID  string    `json:"revisionID" gorm:"primaryKey;type:text"`
	Revision    Revision  `json:"-" gorm:"foreignKey:RevisionID;references:ID;constraint:OnDelete:CASCADE;"`
	Relay       string    `json:"relay" gorm:"primaryKey;type:text"`
	Outcome     string    `json:"outcome" gorm:"type:text;not null"`
	ErrorDetail string    `json:"errorDetail" gorm:"type:text"`
	CDate       time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}
