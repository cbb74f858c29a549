package models

import "time"

// CaptureRecord is one recorded inbound request.
type CaptureRecord struct {
	ID        int64     `bson:"_id" gorm:"primaryKey;autoIncrement" json:"id"`
	Method    string    `bson:"method" gorm:"size:16;not null" json:"method"`
	URL       string    `bson:"url" gorm:"type:text;not null" json:"url"`
	ClientIP  string    `bson:"client_ip" gorm:"size:64;not null" json:"client_ip"`
	ClientGeo string    `bson:"client_geo" gorm:"size:255;not null" json:"client_geo"`
	CreatedAt time.Time `bson:"created_at" gorm:"not null" json:"created_at"`
}

func (CaptureRecord) TableName() string {
	return "capture_records"
}
