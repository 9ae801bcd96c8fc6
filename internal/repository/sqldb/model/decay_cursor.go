package model

import "time"

type DecayCursor struct {
	WindowName string    `gorm:"column:window_name;primaryKey;type:varchar(16)"`
	BucketEnd  time.Time `gorm:"column:bucket_end;not null"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (DecayCursor) TableName() string {
	return "decay_cursors"
}
