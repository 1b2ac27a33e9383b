package model

type Activity struct {
	ActivityID string  `gorm:"column:activity_id;type:text;primaryKey"`
	Title      string  `gorm:"column:title;type:text;not null"`
	Content    string  `gorm:"column:content;type:text;not null"`
	Severity   string  `gorm:"column:severity;type:text;not null"`
	Timestamp  string  `gorm:"column:timestamp;type:text;not null;index:idx_activities_camera_ts,priority:2;index:idx_activities_ts"`
	CameraID   string  `gorm:"column:camera_id;type:text;not null;index:idx_activities_camera_ts,priority:1"`
	ThreadID   *string `gorm:"column:thread_id;type:text"`
	CreatedAt  string  `gorm:"column:created_at;type:text;not null"`
}

func (Activity) TableName() string {
	return "activities"
}
