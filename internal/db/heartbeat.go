package db

import "time"

// Heartbeat 是设备上报的原始心跳，只追加，从不修改或删除。
// UUID 用于幂等重放：同一个 UUID 重复提交不会产生新行。
// Timestamp 一律以 UTC 存储，日期归属在读取时按配置时区计算。
type Heartbeat struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UUID       string    `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	DeviceID   string    `gorm:"size:128;index;not null" json:"device_id"`
	Timestamp  time.Time `gorm:"index;not null" json:"timestamp"`
	ReceivedAt time.Time `gorm:"autoCreateTime" json:"received_at"`
}

// TableName 固定表名。
func (Heartbeat) TableName() string {
	return "heartbeats"
}

// DailyAttendance 是由心跳聚合得到的每日记录分钟数缓存，可随时从 heartbeats 重建。
type DailyAttendance struct {
	Date            string    `gorm:"primaryKey;size:10" json:"date"`
	RecordedMinutes int       `gorm:"not null;default:0;check:recorded_minutes >= 0" json:"recorded_minutes"`
	HeartbeatCount  int       `gorm:"not null;default:0" json:"heartbeat_count"`
	FirstSeen       time.Time `json:"first_seen"`
	LastSeen        time.Time `json:"last_seen"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName 固定表名。
func (DailyAttendance) TableName() string {
	return "daily_attendances"
}

// Correction 记录某日的人工修正，存在时完全替代聚合出的分钟数。
type Correction struct {
	Date             string    `gorm:"primaryKey;size:10" json:"date"`
	CorrectedMinutes int       `gorm:"not null;check:corrected_minutes >= 0" json:"corrected_minutes"`
	Reason           string    `gorm:"type:text" json:"reason"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName 固定表名。
func (Correction) TableName() string {
	return "corrections"
}
