package db

import "time"

// SettingsID 是全局唯一设置行的主键。
const SettingsID = 1

// Settings 是唯一的考勤策略记录。
// WorkingDays 以 "Mon,Tue,Wed" 的形式存储；Revision 每次保存递增，
// 供重算流程检测执行期间的并发修改。
type Settings struct {
	ID                   uint      `gorm:"primaryKey" json:"-"`
	StartDate            string    `gorm:"size:10;not null" json:"start_date"`
	EndDate              string    `gorm:"size:10;not null" json:"end_date"`
	WorkingDays          string    `gorm:"size:64;not null" json:"working_days"`
	DailyRequiredMinutes int       `gorm:"not null;check:daily_required_minutes >= 0" json:"daily_required_minutes"`
	Revision             int64     `gorm:"not null;default:0" json:"revision"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// TableName 固定表名。
func (Settings) TableName() string {
	return "settings"
}

// Holiday 节假日，日期即主键，集合语义。
type Holiday struct {
	Date        string    `gorm:"primaryKey;size:10" json:"date"`
	Description string    `gorm:"size:255" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName 固定表名。
func (Holiday) TableName() string {
	return "holidays"
}

// 请假类型
const (
	LeaveKindHalf = "half"
	LeaveKindFull = "full"
)

// Leave 标记某日的半天或全天请假。
type Leave struct {
	Date        string    `gorm:"primaryKey;size:10" json:"date"`
	Kind        string    `gorm:"size:8;not null" json:"kind"`
	Description string    `gorm:"size:255" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName 固定表名。
func (Leave) TableName() string {
	return "leaves"
}
