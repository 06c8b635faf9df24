package service

import (
	"github.com/attendlog/internal/auth"
	"github.com/attendlog/internal/cache"
	"github.com/attendlog/internal/ledger"
	"gorm.io/gorm"
)

// Services 把各服务按依赖顺序组装起来，并让重算服务订阅策略变更。
type Services struct {
	Attendance  *AttendanceService
	Heartbeats  *HeartbeatService
	Policy      *PolicyService
	Corrections *CorrectionService
	Ledger      *LedgerService
	Recalc      *RecalcService
	Auth        *AuthService
}

// NewServices 构造全部服务。c 为 nil 时使用进程内缓存。
func NewServices(gdb *gorm.DB, agg ledger.Aggregator, c cache.MinutesCache, issuer *auth.Issuer, totpSecret string) *Services {
	attendance := NewAttendanceService(gdb, agg, c)
	policy := NewPolicyService(gdb)
	corrections := NewCorrectionService(gdb)
	ledgerSvc := NewLedgerService(policy, attendance, corrections)
	recalc := NewRecalcService(policy, ledgerSvc)
	policy.Subscribe(recalc)

	if issuer == nil {
		issuer = auth.NewIssuer("", 0)
	}

	return &Services{
		Attendance:  attendance,
		Heartbeats:  NewHeartbeatService(gdb, attendance),
		Policy:      policy,
		Corrections: corrections,
		Ledger:      ledgerSvc,
		Recalc:      recalc,
		Auth:        NewAuthService(gdb, issuer, totpSecret),
	}
}
