package service

import "errors"

var (
	// ErrDeviceIDRequired 心跳缺少设备标识
	ErrDeviceIDRequired = errors.New("device_id is required")
	// ErrInvalidHeartbeatID 客户端提供的心跳 ID 不是合法 UUID
	ErrInvalidHeartbeatID = errors.New("heartbeat id must be a uuid")
	// ErrHolidayNotFound 指定日期不是节假日
	ErrHolidayNotFound = errors.New("holiday not found")
	// ErrLeaveNotFound 指定日期没有请假记录
	ErrLeaveNotFound = errors.New("leave not found")
	// ErrCorrectionNotFound 指定日期没有修正记录
	ErrCorrectionNotFound = errors.New("correction not found")
	// ErrInvalidCredentials 管理员用户名或密码错误
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTOTPRequired 已启用二次验证但未提供验证码
	ErrTOTPRequired = errors.New("totp code required")
)
