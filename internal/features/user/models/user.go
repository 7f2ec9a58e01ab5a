package models

import "time"

// User is a registered account
// @Description Registered user account
type User struct {
	ID                int64      `json:"id" example:"42"`
	Username          string     `json:"username" example:"lunafan"`
	Email             string     `json:"email" example:"luna@example.com"`
	PasswordHash      string     `json:"-"`
	IsVerified        bool       `json:"isVerified" example:"true"`
	VerificationToken *string    `json:"-"`
	IsAdmin           bool       `json:"isAdmin" example:"false"`
	MemberSince       time.Time  `json:"memberSince" example:"2024-03-15T14:30:00Z"`
	LastLogin         *time.Time `json:"lastLogin,omitempty" example:"2024-03-16T09:00:00Z"`
	TaskCount         int        `json:"taskCount" example:"12"`
	SuccessRate       float64    `json:"successRate" example:"91.67"`
}

// UserStat is one day bucket of execution statistics
// @Description Daily execution statistics
type UserStat struct {
	ID           int64     `json:"id" example:"7"`
	UserID       int64     `json:"userId" example:"42"`
	Date         time.Time `json:"date" example:"2024-03-15T00:00:00Z"`
	Executions   int       `json:"executions" example:"5"`
	SuccessCount int       `json:"successCount" example:"4"`
	FailureCount int       `json:"failureCount" example:"1"`
}

// UpdateProfileRequest carries the editable profile fields. There is no admin field.
type UpdateProfileRequest struct {
	Username *string `json:"username" binding:"omitempty,username" example:"lunafan"`
	Email    *string `json:"email" binding:"omitempty,email" example:"luna@example.com"`
}

// RecordExecutionRequest reports one task execution result
type RecordExecutionRequest struct {
	Success *bool `json:"success" binding:"required" example:"true"`
}
