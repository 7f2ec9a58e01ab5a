package models

import usermodels "lunaexecutor-backend/internal/features/user/models"

// User is the account returned by register and login
type User = usermodels.User

type ErrorResponse = usermodels.ErrorResponse

// RegisterRequest creates an account
type RegisterRequest struct {
	Username string `json:"username" binding:"required,username" example:"lunafan"`
	Email    string `json:"email" binding:"required,email" example:"luna@example.com"`
	Password string `json:"password" binding:"required,min=8,max=72" example:"correct-horse"`
}

// LoginRequest accepts a username or an email in Username
type LoginRequest struct {
	Username string `json:"username" binding:"required,notblank" example:"lunafan"`
	Password string `json:"password" binding:"required" example:"correct-horse"`
}

// VerifyResponse is returned by a successful email verification
type VerifyResponse struct {
	Verified bool `json:"verified" example:"true"`
}
