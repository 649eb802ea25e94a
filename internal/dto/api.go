package dto

import "time"

type UserDTO struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Success   bool       `json:"success"`
	User      UserDTO    `json:"user"`
	Token     string     `json:"token,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// CreatedResponse 追加写入后返回服务端分配的 id
type CreatedResponse struct {
	Success bool  `json:"success"`
	ID      int64 `json:"id"`
}

type UserResponse struct {
	Success bool    `json:"success"`
	User    UserDTO `json:"user"`
}

type PushDataResponse struct {
	Success bool    `json:"success"`
	Data    DataDTO `json:"data"`
}

type SuggestionResponse struct {
	Success    bool          `json:"success"`
	Suggestion SuggestionDTO `json:"suggestion"`
	Source     string        `json:"source"`
}

// QuoteResponse quote 为寄语文本
type QuoteResponse struct {
	Success bool   `json:"success"`
	Quote   string `json:"quote"`
	IsAI    bool   `json:"isAI"`
	Source  string `json:"source"`
}

type ScheduleDTO struct {
	Time string `json:"time"`
	Cron string `json:"cron"`
}

type HealthDTO struct {
	Status         string      `json:"status"`
	Timestamp      time.Time   `json:"timestamp"`
	Version        string      `json:"version,omitempty"`
	Schedule       ScheduleDTO `json:"schedule"`
	DegradedTables []string    `json:"degradedTables,omitempty"`
}
