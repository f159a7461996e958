package dto

import "time"

type CreateProfileRequest struct {
	Name              string `json:"name"`
	DailyLimitMinutes int    `json:"daily_limit_minutes"`
}

type ProfileResponse struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	DailyLimitMinutes int       `json:"daily_limit_minutes"`
	CreatedAt         time.Time `json:"created_at"`
}

type BindChipRequest struct {
	ChipToken string `json:"chip_token"`
}

type UsageResponse struct {
	ProfileID        string `json:"profile_id"`
	Date             string `json:"date"`
	UsedSeconds      int64  `json:"used_seconds"`
	CeilingSeconds   int64  `json:"ceiling_seconds"`
	RemainingSeconds int64  `json:"remaining_seconds"`
}
