// Package session define los DTOs de los endpoints de sesión.
package session

// LoginRequest es el body de POST /v1/session/login.
type LoginRequest struct {
	Identifier    string `json:"identifier"`
	Password      string `json:"password"`
	TwoFactorCode string `json:"two_factor_code,omitempty"`
}

// LoginResponse es la respuesta de un login exitoso. El ID de sesión nunca
// viaja en el body, solo en el cookie HttpOnly.
type LoginResponse struct {
	AccountID            string `json:"account_id"`
	UsedTwoFactor        bool   `json:"used_two_factor"`
	UsedBackupCode       bool   `json:"used_backup_code,omitempty"`
	BackupCodesRemaining *int   `json:"backup_codes_remaining,omitempty"`
}
