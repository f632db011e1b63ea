// Package mfa define los DTOs del flujo de verificación en dos pasos.
package mfa

// EnrollResponse entrega el material de enrolamiento. El secreto viaja una
// sola vez y la respuesta sale con Cache-Control: no-store.
type EnrollResponse struct {
	SecretBase32 string `json:"secret_base32"`
	OTPAuthURL   string `json:"otpauth_url"`
}

// ConfirmRequest es el body de POST /v1/mfa/confirm.
type ConfirmRequest struct {
	Code string `json:"code"`
}

// ConfirmResponse incluye la tanda inicial de backup codes en claro.
type ConfirmResponse struct {
	BackupCodes []string `json:"backup_codes"`
}

// DisableRequest es el body de POST /v1/mfa/disable.
type DisableRequest struct {
	Code string `json:"code"`
}

// RotateResponse es la tanda nueva de backup codes.
type RotateResponse struct {
	BackupCodes []string `json:"backup_codes"`
}
