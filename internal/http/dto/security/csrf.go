// Package security define los DTOs de los endpoints de seguridad.
package security

// CsrfResponse es la respuesta de GET /v1/csrf. El token es single-use.
type CsrfResponse struct {
	Token string `json:"csrf_token"`
}
