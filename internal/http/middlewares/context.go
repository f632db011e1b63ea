package middlewares

import "context"

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
	ctxKeyAccountID
	ctxKeySessionID
	ctxKeyCsrfScope
)

func setRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, rid)
}

// GetRequestID retorna el request ID inyectado por WithRequestID, o "".
func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID).(string)
	return v
}

func setSession(ctx context.Context, accountID, sessionID, csrfScope string) context.Context {
	ctx = context.WithValue(ctx, ctxKeyAccountID, accountID)
	ctx = context.WithValue(ctx, ctxKeySessionID, sessionID)
	return context.WithValue(ctx, ctxKeyCsrfScope, csrfScope)
}

// GetAccountID retorna la cuenta autenticada, o "" si el request es anónimo.
func GetAccountID(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyAccountID).(string)
	return v
}

// GetSessionID retorna el ID de sesión crudo del request autenticado.
func GetSessionID(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeySessionID).(string)
	return v
}

// GetCsrfScope retorna la clave estable bajo la que viven los tokens
// anti-forgery de la sesión. No cambia cuando el ID rota.
func GetCsrfScope(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyCsrfScope).(string)
	return v
}
