package logger

import (
	"time"

	"go.uber.org/zap"
)

// ─── HTTP ───

// RequestID crea un campo para el ID del request.
func RequestID(v string) zap.Field {
	return zap.String("request_id", v)
}

// Method crea un campo para el método HTTP.
func Method(v string) zap.Field {
	return zap.String("method", v)
}

// Path crea un campo para el path del request.
func Path(v string) zap.Field {
	return zap.String("path", v)
}

// Status crea un campo para el status code HTTP.
func Status(v int) zap.Field {
	return zap.Int("status", v)
}

// DurationMs crea un campo para la duración en milisegundos.
func DurationMs(v int64) zap.Field {
	return zap.Int64("duration_ms", v)
}

// Bytes crea un campo para los bytes de respuesta.
func Bytes(v int) zap.Field {
	return zap.Int("bytes", v)
}

// SourceIP crea un campo para la IP de origen del intento.
func SourceIP(v string) zap.Field {
	return zap.String("source_ip", v)
}

// UserAgent crea un campo para el User-Agent.
func UserAgent(v string) zap.Field {
	return zap.String("user_agent", v)
}

// ─── Dominio auth ───

// AccountID crea un campo para el ID de la cuenta.
func AccountID(v string) zap.Field {
	return zap.String("account_id", v)
}

// Identifier crea un campo para el identificador de login (usar con cuidado).
func Identifier(v string) zap.Field {
	return zap.String("identifier", v)
}

// SessionID crea un campo para el hash del ID de sesión (nunca el ID crudo).
func SessionID(v string) zap.Field {
	return zap.String("session_id", v)
}

// EventType crea un campo para el tipo de evento de auditoría.
func EventType(v string) zap.Field {
	return zap.String("event_type", v)
}

// Remaining crea un campo para intentos restantes.
func Remaining(v int) zap.Field {
	return zap.Int("remaining", v)
}

// RetryAfter crea un campo para el tiempo hasta el próximo intento permitido.
func RetryAfter(v time.Duration) zap.Field {
	return zap.Duration("retry_after", v)
}

// ─── Sistema ───

// Component crea un campo para el componente/módulo.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Op crea un campo para la operación actual.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Layer crea un campo para la capa (controller, service, store).
func Layer(v string) zap.Field {
	return zap.String("layer", v)
}

// Err crea un campo para un error.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// ─── Genéricos ───

// Count crea un campo para un conteo.
func Count(v int) zap.Field {
	return zap.Int("count", v)
}

// String crea un campo string genérico.
func String(key, v string) zap.Field {
	return zap.String(key, v)
}

// Int crea un campo int genérico.
func Int(key string, v int) zap.Field {
	return zap.Int(key, v)
}

// Bool crea un campo bool genérico.
func Bool(key string, v bool) zap.Field {
	return zap.Bool(key, v)
}

// Any crea un campo genérico para cualquier tipo.
func Any(key string, v any) zap.Field {
	return zap.Any(key, v)
}
