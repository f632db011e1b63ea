// Package backup implementa la bóveda de códigos de recuperación single-use.
package backup

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/shelfguard/internal/security/password"
)

// DefaultCount es la cantidad de códigos por generación.
const DefaultCount = 10

// Store persiste los códigos, solo como hash. Los usados se retienen para
// auditoría, nunca se borran.
type Store interface {
	// ReplaceUnused borra los hashes NO usados de la cuenta e inserta los
	// nuevos en una sola operación atómica.
	ReplaceUnused(ctx context.Context, accountID string, hashes []string, at time.Time) error

	// ListUnused retorna los PHC hashes sin usar de la cuenta.
	ListUnused(ctx context.Context, accountID string) ([]string, error)

	// ConsumeCode marca el hash como usado sii sigue sin usar
	// (compare-and-set). Retorna true solo para el request que lo consumió.
	ConsumeCode(ctx context.Context, accountID, hash string, at time.Time) (bool, error)

	// CountUnused cuenta los códigos sin usar.
	CountUnused(ctx context.Context, accountID string) (int, error)
}

// Vault genera y verifica códigos de respaldo.
type Vault struct {
	store  Store
	params password.Params
}

func New(store Store) *Vault {
	return &Vault{store: store, params: password.BackupCode}
}

// Generate produce n códigos de 8 dígitos formateados NNNN-NNNN, invalida
// todos los códigos sin usar previos y retorna los nuevos en claro.
// Es la única vez que existen en claro: después solo queda el hash.
func (v *Vault) Generate(ctx context.Context, accountID string, n int) ([]string, error) {
	if n <= 0 {
		n = DefaultCount
	}
	codes := make([]string, 0, n)
	hashes := make([]string, 0, n)
	for i := 0; i < n; i++ {
		code, err := randomCode()
		if err != nil {
			return nil, err
		}
		h, err := password.Hash(v.params, code)
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
		hashes = append(hashes, h)
	}
	if err := v.store.ReplaceUnused(ctx, accountID, hashes, time.Now().UTC()); err != nil {
		return nil, err
	}
	return codes, nil
}

// Verify compara candidate contra los hashes sin usar; si matchea, consume el
// código con CAS. Dos verificaciones concurrentes del mismo código: solo una
// retorna true.
func (v *Vault) Verify(ctx context.Context, accountID, candidate string) (bool, error) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return false, nil
	}
	hashes, err := v.store.ListUnused(ctx, accountID)
	if err != nil {
		return false, err
	}
	for _, h := range hashes {
		if !password.Verify(candidate, h) {
			continue
		}
		return v.store.ConsumeCode(ctx, accountID, h, time.Now().UTC())
	}
	return false, nil
}

// RemainingCount retorna cuántos códigos quedan, para el aviso de "pocos
// códigos" en la UI.
func (v *Vault) RemainingCount(ctx context.Context, accountID string) (int, error) {
	return v.store.CountUnused(ctx, accountID)
}

// randomCode genera 8 dígitos con crypto/rand, formato NNNN-NNNN.
func randomCode() (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	hi := binary.BigEndian.Uint32(b[0:4]) % 10000
	lo := binary.BigEndian.Uint32(b[4:8]) % 10000
	return fmt.Sprintf("%04d-%04d", hi, lo), nil
}
