package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/shelfguard/internal/audit"
	"github.com/dropDatabas3/shelfguard/internal/cache"
	"github.com/dropDatabas3/shelfguard/internal/rate"
	"github.com/dropDatabas3/shelfguard/internal/security/backup"
	"github.com/dropDatabas3/shelfguard/internal/security/password"
	"github.com/dropDatabas3/shelfguard/internal/security/totp"
	"github.com/dropDatabas3/shelfguard/internal/session"
)

// fakeUsers implementa UserStore en memoria para los escenarios.
type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*User // por identifier
}

func newFakeUsers(users ...*User) *fakeUsers {
	f := &fakeUsers{users: make(map[string]*User)}
	for _, u := range users {
		f.users[u.Identifier] = u
	}
	return f
}

func (f *fakeUsers) FindByIdentifier(_ context.Context, identifier string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[identifier]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) FindByID(_ context.Context, id string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (f *fakeUsers) SetPendingTwoFactorSecret(_ context.Context, accountID, secret string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == accountID {
			u.PendingTwoFactorSecret = secret
			return nil
		}
	}
	return ErrUserNotFound
}

func (f *fakeUsers) ActivateTwoFactor(_ context.Context, accountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == accountID {
			u.TwoFactorEnabled = true
			u.TwoFactorSecret = u.PendingTwoFactorSecret
			u.PendingTwoFactorSecret = ""
			return nil
		}
	}
	return ErrUserNotFound
}

func (f *fakeUsers) DisableTwoFactor(_ context.Context, accountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == accountID {
			u.TwoFactorEnabled = false
			u.TwoFactorSecret = ""
			u.PendingTwoFactorSecret = ""
			return nil
		}
	}
	return ErrUserNotFound
}

func (f *fakeUsers) SetLastLogin(_ context.Context, _ string, _ time.Time) error { return nil }

type world struct {
	orch       *Orchestrator
	users      *fakeUsers
	vault      *backup.Vault
	limiter    *rate.Limiter
	auditStore *audit.MemoryStore
	sessions   *session.Guard
}

func newWorld(t *testing.T, users ...*User) *world {
	t.Helper()
	auditStore := audit.NewMemoryStore(200)
	auditLog := audit.New(auditStore)
	limiter := rate.New(rate.NewMemoryStore(), rate.Config{})
	vault := backup.New(backup.NewMemoryStore())
	sessions := session.NewGuard(cache.NewMemory(time.Hour), auditLog, session.Config{})
	fu := newFakeUsers(users...)
	return &world{
		orch:       NewOrchestrator(fu, limiter, vault, sessions, auditLog, Config{}),
		users:      fu,
		vault:      vault,
		limiter:    limiter,
		auditStore: auditStore,
		sessions:   sessions,
	}
}

// hash rápido para fixtures; Verify parsea los parámetros del PHC igual.
func mustHash(t *testing.T, plain string) string {
	t.Helper()
	h, err := password.Hash(password.BackupCode, plain)
	require.NoError(t, err)
	return h
}

var testFP = session.Fingerprint{
	UserAgent:      "Shelf/1.0",
	AcceptLanguage: "es-AR",
	AcceptEncoding: "gzip",
}

func loginInput(identifier, pass, code string) LoginInput {
	return LoginInput{
		Identifier:    identifier,
		Password:      pass,
		TwoFactorCode: code,
		SourceIP:      "203.0.113.7",
		Fingerprint:   testFP,
	}
}

func lastEventOfType(t *testing.T, store *audit.MemoryStore, typ string) audit.Event {
	t.Helper()
	evs, err := store.Recent(context.Background(), 100)
	require.NoError(t, err)
	for _, ev := range evs {
		if ev.Type == typ {
			return ev
		}
	}
	t.Fatalf("no %s event recorded", typ)
	return audit.Event{}
}

func TestLogin_PlainAccountSuccess(t *testing.T) {
	w := newWorld(t, &User{ID: "u1", Identifier: "ana@shelf.ar", PasswordHash: mustHash(t, "hunter2!")})
	ctx := context.Background()

	res, err := w.orch.Login(ctx, loginInput("ana@shelf.ar", "hunter2!", ""))
	require.NoError(t, err)
	require.NotEmpty(t, res.SessionID)
	require.Equal(t, "u1", res.AccountID)
	require.False(t, res.UsedTwoFactor)

	// la sesión emitida es usable
	rec, _, err := w.sessions.Touch(ctx, res.SessionID, testFP, "203.0.113.7")
	require.NoError(t, err)
	require.Equal(t, "u1", rec.AccountID)

	ev := lastEventOfType(t, w.auditStore, audit.TypeLoginSuccess)
	require.Equal(t, "u1", ev.SubjectID)
	require.Equal(t, false, ev.Detail["used_two_factor"])
}

func TestLogin_TwoFactorRequiredConsumesNoBudget(t *testing.T) {
	w := newWorld(t, &User{
		ID: "u2", Identifier: "bruno@shelf.ar",
		PasswordHash:     mustHash(t, "correcto"),
		TwoFactorEnabled: true, TwoFactorSecret: "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ",
	})
	ctx := context.Background()

	res, err := w.orch.Login(ctx, loginInput("bruno@shelf.ar", "correcto", ""))
	require.ErrorIs(t, err, ErrTwoFactorRequired)
	require.Nil(t, res)

	// paso de protocolo, no intento fallido
	rem, err := w.limiter.GetRemainingAttempts(ctx, rateKey("bruno@shelf.ar", "203.0.113.7"))
	require.NoError(t, err)
	require.Equal(t, 5, rem)
}

func TestLogin_TotpSuccess(t *testing.T) {
	secret, err := totp.GenerateSecret(0)
	require.NoError(t, err)
	w := newWorld(t, &User{
		ID: "u3", Identifier: "carla@shelf.ar",
		PasswordHash:     mustHash(t, "correcto"),
		TwoFactorEnabled: true, TwoFactorSecret: secret,
	})
	ctx := context.Background()

	code, err := totp.Code(secret, time.Now())
	require.NoError(t, err)

	res, err := w.orch.Login(ctx, loginInput("carla@shelf.ar", "correcto", code))
	require.NoError(t, err)
	require.True(t, res.UsedTwoFactor)
	require.False(t, res.UsedBackupCode)
	require.NotEmpty(t, res.SessionID)

	ev := lastEventOfType(t, w.auditStore, audit.TypeLoginSuccess)
	require.Equal(t, true, ev.Detail["used_two_factor"])
}

func TestLogin_RateLimitedAfterFiveFailures(t *testing.T) {
	w := newWorld(t, &User{ID: "u4", Identifier: "dora@shelf.ar", PasswordHash: mustHash(t, "correcto")})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := w.orch.Login(ctx, loginInput("dora@shelf.ar", "equivocado", ""))
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	// sexto intento: denegado antes de mirar el password, aunque sea correcto
	_, err := w.orch.Login(ctx, loginInput("dora@shelf.ar", "correcto", ""))
	require.ErrorIs(t, err, ErrRateLimitExceeded)

	var rl *RateLimitedError
	require.ErrorAs(t, err, &rl)
	require.Greater(t, rl.RetryAfter, time.Duration(0))

	lastEventOfType(t, w.auditStore, audit.TypeRateLimitExceeded)
}

func TestLogin_BackupCodeSingleUse(t *testing.T) {
	secret, err := totp.GenerateSecret(0)
	require.NoError(t, err)
	w := newWorld(t, &User{
		ID: "u5", Identifier: "elsa@shelf.ar",
		PasswordHash:     mustHash(t, "correcto"),
		TwoFactorEnabled: true, TwoFactorSecret: secret,
	})
	ctx := context.Background()

	codes, err := w.vault.Generate(ctx, "u5", 0)
	require.NoError(t, err)
	require.Len(t, codes, backup.DefaultCount)

	res, err := w.orch.Login(ctx, loginInput("elsa@shelf.ar", "correcto", codes[0]))
	require.NoError(t, err)
	require.True(t, res.UsedTwoFactor)
	require.True(t, res.UsedBackupCode)
	require.Equal(t, backup.DefaultCount-1, res.BackupCodesRemaining)

	// el mismo código otra vez ya no vale
	_, err = w.orch.Login(ctx, loginInput("elsa@shelf.ar", "correcto", codes[0]))
	require.ErrorIs(t, err, ErrInvalidTwoFactorCode)
	lastEventOfType(t, w.auditStore, audit.TypeTwoFactorFailed)
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	w := newWorld(t,
		&User{ID: "u6", Identifier: "fede@shelf.ar", PasswordHash: mustHash(t, "correcto")},
		&User{ID: "u7", Identifier: "gus@shelf.ar", PasswordHash: mustHash(t, "correcto"), Locked: true},
	)
	ctx := context.Background()

	_, errUnknown := w.orch.Login(ctx, loginInput("nadie@shelf.ar", "loquesea", ""))
	_, errBadPass := w.orch.Login(ctx, loginInput("fede@shelf.ar", "equivocado", ""))
	_, errLocked := w.orch.Login(ctx, loginInput("gus@shelf.ar", "correcto", ""))

	require.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	require.ErrorIs(t, errBadPass, ErrInvalidCredentials)
	require.ErrorIs(t, errLocked, ErrInvalidCredentials)
	require.Equal(t, errUnknown.Error(), errBadPass.Error())
	require.Equal(t, errBadPass.Error(), errLocked.Error())
}

// brokenRateStore simula un backing store caído.
type brokenRateStore struct{ rate.Store }

func (brokenRateStore) GetLockout(context.Context, string) (time.Time, bool, error) {
	return time.Time{}, false, context.DeadlineExceeded
}

func TestLogin_StoreDownFailsClosed(t *testing.T) {
	w := newWorld(t, &User{ID: "u8", Identifier: "hilda@shelf.ar", PasswordHash: mustHash(t, "correcto")})
	w.orch.limiter = rate.New(brokenRateStore{}, rate.Config{})
	ctx := context.Background()

	_, err := w.orch.Login(ctx, loginInput("hilda@shelf.ar", "correcto", ""))
	require.ErrorIs(t, err, ErrRateLimitExceeded)
}

func TestEnrollmentLifecycle(t *testing.T) {
	w := newWorld(t, &User{ID: "u9", Identifier: "ines@shelf.ar", PasswordHash: mustHash(t, "correcto")})
	ctx := context.Background()

	enr, err := w.orch.StartEnrollment(ctx, "u9")
	require.NoError(t, err)
	require.NotEmpty(t, enr.Secret)
	require.Contains(t, enr.URL, "otpauth://totp/")
	require.Contains(t, enr.URL, "issuer=Shelf")

	// código inválido no activa nada
	_, err = w.orch.ConfirmEnrollment(ctx, "u9", "000000")
	require.ErrorIs(t, err, ErrInvalidTwoFactorCode)

	code, err := totp.Code(enr.Secret, time.Now())
	require.NoError(t, err)
	backupCodes, err := w.orch.ConfirmEnrollment(ctx, "u9", code)
	require.NoError(t, err)
	require.Len(t, backupCodes, backup.DefaultCount)

	u, err := w.users.FindByID(ctx, "u9")
	require.NoError(t, err)
	require.True(t, u.TwoFactorEnabled)
	require.Equal(t, enr.Secret, u.TwoFactorSecret)
	lastEventOfType(t, w.auditStore, audit.TypeTwoFactorEnabled)

	// rotación de backup codes invalida la tanda anterior
	fresh, err := w.orch.RotateBackupCodes(ctx, "u9")
	require.NoError(t, err)
	require.Len(t, fresh, backup.DefaultCount)
	ok, err := w.vault.Verify(ctx, "u9", backupCodes[0])
	require.NoError(t, err)
	require.False(t, ok)
	lastEventOfType(t, w.auditStore, audit.TypeBackupCodesRegenerated)

	// deshabilitar exige prueba de posesión
	require.ErrorIs(t, w.orch.DisableTwoFactor(ctx, "u9", "999999"), ErrInvalidTwoFactorCode)
	code, err = totp.Code(enr.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, w.orch.DisableTwoFactor(ctx, "u9", code))

	u, err = w.users.FindByID(ctx, "u9")
	require.NoError(t, err)
	require.False(t, u.TwoFactorEnabled)
	lastEventOfType(t, w.auditStore, audit.TypeTwoFactorDisabled)
}

func TestLogout(t *testing.T) {
	w := newWorld(t, &User{ID: "u10", Identifier: "juan@shelf.ar", PasswordHash: mustHash(t, "correcto")})
	ctx := context.Background()

	res, err := w.orch.Login(ctx, loginInput("juan@shelf.ar", "correcto", ""))
	require.NoError(t, err)

	require.NoError(t, w.orch.Logout(ctx, res.SessionID, "u10", "203.0.113.7", testFP.UserAgent))
	_, _, err = w.sessions.Touch(ctx, res.SessionID, testFP, "203.0.113.7")
	require.ErrorIs(t, err, session.ErrNotFound)
	lastEventOfType(t, w.auditStore, audit.TypeLogout)
}
