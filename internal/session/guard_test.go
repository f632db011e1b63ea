package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dropDatabas3/shelfguard/internal/audit"
	"github.com/dropDatabas3/shelfguard/internal/cache"
)

func newTestGuard(cfg Config) (*Guard, *audit.MemoryStore, *time.Time) {
	store := audit.NewMemoryStore(100)
	g := NewGuard(cache.NewMemory(time.Hour), audit.New(store), cfg)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }
	return g, store, &now
}

var fp = Fingerprint{
	UserAgent:      "Mozilla/5.0",
	AcceptLanguage: "es-AR,es;q=0.9",
	AcceptEncoding: "gzip, deflate, br",
}

func TestStartAndTouch(t *testing.T) {
	t.Parallel()
	g, _, now := newTestGuard(Config{})
	ctx := context.Background()

	id, rec, err := g.Start(ctx, "acc1", fp, "10.0.0.1")
	if err != nil {
		t.Fatalf("Start err: %v", err)
	}
	if id == "" || rec.AccountID != "acc1" {
		t.Fatalf("bad session: id=%q rec=%+v", id, rec)
	}

	*now = now.Add(5 * time.Minute)
	got, newID, err := g.Touch(ctx, id, fp, "10.0.0.1")
	if err != nil {
		t.Fatalf("Touch err: %v", err)
	}
	if newID != "" {
		t.Fatal("no rotation expected at 5m")
	}
	if !got.LastActivityAt.Equal(now.UTC()) {
		t.Fatalf("LastActivityAt not refreshed: %v", got.LastActivityAt)
	}
}

func TestTouch_IdleTimeoutDestroys(t *testing.T) {
	t.Parallel()
	g, _, now := newTestGuard(Config{IdleTimeout: 2 * time.Hour})
	ctx := context.Background()

	id, _, _ := g.Start(ctx, "acc2", fp, "10.0.0.1")
	*now = now.Add(2*time.Hour + time.Minute)

	if _, _, err := g.Touch(ctx, id, fp, "10.0.0.1"); !errors.Is(err, ErrExpired) {
		t.Fatalf("want ErrExpired, got %v", err)
	}
	// la sesión quedó destruida
	if _, _, err := g.Touch(ctx, id, fp, "10.0.0.1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound after destroy, got %v", err)
	}
}

func TestTouch_FingerprintMismatchDestroysAndAudits(t *testing.T) {
	t.Parallel()
	g, auditStore, now := newTestGuard(Config{})
	ctx := context.Background()

	id, _, _ := g.Start(ctx, "acc3", fp, "10.0.0.1")
	*now = now.Add(time.Minute)

	evil := fp
	evil.UserAgent = "curl/8.0"
	if _, _, err := g.Touch(ctx, id, evil, "6.6.6.6"); !errors.Is(err, ErrFingerprintMismatch) {
		t.Fatalf("want ErrFingerprintMismatch, got %v", err)
	}

	// destruida: el fingerprint correcto tampoco entra
	if _, _, err := g.Touch(ctx, id, fp, "10.0.0.1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("session must be destroyed, got %v", err)
	}

	evs, _ := auditStore.Recent(ctx, 10)
	found := false
	for _, ev := range evs {
		if ev.Type == audit.TypeSessionFingerprintMismatch && ev.SubjectID == "acc3" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected SESSION_FINGERPRINT_MISMATCH audit event")
	}
}

func TestTouch_RotationIssuesNewID(t *testing.T) {
	t.Parallel()
	g, _, now := newTestGuard(Config{RotationInterval: 30 * time.Minute})
	ctx := context.Background()

	id, _, _ := g.Start(ctx, "acc4", fp, "10.0.0.1")
	*now = now.Add(31 * time.Minute)

	rec, newID, err := g.Touch(ctx, id, fp, "10.0.0.1")
	if err != nil {
		t.Fatalf("Touch err: %v", err)
	}
	if newID == "" || newID == id {
		t.Fatalf("expected a fresh session ID, got %q", newID)
	}
	if !rec.LastRotationAt.Equal(now.UTC()) {
		t.Fatalf("LastRotationAt not reset: %v", rec.LastRotationAt)
	}

	// el ID viejo quedó inválido, el nuevo funciona
	if _, _, err := g.Touch(ctx, id, fp, "10.0.0.1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("old ID must be dead after rotation, got %v", err)
	}
	if _, _, err := g.Touch(ctx, newID, fp, "10.0.0.1"); err != nil {
		t.Fatalf("rotated ID must be valid: %v", err)
	}
}

func TestTouch_CsrfKeySurvivesRotation(t *testing.T) {
	t.Parallel()
	g, _, now := newTestGuard(Config{RotationInterval: 30 * time.Minute})
	ctx := context.Background()

	id, rec, err := g.Start(ctx, "acc6", fp, "10.0.0.1")
	if err != nil {
		t.Fatalf("Start err: %v", err)
	}
	if rec.CsrfKey == "" {
		t.Fatal("Start must assign a csrf key")
	}
	key := rec.CsrfKey

	*now = now.Add(31 * time.Minute)
	rotated, newID, err := g.Touch(ctx, id, fp, "10.0.0.1")
	if err != nil {
		t.Fatalf("Touch err: %v", err)
	}
	if newID == "" {
		t.Fatal("expected rotation")
	}
	if rotated.CsrfKey != key {
		t.Fatalf("csrf key changed across rotation: %q != %q", rotated.CsrfKey, key)
	}

	// el record persistido bajo el ID nuevo conserva la misma clave
	reloaded, _, err := g.Touch(ctx, newID, fp, "10.0.0.1")
	if err != nil {
		t.Fatalf("Touch rotated err: %v", err)
	}
	if reloaded.CsrfKey != key {
		t.Fatalf("persisted csrf key = %q, want %q", reloaded.CsrfKey, key)
	}
}

func TestDestroy(t *testing.T) {
	t.Parallel()
	g, _, _ := newTestGuard(Config{})
	ctx := context.Background()

	id, _, _ := g.Start(ctx, "acc5", fp, "10.0.0.1")
	if err := g.Destroy(ctx, id); err != nil {
		t.Fatalf("Destroy err: %v", err)
	}
	if _, _, err := g.Touch(ctx, id, fp, "10.0.0.1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestConfig_IdleTimeoutCap(t *testing.T) {
	t.Parallel()
	c := Config{IdleTimeout: 48 * time.Hour}
	c.applyDefaults()
	if c.IdleTimeout != 24*time.Hour {
		t.Fatalf("idle timeout must cap at 24h, got %v", c.IdleTimeout)
	}
}
