package totp

import (
	"strings"
	"testing"
	"time"
)

// rfcSecret es "12345678901234567890" en base32 (vector de RFC 6238).
const rfcSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

func TestCode_RFCVectors(t *testing.T) {
	t.Parallel()
	// últimos 6 dígitos de los vectores SHA1 de RFC 6238 Apéndice B
	cases := []struct {
		unix int64
		want string
	}{
		{59, "287082"},
		{1111111109, "081804"},
		{1111111111, "050471"},
		{1234567890, "005924"},
		{2000000000, "279037"},
	}
	for _, c := range cases {
		got, err := Code(rfcSecret, time.Unix(c.unix, 0))
		if err != nil {
			t.Fatalf("Code err: %v", err)
		}
		if got != c.want {
			t.Fatalf("Code(t=%d) = %s, want %s", c.unix, got, c.want)
		}
	}
}

func TestVerify_WindowZero(t *testing.T) {
	t.Parallel()
	now := time.Unix(1111111109, 0)
	code, err := Code(rfcSecret, now)
	if err != nil {
		t.Fatalf("Code err: %v", err)
	}

	if ok, _ := Verify(rfcSecret, code, now, 0); !ok {
		t.Fatal("expected match at T with window=0")
	}
	for _, delta := range []time.Duration{31 * time.Second, -31 * time.Second} {
		if ok, _ := Verify(rfcSecret, code, now.Add(delta), 0); ok {
			t.Fatalf("expected no match at T%+v with window=0", delta)
		}
	}
}

func TestVerify_WindowOne(t *testing.T) {
	t.Parallel()
	now := time.Unix(1234567890, 0)
	code, err := Code(rfcSecret, now)
	if err != nil {
		t.Fatalf("Code err: %v", err)
	}

	for _, delta := range []time.Duration{0, 30 * time.Second, -30 * time.Second} {
		if ok, _ := Verify(rfcSecret, code, now.Add(delta), 1); !ok {
			t.Fatalf("expected match at T%+v with window=1", delta)
		}
	}
	for _, delta := range []time.Duration{61 * time.Second, -61 * time.Second} {
		if ok, _ := Verify(rfcSecret, code, now.Add(delta), 1); ok {
			t.Fatalf("expected no match at T%+v with window=1", delta)
		}
	}
}

func TestVerify_NonMatchReturnsFalseNotError(t *testing.T) {
	t.Parallel()
	ok, err := Verify(rfcSecret, "000000", time.Unix(59, 0), 1)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if ok {
		t.Fatal("expected false")
	}

	// candidato con largo incorrecto tampoco es error
	ok, err = Verify(rfcSecret, "12345", time.Unix(59, 0), 1)
	if err != nil || ok {
		t.Fatalf("want (false, nil), got (%v, %v)", ok, err)
	}
}

func TestVerify_MalformedSecretPropagates(t *testing.T) {
	t.Parallel()
	if _, err := Verify("not!base32", "123456", time.Now(), 1); err != ErrInvalidSecretFormat {
		t.Fatalf("want ErrInvalidSecretFormat, got %v", err)
	}
	if _, err := Code("MZXW6Y==", time.Now()); err != ErrInvalidSecretFormat {
		t.Fatalf("want ErrInvalidSecretFormat, got %v", err)
	}
}

func TestEnrollmentURL(t *testing.T) {
	t.Parallel()
	u := EnrollmentURL("Shelf", "ana@example.com", rfcSecret)
	if !strings.HasPrefix(u, "otpauth://totp/Shelf:ana@example.com?") {
		t.Fatalf("unexpected label: %s", u)
	}
	for _, frag := range []string{"secret=" + rfcSecret, "issuer=Shelf", "digits=6", "period=30", "algorithm=SHA1"} {
		if !strings.Contains(u, frag) {
			t.Fatalf("URL missing %q: %s", frag, u)
		}
	}
}
