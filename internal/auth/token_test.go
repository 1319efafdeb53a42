package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGenerateAndParse(t *testing.T) {
	tm := NewTokenManager("s3cret", "card-ledger", time.Hour)
	token, err := tm.Generate(42)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	id, err := tm.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if id != 42 {
		t.Fatalf("id = %d", id)
	}
}

func TestParseRejects(t *testing.T) {
	tm := NewTokenManager("s3cret", "card-ledger", time.Hour)
	good, _ := tm.Generate(1)

	other := NewTokenManager("other", "card-ledger", time.Hour)
	forged, _ := other.Generate(1)

	wrongIssuer, _ := NewTokenManager("s3cret", "someone-else", time.Hour).Generate(1)

	expiredMgr := NewTokenManager("s3cret", "card-ledger", time.Minute)
	expiredMgr.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, _ := expiredMgr.Generate(1)

	tests := map[string]string{
		"garbage":      "not-a-token",
		"forged":       forged,
		"wrong issuer": wrongIssuer,
		"expired":      expired,
		"truncated":    good[:len(good)-3],
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := tm.Parse(token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("want ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestPrincipalContext(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Fatal("empty context should have no principal")
	}
	ctx := WithPrincipal(context.Background(), Principal{UserID: 7, IsAdmin: true})
	p, ok := FromContext(ctx)
	if !ok || p.UserID != 7 || !p.IsAdmin {
		t.Fatalf("got %+v, %v", p, ok)
	}
}
