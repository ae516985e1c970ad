package crypto

import (
	"errors"
	"strings"
	"testing"
)

// TestHashToken проверяет базовое хеширование токена
func TestHashToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"simple token", "token123"},
		{"generated-style token", "dGhpcyBpcyBhIHRlc3QgdG9rZW4gdmFsdWU"},
		{"near length limit", strings.Repeat("a", 70)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashToken(tt.token)
			if err != nil {
				t.Fatalf("HashToken failed: %v", err)
			}
			if hash == "" {
				t.Error("Hash should not be empty")
			}
			if !strings.HasPrefix(hash, "$2a$") && !strings.HasPrefix(hash, "$2b$") {
				t.Errorf("Hash should start with bcrypt prefix, got: %s", hash[:10])
			}
			if hash == tt.token {
				t.Error("Hash should not equal token")
			}
		})
	}
}

func TestHashTokenErrors(t *testing.T) {
	if _, err := HashToken(""); !errors.Is(err, ErrEmptyToken) {
		t.Errorf("expected ErrEmptyToken, got %v", err)
	}
	if _, err := HashToken(strings.Repeat("a", MaxTokenLength+1)); !errors.Is(err, ErrTokenTooLong) {
		t.Errorf("expected ErrTokenTooLong, got %v", err)
	}
}

// TestVerifyToken проверяет цикл хеширование-проверка
func TestVerifyToken(t *testing.T) {
	token := "operator-token-123"
	hash, err := HashToken(token)
	if err != nil {
		t.Fatalf("HashToken failed: %v", err)
	}

	if err := VerifyToken(token, hash); err != nil {
		t.Errorf("valid token rejected: %v", err)
	}

	if err := VerifyToken("wrong-token", hash); !errors.Is(err, ErrTokenMismatch) {
		t.Errorf("expected ErrTokenMismatch, got %v", err)
	}
	if err := VerifyToken("", hash); !errors.Is(err, ErrEmptyToken) {
		t.Errorf("expected ErrEmptyToken, got %v", err)
	}
	if err := VerifyToken(token, ""); !errors.Is(err, ErrInvalidHash) {
		t.Errorf("expected ErrInvalidHash, got %v", err)
	}
	if err := VerifyToken(token, "not-a-bcrypt-hash"); !errors.Is(err, ErrInvalidHash) {
		t.Errorf("expected ErrInvalidHash, got %v", err)
	}
}

// TestGenerateToken проверяет формат и уникальность сгенерированных токенов
func TestGenerateToken(t *testing.T) {
	token1, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	token2, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	if token1 == token2 {
		t.Error("two generated tokens should differ")
	}
	if len(token1) > MaxTokenLength {
		t.Errorf("generated token longer than bcrypt limit: %d", len(token1))
	}

	// сгенерированный токен проходит собственную проверку
	hash, err := HashToken(token1)
	if err != nil {
		t.Fatalf("HashToken failed: %v", err)
	}
	if err := VerifyToken(token1, hash); err != nil {
		t.Errorf("generated token rejected by its own hash: %v", err)
	}
}
