package crypto

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

// TestEncryptDecrypt проверяет базовый цикл шифрования/расшифровки
func TestEncryptDecrypt(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	tests := []struct {
		name      string
		plaintext string
	}{
		{"empty string", ""},
		{"simple text", "Hello, World!"},
		{"api key example", "abc123def456ghi789"},
		{"unicode text", "Привет мир 你好世界"},
		{"special chars", "!@#$%^&*()_+-=[]{}|;':\",./<>?"},
		{"long text", strings.Repeat("a", 1000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encrypted, err := Encrypt(tt.plaintext, key)
			if err != nil {
				t.Fatalf("Encrypt failed: %v", err)
			}

			// Результат - валидный base64
			if _, err := base64.StdEncoding.DecodeString(encrypted); err != nil {
				t.Errorf("Encrypted result is not valid base64: %v", err)
			}

			decrypted, err := Decrypt(encrypted, key)
			if err != nil {
				t.Fatalf("Decrypt failed: %v", err)
			}
			if decrypted != tt.plaintext {
				t.Errorf("Decrypted text mismatch: got %q, want %q", decrypted, tt.plaintext)
			}
		})
	}
}

// TestEncryptDifferentResults проверяет что каждое шифрование даёт разный результат (разный nonce)
func TestEncryptDifferentResults(t *testing.T) {
	key, _ := GenerateKey()
	plaintext := "same text"

	encrypted1, _ := Encrypt(plaintext, key)
	encrypted2, _ := Encrypt(plaintext, key)

	if encrypted1 == encrypted2 {
		t.Error("Two encryptions of the same text should produce different ciphertexts")
	}
}

func TestEncryptInvalidKeyLength(t *testing.T) {
	for _, size := range []int{0, 16, 31, 33, 64} {
		if _, err := Encrypt("text", make([]byte, size)); !errors.Is(err, ErrInvalidKeyLength) {
			t.Errorf("key size %d: expected ErrInvalidKeyLength, got %v", size, err)
		}
	}
}

func TestDecryptErrors(t *testing.T) {
	key, _ := GenerateKey()

	tests := []struct {
		name        string
		ciphertext  string
		expectedErr error
	}{
		{"not base64", "!!!not-base64!!!", ErrInvalidCiphertext},
		{"too short", base64.StdEncoding.EncodeToString([]byte("abc")), ErrCiphertextTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decrypt(tt.ciphertext, key); !errors.Is(err, tt.expectedErr) {
				t.Errorf("expected %v, got %v", tt.expectedErr, err)
			}
		})
	}
}

// TestDecryptTampered проверяет что повреждённый шифротекст отклоняется GCM
func TestDecryptTampered(t *testing.T) {
	key, _ := GenerateKey()

	encrypted, err := Encrypt("secret value", key)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	raw, _ := base64.StdEncoding.DecodeString(encrypted)
	raw[len(raw)-1] ^= 0xff
	tampered := base64.StdEncoding.EncodeToString(raw)

	if _, err := Decrypt(tampered, key); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestDecryptWrongKey(t *testing.T) {
	key1, _ := GenerateKey()
	key2, _ := GenerateKey()

	encrypted, _ := Encrypt("secret value", key1)
	if _, err := Decrypt(encrypted, key2); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed with wrong key, got %v", err)
	}
}

func TestResolveSecret(t *testing.T) {
	key, _ := GenerateKey()

	encrypted, err := Encrypt("kraken-api-secret", key)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	tests := []struct {
		name     string
		value    string
		expected string
	}{
		{"plain value passes through", "plain-api-key", "plain-api-key"},
		{"empty value passes through", "", ""},
		{"encrypted value is decrypted", EncryptedPrefix + encrypted, "kraken-api-secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveSecret(tt.value, key)
			if err != nil {
				t.Fatalf("ResolveSecret failed: %v", err)
			}
			if got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestResolveSecretBadCiphertext(t *testing.T) {
	key, _ := GenerateKey()
	if _, err := ResolveSecret(EncryptedPrefix+"garbage", key); err == nil {
		t.Error("expected error for invalid encrypted value")
	}
}
