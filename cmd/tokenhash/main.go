// Утилита подготовки секретов для развертывания.
//
// Режимы:
//
//	tokenhash                     - сгенерировать токен и его bcrypt-хэш
//	tokenhash -token <token>      - захешировать существующий токен
//	tokenhash -genkey             - сгенерировать ENCRYPTION_KEY
//	tokenhash -encrypt <secret>   - зашифровать секрет ключом из ENCRYPTION_KEY
//
// Хэш кладётся в API_TOKEN_HASH, токен передаётся оператору.
package main

import (
	"encoding/base64"
	"flag"
	"fmt"
	"log"
	"os"

	"liquidity/pkg/crypto"
)

func main() {
	token := flag.String("token", "", "token to hash (generated when empty)")
	genKey := flag.Bool("genkey", false, "generate a new encryption key")
	encrypt := flag.String("encrypt", "", "encrypt a secret with ENCRYPTION_KEY")
	flag.Parse()

	switch {
	case *genKey:
		key, err := crypto.GenerateKey()
		if err != nil {
			log.Fatalf("failed to generate key: %v", err)
		}
		// ключ печатается в base64, в окружение кладётся декодированное значение
		fmt.Printf("ENCRYPTION_KEY (base64): %s\n", base64.StdEncoding.EncodeToString(key))

	case *encrypt != "":
		key := os.Getenv("ENCRYPTION_KEY")
		if len(key) != 32 {
			log.Fatal("ENCRYPTION_KEY must be set to a 32-byte key")
		}
		enc, err := crypto.Encrypt(*encrypt, []byte(key))
		if err != nil {
			log.Fatalf("failed to encrypt: %v", err)
		}
		fmt.Printf("%s%s\n", crypto.EncryptedPrefix, enc)

	default:
		value := *token
		if value == "" {
			generated, err := crypto.GenerateToken()
			if err != nil {
				log.Fatalf("failed to generate token: %v", err)
			}
			value = generated
			fmt.Printf("token: %s\n", value)
		}

		hash, err := crypto.HashToken(value)
		if err != nil {
			log.Fatalf("failed to hash token: %v", err)
		}
		fmt.Printf("API_TOKEN_HASH: %s\n", hash)
	}
}
