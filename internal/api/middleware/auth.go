package middleware

import (
	"net/http"
	"strings"

	"liquidity/pkg/crypto"
)

// Auth проверяет операторский токен из заголовка Authorization.
//
// Токен сравнивается с bcrypt-хэшем из конфигурации (API_TOKEN_HASH):
// в окружении хранится только хэш, сам токен известен оператору.
// Пустой хэш выключает аутентификацию - режим локального развертывания.
func Auth(tokenHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenHash == "" {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				unauthorized(w)
				return
			}

			token := strings.TrimPrefix(header, "Bearer ")
			if token == header || token == "" {
				unauthorized(w)
				return
			}

			if err := crypto.VerifyToken(token, tokenHash); err != nil {
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="liquidity api"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}
