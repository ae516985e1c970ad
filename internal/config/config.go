package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"liquidity/pkg/crypto"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Security     SecurityConfig
	Engine       EngineConfig
	Integrations IntegrationsConfig
	Logging      LoggingConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port     int
	Host     string
	UseHTTPS bool
	CertFile string
	KeyFile  string
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	EncryptionKey string // ключ AES-256 для шифрования API-ключей интеграций
	APITokenHash  string // bcrypt-хэш операторского токена (пусто = auth выключен)
}

// EngineConfig - настройки движка управления ликвидностью
type EngineConfig struct {
	TickInterval   time.Duration // период запуска цикла оценки правил
	OrderTimeout   time.Duration // таймаут одного внешнего вызова исполнения
	PollTimeout    time.Duration // таймаут одного опроса состояния
	BalanceTimeout time.Duration // таймаут чтения баланса
	BalanceMaxAge  time.Duration // допустимый возраст кэшированного баланса

	// Retry для внешних вызовов
	MaxRetries   int
	RetryBackoff time.Duration

	// Хранение журнала уведомлений
	NotificationRetention time.Duration
}

// IntegrationsConfig - учётные данные внешних систем
type IntegrationsConfig struct {
	Kraken     KrakenConfig
	Boltz      BoltzConfig
	Clementine ClementineConfig
}

// KrakenConfig - доступ к бирже Kraken
type KrakenConfig struct {
	BaseURL   string
	APIKey    string
	APISecret string
}

// BoltzConfig - доступ к Boltz (reverse swap BTC -> cBTC)
type BoltzConfig struct {
	BaseURL      string
	ClaimAddress string // адрес получателя на Citrea
}

// ClementineConfig - доступ к bridge Clementine
type ClementineConfig struct {
	BaseURL string
	APIKey  string
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnvAsInt("SERVER_PORT", 8080),
			Host:     getEnv("SERVER_HOST", "0.0.0.0"),
			UseHTTPS: getEnvAsBool("USE_HTTPS", false),
			CertFile: getEnv("CERT_FILE", ""),
			KeyFile:  getEnv("KEY_FILE", ""),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "liquidity"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Security: SecurityConfig{
			EncryptionKey: getEnv("ENCRYPTION_KEY", ""),
			APITokenHash:  getEnv("API_TOKEN_HASH", ""),
		},
		Engine: EngineConfig{
			TickInterval:   getEnvAsDuration("ENGINE_TICK_INTERVAL", 1*time.Minute),
			OrderTimeout:   getEnvAsDuration("ORDER_TIMEOUT", 30*time.Second),
			PollTimeout:    getEnvAsDuration("POLL_TIMEOUT", 15*time.Second),
			BalanceTimeout: getEnvAsDuration("BALANCE_TIMEOUT", 10*time.Second),
			BalanceMaxAge:  getEnvAsDuration("BALANCE_MAX_AGE", 5*time.Minute),

			MaxRetries:   getEnvAsInt("MAX_RETRIES", 3),
			RetryBackoff: getEnvAsDuration("RETRY_BACKOFF", 500*time.Millisecond),

			NotificationRetention: getEnvAsDuration("NOTIFICATION_RETENTION", 30*24*time.Hour),
		},
		Integrations: IntegrationsConfig{
			Kraken: KrakenConfig{
				BaseURL:   getEnv("KRAKEN_BASE_URL", "https://api.kraken.com"),
				APIKey:    getEnv("KRAKEN_API_KEY", ""),
				APISecret: getEnv("KRAKEN_API_SECRET", ""),
			},
			Boltz: BoltzConfig{
				BaseURL:      getEnv("BOLTZ_BASE_URL", "https://api.boltz.exchange/v2"),
				ClaimAddress: getEnv("BOLTZ_CLAIM_ADDRESS", ""),
			},
			Clementine: ClementineConfig{
				BaseURL: getEnv("CLEMENTINE_BASE_URL", ""),
				APIKey:  getEnv("CLEMENTINE_API_KEY", ""),
			},
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.validateSecurity(); err != nil {
		return nil, err
	}

	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	if err := cfg.resolveSecrets(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateSecurity проверяет параметры безопасности
func (c *Config) validateSecurity() error {
	// Ключ нужен только если секреты интеграций хранятся зашифрованными
	if c.Security.EncryptionKey != "" && len(c.Security.EncryptionKey) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes for AES-256")
	}

	return nil
}

// resolveSecrets расшифровывает секреты интеграций с префиксом "enc:".
// Открытые значения проходят без изменений.
func (c *Config) resolveSecrets() error {
	key := []byte(c.Security.EncryptionKey)

	secrets := []struct {
		name  string
		value *string
	}{
		{"KRAKEN_API_KEY", &c.Integrations.Kraken.APIKey},
		{"KRAKEN_API_SECRET", &c.Integrations.Kraken.APISecret},
		{"CLEMENTINE_API_KEY", &c.Integrations.Clementine.APIKey},
	}

	for _, s := range secrets {
		if !strings.HasPrefix(*s.value, crypto.EncryptedPrefix) {
			continue
		}
		if c.Security.EncryptionKey == "" {
			return fmt.Errorf("%s is encrypted but ENCRYPTION_KEY is not set", s.name)
		}
		plain, err := crypto.ResolveSecret(*s.value, key)
		if err != nil {
			return fmt.Errorf("failed to decrypt %s: %w", s.name, err)
		}
		*s.value = plain
	}

	return nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	if c.Engine.TickInterval < time.Second {
		return fmt.Errorf("ENGINE_TICK_INTERVAL must be at least 1s, got %v", c.Engine.TickInterval)
	}

	if c.Engine.OrderTimeout <= 0 {
		return fmt.Errorf("ORDER_TIMEOUT must be positive, got %v", c.Engine.OrderTimeout)
	}

	if c.Engine.PollTimeout <= 0 {
		return fmt.Errorf("POLL_TIMEOUT must be positive, got %v", c.Engine.PollTimeout)
	}

	if c.Engine.BalanceTimeout <= 0 {
		return fmt.Errorf("BALANCE_TIMEOUT must be positive, got %v", c.Engine.BalanceTimeout)
	}

	if c.Engine.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES cannot be negative, got %d", c.Engine.MaxRetries)
	}

	if c.Engine.MaxRetries > 10 {
		return fmt.Errorf("MAX_RETRIES should not exceed 10, got %d", c.Engine.MaxRetries)
	}

	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
