package config // package config loads application configuration from environment variables

import (
	"log"           // log is used to report configuration errors and halt execution
	"os"            // os provides access to environment variables
	"path/filepath" // filepath builds default paths under the data directory
	"strconv"       // strconv converts strings to other types
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Only the JWT secret is required; every other
// value falls back to a default suited to a single-device install that keeps
// its state under DataDir.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	DataDir        string // directory owned by the application (database, prefs, images)
	DBDriver       string // "sqlite" (embedded, default) or "mysql"
	DBPath         string // sqlite database file
	DBUser         string // mysql username
	DBPass         string // mysql password (optional)
	DBHost         string // mysql host address
	DBPort         string // mysql port number
	DBName         string // mysql database name
	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time‑to‑live in minutes
	BcryptCost     int    // bcrypt cost for password hashing
	SessionBackend string // "file" (default) or "redis"
	LogLevel       string // logrus level name
	LogFormat      string // "text" or "json"
	RabbitURL      string // AMQP broker URL; empty disables order events
	OrderConsumer  bool   // run the order log consumer inside the server
	SeedCatalog    bool   // seed the default products on startup
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	dataDir := envStr("DATA_DIR", "data")
	env := envStr("APP_ENV", "dev")
	format := "text"
	if env != "dev" {
		format = "json"
	}
	return Config{
		Env:            env,
		Port:           envStr("APP_PORT", "8080"),
		DataDir:        dataDir,
		DBDriver:       envStr("DB_DRIVER", "sqlite"),
		DBPath:         envStr("DB_PATH", filepath.Join(dataDir, "huertohogar.db")),
		DBUser:         os.Getenv("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"), // empty allowed
		DBHost:         envStr("DB_HOST", "localhost"),
		DBPort:         envStr("DB_PORT", "3306"),
		DBName:         envStr("DB_NAME", "huertohogar"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN", 60*24),
		BcryptCost:     mustInt("BCRYPT_COST", 12),
		SessionBackend: envStr("SESSION_BACKEND", "file"),
		LogLevel:       envStr("LOG_LEVEL", "info"),
		LogFormat:      envStr("LOG_FORMAT", format),
		RabbitURL:      rabbitURL(),
		OrderConsumer:  envBool("ORDER_CONSUMER_ENABLED", false),
		SeedCatalog:    envBool("SEED_CATALOG", true),
	}
}

// PrefsPath is the file backing the key-value preference store.
func (c Config) PrefsPath() string { return filepath.Join(c.DataDir, "user_prefs.json") }

// ImagesDir is the application-owned directory for profile pictures.
func (c Config) ImagesDir() string { return filepath.Join(c.DataDir, "images") }

// rabbitURL accepts both RABBITMQ_URL and AMQP_URL.
func rabbitURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	return os.Getenv("AMQP_URL")
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt reads an optional integer.  A value that is present but not an
// integer is a configuration mistake and stops the program.
func mustInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
