package database

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const defaultApplicationName = "notifystream"

func openPostgres(cfg Config) (*gorm.DB, error) {
	dsn, err := buildPostgresDSN(cfg)
	if err != nil {
		return nil, err
	}
	return gorm.Open(postgres.Open(dsn), gormConfig())
}

func buildPostgresDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}

	if cfg.User == "" || cfg.Name == "" {
		return "", errors.New("postgres configuration requires user and database name")
	}

	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	params := []string{
		pgParam("host", host),
		pgParam("port", fmt.Sprint(port)),
		pgParam("user", cfg.User),
		pgParam("dbname", cfg.Name),
	}
	if cfg.Password != "" {
		params = append(params, pgParam("password", cfg.Password))
	}

	options := map[string]string{
		"sslmode":          "disable",
		"application_name": defaultApplicationName,
	}
	for key, value := range cfg.Options {
		options[key] = value
	}

	keys := make([]string, 0, len(options))
	for key := range options {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		params = append(params, pgParam(key, options[key]))
	}

	return strings.Join(params, " "), nil
}

// pgParam renders a libpq keyword/value pair, quoting values that contain
// whitespace, quotes or backslashes.
func pgParam(key, value string) string {
	if value != "" && !strings.ContainsAny(value, " '\\") {
		return key + "=" + value
	}
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(value)
	return key + "='" + escaped + "'"
}
