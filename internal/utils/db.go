package utils

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// GenerateConnectionString собирает DSN для pgxpool и проверяет параметры
func GenerateConnectionString(
	host, user, password, dbName, sslMode string,
	port, poolSize int,
	timeout time.Duration,
) (string, error) {
	if err := validateConnectionParams(host, user, password, dbName, sslMode, port, poolSize, timeout); err != nil {
		return "", err
	}

	var conStr strings.Builder
	conStr.WriteString("host=")
	conStr.WriteString(host)
	conStr.WriteString(" port=")
	conStr.WriteString(strconv.Itoa(port))
	conStr.WriteString(" user=")
	conStr.WriteString(user)
	conStr.WriteString(" password=")
	conStr.WriteString(password)
	conStr.WriteString(" dbname=")
	conStr.WriteString(dbName)
	conStr.WriteString(" sslmode=")
	conStr.WriteString(sslMode)

	if poolSize > 0 {
		conStr.WriteString(" pool_max_conns=")
		conStr.WriteString(strconv.Itoa(poolSize))
	}

	if timeout > 0 {
		conStr.WriteString(" connect_timeout=")
		conStr.WriteString(strconv.Itoa(int(timeout.Seconds())))
	}

	return conStr.String(), nil
}

// GenerateMigrationURL собирает postgres:// URL для golang-migrate
func GenerateMigrationURL(host, user, password, dbName, sslMode string, port int) (string, error) {
	if err := validateConnectionParams(host, user, password, dbName, sslMode, port, 0, 0); err != nil {
		return "", err
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     fmt.Sprintf("%s:%d", host, port),
		Path:     "/" + dbName,
		RawQuery: "sslmode=" + url.QueryEscape(sslMode),
	}
	return u.String(), nil
}

func validateConnectionParams(host, user, password, dbName, sslMode string, port, poolSize int, timeout time.Duration) error {
	if host == "" {
		return ErrStorageEmptyHostName
	}
	if port <= 0 || port > 65535 {
		return ErrStorageInvalidPortNumber
	}
	if user == "" {
		return ErrStorageEmptyUsername
	}
	if password == "" {
		return ErrStorageEmptyPassword
	}
	if dbName == "" {
		return ErrStorageInvalidDatabaseName
	}
	if sslMode == "" {
		return ErrStorageInvalidSslMode
	}
	if timeout < 0 {
		return ErrStorageInvalidTimeout
	}
	if poolSize < 0 {
		return ErrStorageInvalidPoolSize
	}
	return nil
}
