package migration

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/athebyme/listing-publisher/pkg/interfaces"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Migrator применяет SQL-миграции через golang-migrate
type Migrator struct {
	migrate *migrate.Migrate
	logger  interfaces.LoggerPort
}

// New создает Migrator из встроенной файловой системы миграций и URL базы
func New(migrations fs.FS, databaseURL string, logger interfaces.LoggerPort) (*Migrator, error) {
	source, err := iofs.New(migrations, ".")
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения миграций: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	return &Migrator{migrate: m, logger: logger.WithField("component", "migrate")}, nil
}

// Up применяет все новые миграции
func (m *Migrator) Up() error {
	m.logger.Info("Применение миграций")

	if err := m.migrate.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info("Новых миграций нет")
			return nil
		}
		return fmt.Errorf("migration up failed: %w", err)
	}

	return m.logVersion("Миграции применены")
}

// Down откатывает все миграции
func (m *Migrator) Down() error {
	m.logger.Warn("Откат всех миграций")

	if err := m.migrate.Down(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info("Нечего откатывать")
			return nil
		}
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

// Steps применяет n миграций (отрицательное n откатывает)
func (m *Migrator) Steps(n int) error {
	if err := m.migrate.Steps(n); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("migration steps failed: %w", err)
	}
	return m.logVersion("Миграции применены")
}

// Force выставляет версию без выполнения миграций; для исправления dirty-состояния
func (m *Migrator) Force(version int) error {
	m.logger.Warn("Принудительная установка версии миграций",
		interfaces.LogField{Key: "version", Value: version})

	if err := m.migrate.Force(version); err != nil {
		return fmt.Errorf("failed to force version %d: %w", version, err)
	}
	return nil
}

// Version текущая версия схемы; 0 если миграции не применялись
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

func (m *Migrator) logVersion(msg string) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	m.logger.Info(msg,
		interfaces.LogField{Key: "version", Value: version},
		interfaces.LogField{Key: "dirty", Value: dirty},
	)
	return nil
}

// Close освобождает источник и соединение с базой
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	if sourceErr != nil {
		return fmt.Errorf("failed to close source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("failed to close database: %w", dbErr)
	}
	return nil
}
