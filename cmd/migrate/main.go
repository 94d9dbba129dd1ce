package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/athebyme/listing-publisher/config"
	"github.com/athebyme/listing-publisher/internal/adapters/logger"
	"github.com/athebyme/listing-publisher/internal/adapters/migration"
	"github.com/athebyme/listing-publisher/internal/utils"
	"github.com/athebyme/listing-publisher/migrations"
	"github.com/athebyme/listing-publisher/pkg/interfaces"
)

func main() {
	var (
		configPath string
		logLevel   string
	)
	flag.StringVar(&configPath, "config", "", "Путь к файлу конфигурации")
	flag.StringVar(&logLevel, "log-level", "info", "Уровень логирования")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command := args[0]

	log, err := logger.NewZapLogger(logLevel, false)
	if err != nil {
		fmt.Printf("Ошибка инициализации логгера: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal("Ошибка загрузки конфигурации", interfaces.LogField{Key: "error", Value: err.Error()})
	}

	databaseURL, err := utils.GenerateMigrationURL(
		cfg.Postgres.Host,
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.DBName,
		cfg.Postgres.SSLMode,
		cfg.Postgres.Port,
	)
	if err != nil {
		log.Fatal("Ошибка генерации URL базы данных", interfaces.LogField{Key: "error", Value: err.Error()})
	}

	m, err := migration.New(migrations.FS, databaseURL, log)
	if err != nil {
		log.Fatal("Ошибка инициализации миграций", interfaces.LogField{Key: "error", Value: err.Error()})
	}
	defer m.Close()

	switch command {
	case "up":
		err = m.Up()

	case "down":
		err = m.Down()

	case "step":
		if len(args) < 2 {
			log.Fatal("Не указано число шагов: migrate step <n>")
		}
		n, convErr := strconv.Atoi(args[1])
		if convErr != nil {
			log.Fatal("Некорректное число шагов", interfaces.LogField{Key: "value", Value: args[1]})
		}
		err = m.Steps(n)

	case "version":
		version, dirty, versionErr := m.Version()
		if versionErr != nil {
			err = versionErr
			break
		}
		log.Info("Текущая версия схемы",
			interfaces.LogField{Key: "version", Value: version},
			interfaces.LogField{Key: "dirty", Value: dirty},
		)

	case "force":
		if len(args) < 2 {
			log.Fatal("Не указана версия: migrate force <version>")
		}
		version, convErr := strconv.Atoi(args[1])
		if convErr != nil {
			log.Fatal("Некорректная версия", interfaces.LogField{Key: "value", Value: args[1]})
		}
		err = m.Force(version)

	default:
		log.Error("Неизвестная команда", interfaces.LogField{Key: "command", Value: command})
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		log.Fatal("Ошибка выполнения миграций",
			interfaces.LogField{Key: "command", Value: command},
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
}

func printUsage() {
	fmt.Println(`Миграции схемы listing-publisher

Использование:
  migrate [флаги] <команда> [аргументы]

Команды:
  up                применить все новые миграции
  down              откатить все миграции
  step <n>          применить n миграций (отрицательное n откатывает)
  version           показать текущую версию схемы
  force <version>   выставить версию без выполнения миграций

Флаги:
  -config string    путь к файлу конфигурации
  -log-level string уровень логирования (по умолчанию info)`)
}
