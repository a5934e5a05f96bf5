package main

import (
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/shestoi/providerhub/internal/app"
	"github.com/shestoi/providerhub/internal/config"
	platformlogging "github.com/shestoi/providerhub/platform/logging"
)

func main() {
	// .env опционален, переменные окружения имеют приоритет
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	// Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := platformlogging.New(platformlogging.Config{
		ServiceName: "providerhub",
		Env:         string(cfg.AppEnv),
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	// Выводим конфигурацию в лог
	cfg.Log(logger)

	// Создаём и настраиваем приложение через DI container
	application, err := app.Build(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to build app", zap.Error(err))
	}

	// Запускаем сервис
	if err := application.Run(); err != nil {
		logger.Fatal("Service error", zap.Error(err))
	}
}
