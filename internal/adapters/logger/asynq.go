package logger

import (
	"fmt"

	"github.com/athebyme/listing-publisher/pkg/interfaces"
)

// AsynqLogger направляет журнал движка очереди в общий LoggerPort
type AsynqLogger struct {
	log interfaces.LoggerPort
}

// NewAsynqLogger создает мост LoggerPort -> asynq.Logger
func NewAsynqLogger(log interfaces.LoggerPort) *AsynqLogger {
	return &AsynqLogger{log: log.WithField("component", "asynq")}
}

func (a *AsynqLogger) Debug(args ...interface{}) { a.log.Debug(fmt.Sprint(args...)) }

func (a *AsynqLogger) Info(args ...interface{}) { a.log.Info(fmt.Sprint(args...)) }

func (a *AsynqLogger) Warn(args ...interface{}) { a.log.Warn(fmt.Sprint(args...)) }

func (a *AsynqLogger) Error(args ...interface{}) { a.log.Error(fmt.Sprint(args...)) }

func (a *AsynqLogger) Fatal(args ...interface{}) { a.log.Fatal(fmt.Sprint(args...)) }
