package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/athebyme/listing-publisher/internal/utils"
	pkgerrors "github.com/athebyme/listing-publisher/pkg/errors"
	"github.com/athebyme/listing-publisher/pkg/interfaces"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

// errorResponse представляет структуру ответа с ошибкой
type errorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

// response представляет структуру успешного ответа
type response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

var validate = newValidator()

// newValidator называет поля в ошибках по json-тегам
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func writeData(w http.ResponseWriter, r *http.Request, status int, data, meta interface{}) {
	render.Status(r, status)
	render.JSON(w, r, response{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	render.Status(r, status)
	render.JSON(w, r, errorResponse{
		Error:   code,
		Code:    status,
		Message: message,
	})
}

// writeServiceError переводит ошибки сервисов в HTTP статусы
func writeServiceError(w http.ResponseWriter, r *http.Request, logger interfaces.LoggerPort, err error, message string) {
	switch {
	case errors.Is(err, utils.ErrListingNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", "Листинг не найден")
	case errors.Is(err, pkgerrors.ErrJobNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", "Задача не найдена")
	case errors.Is(err, pkgerrors.ErrJobNotRetryable):
		writeError(w, r, http.StatusConflict, "conflict", "Задачу нельзя повторить в текущем состоянии")
	case errors.Is(err, utils.ErrInvalidCleanState), errors.Is(err, utils.ErrInvalidArgument):
		writeError(w, r, http.StatusBadRequest, "bad_request", err.Error())
	default:
		logger.ErrorWithContext(r.Context(), message,
			interfaces.LogField{Key: "error", Value: err.Error()})
		writeError(w, r, http.StatusInternalServerError, "internal_error", message)
	}
}

// decodeBody читает JSON тело и проверяет его тегами validate. Пустое тело допустимо
func decodeBody(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("Некорректный формат данных: %w", err)
	}
	return validateStruct(dst)
}

func validateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err
	}

	messages := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		if fe.Param() != "" {
			messages = append(messages, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		messages = append(messages, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
	}
	return errors.New(strings.Join(messages, "; "))
}
