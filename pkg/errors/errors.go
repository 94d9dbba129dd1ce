// Package errors содержит инфраструктурные ошибки, общие для адаптеров и сервисов
package errors

import "errors"

// ----------------- cache ------------------
var (
	// ErrCacheMiss возвращается, если ключ отсутствует в кэше
	ErrCacheMiss = errors.New("cache miss")
)

// ----------------- queue ------------------
var (
	// ErrJobNotFound задача отсутствует в очереди (удалена или никогда не существовала)
	ErrJobNotFound = errors.New("job not found")

	// ErrJobExists задача с таким идентификатором уже поставлена в очередь
	ErrJobExists = errors.New("job already exists")

	// ErrJobNotRetryable задача находится в состоянии, из которого повтор невозможен
	ErrJobNotRetryable = errors.New("job is not retryable in its current state")

	// ErrPermanentFailure помечает ошибку обработчика, для которой автоматический повтор бессмысленен
	ErrPermanentFailure = errors.New("permanent failure")
)

// Permanent оборачивает ошибку так, чтобы очередь не тратила на нее попытки
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() []error { return []error{e.err, ErrPermanentFailure} }

// IsPermanent сообщает, помечена ли ошибка как неповторяемая
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanentFailure)
}
