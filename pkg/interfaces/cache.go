package interfaces

import (
	"context"
	"time"
)

// CachePort определяет интерфейс для работы с системой кэширования
// Реализация может использовать Redis, Memcached или любую другую систему кэширования
type CachePort interface {
	// Get получает значение из кэша по ключу
	// Возвращает errors.ErrCacheMiss, если значение не найдено
	Get(ctx context.Context, key string) ([]byte, error)

	// Set сохраняет значение в кэше с указанным сроком действия
	// Если expiration равно 0, срок действия не устанавливается
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error

	// Delete удаляет значения из кэша по ключам
	Delete(ctx context.Context, keys ...string) error

	// DeleteByPattern удаляет все значения, соответствующие шаблону
	// Например, "publish:progress:*" удалит весь прогресс задач
	DeleteByPattern(ctx context.Context, pattern string) error

	// GetMulti получает несколько значений за один запрос
	// Если какой-то ключ не найден, он отсутствует в результирующей map
	GetMulti(ctx context.Context, keys []string) (map[string][]byte, error)

	// Increment увеличивает числовое значение ключа на указанную величину
	// Если ключ не существует, он будет создан со значением delta
	Increment(ctx context.Context, key string, delta int64) (int64, error)

	// Expire задает срок действия существующего ключа
	Expire(ctx context.Context, key string, expiration time.Duration) error

	// Ping проверяет доступность кэша
	Ping(ctx context.Context) error

	// Close закрывает соединение с системой кэширования
	Close() error
}
