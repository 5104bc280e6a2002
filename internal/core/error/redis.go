package errx

import (
	"errors"
	"net/http"

	"github.com/redis/go-redis/v9"
)

// WrapRedis maps Redis errors to the unified AppError type. A missing key is
// not a failure for the cache layer, so redis.Nil maps to 404 and callers
// treat it as a miss.
func WrapRedis(err error) *AppError {
	if err == nil {
		return nil
	}

	if errors.Is(err, redis.Nil) {
		return New(err, http.StatusNotFound, RedisErrorMessage)
	}

	return New(err, http.StatusBadGateway, RedisErrorMessage)
}
