package shared

import (
	"errors"

	"github.com/lotkeeper/lotkeeper/internal/platform/httpx"
)

// UserSafeMessage returns an error message that can be shown to API callers.
// Domain errors wrapping the httpx sentinels are safe by construction; anything
// else is replaced with a generic message so internals never leak.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, httpx.ErrNotFound),
		errors.Is(err, httpx.ErrDuplicate),
		errors.Is(err, httpx.ErrValidation),
		errors.Is(err, httpx.ErrConflict):
		return err.Error()
	}
	return "internal error, check server logs"
}
