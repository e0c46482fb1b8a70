package httpapi

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
)

// userIDHeader carries the caller identity. There is no session layer; the
// header is trusted as-is, the way a reverse proxy would inject it.
const userIDHeader = "X-User-ID"

var (
	errMissingUser = errors.New("`X-User-ID` header is missing")
	errInvalidUser = errors.New("invalid user id")
)

// requestUser extracts and validates the caller's user id.
func requestUser(r *http.Request) (uuid.UUID, error) {
	v := r.Header.Get(userIDHeader)
	if v == "" {
		return uuid.Nil, errMissingUser
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return uuid.Nil, errInvalidUser
	}
	return id, nil
}
