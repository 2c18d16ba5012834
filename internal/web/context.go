package web

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/JonMunkholm/DanceEntry/internal/auth"
	"github.com/JonMunkholm/DanceEntry/internal/core"
)

// actorFrom returns the service actor for the authenticated caller. Routes
// behind the session middleware always carry an identity; elsewhere the
// zero actor has no rights.
func actorFrom(r *http.Request) core.Actor {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		return core.Actor{}
	}
	return core.Actor{UserID: id.UserID, Admin: id.IsAdmin()}
}

// uuidParam parses a UUID path parameter. A malformed id cannot name any
// row, so it reports notFound.
func uuidParam(r *http.Request, name string, notFound error) (uuid.UUID, error) {
	id, err := uuid.Parse(urlParam(r, name))
	if err != nil {
		return uuid.Nil, notFound
	}
	return id, nil
}
