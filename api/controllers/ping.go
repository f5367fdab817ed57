package controllers

import (
	"net/http"

	"github.com/liminara/storefront/api/middleware"
	"github.com/liminara/storefront/api/responses"
)

func AdminPing() http.HandlerFunc {
	return scopedPing("admin")
}

func AgentPing() http.HandlerFunc {
	return scopedPing("agent")
}

func scopedPing(scope string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]string{"scope": scope, "status": "ok"}
		if role := middleware.RoleFromContext(r.Context()); role != "" {
			payload["role"] = role
		}
		responses.WriteSuccess(w, payload)
	}
}
