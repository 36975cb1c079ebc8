package api

import (
	"net/http"

	"github.com/arbiter-ai/arbiter/pkg/routes"
)

func registerRoutes(mux *http.ServeMux, domain *Domain) {
	routes.Register(
		mux,
		domain.Cases.Handler().Routes(),
		domain.Matrices.Handler().Routes(),
		domain.Learning.Handler().Routes(),
		domain.Prompts.Handler().Routes(),
	)
}
