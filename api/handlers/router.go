package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router wires every handler group onto a single mux using Go's method-
// and-wildcard-aware ServeMux patterns (§4.8, §6).
type Router struct {
	Requirements *StageHandler
	Planning     *StageHandler
	Stories      *StageHandler
	Prompt       *StageHandler
	Review       *ReviewHandler
	Health       *HealthHandler
	Progress     *ProgressHandler
}

func NewRouter(requirements, planning, stories, prompt *StageHandler, reviewH *ReviewHandler, healthH *HealthHandler, progressH *ProgressHandler) *Router {
	return &Router{
		Requirements: requirements,
		Planning:     planning,
		Stories:      stories,
		Prompt:       prompt,
		Review:       reviewH,
		Health:       healthH,
		Progress:     progressH,
	}
}

func (rt *Router) Mux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /requirements", rt.Requirements.StartRequirements)
	mux.HandleFunc("GET /requirements/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		rt.Requirements.Status(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("GET /requirements/{id}", func(w http.ResponseWriter, r *http.Request) {
		rt.Requirements.Result(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("GET /requirements/can-start/{parentId}", func(w http.ResponseWriter, r *http.Request) {
		rt.Requirements.CanStart(w, r, r.PathValue("parentId"))
	})

	mux.HandleFunc("POST /planning", rt.Planning.StartPlanning)
	mux.HandleFunc("GET /planning/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		rt.Planning.Status(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("GET /planning/{id}", func(w http.ResponseWriter, r *http.Request) {
		rt.Planning.Result(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("GET /planning/can-start/{parentId}", func(w http.ResponseWriter, r *http.Request) {
		rt.Planning.CanStart(w, r, r.PathValue("parentId"))
	})

	mux.HandleFunc("POST /stories", rt.Stories.StartStories)
	mux.HandleFunc("GET /stories/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		rt.Stories.Status(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("GET /stories/{id}", func(w http.ResponseWriter, r *http.Request) {
		rt.Stories.Result(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("GET /stories/can-start/{parentId}", func(w http.ResponseWriter, r *http.Request) {
		rt.Stories.CanStart(w, r, r.PathValue("parentId"))
	})
	mux.HandleFunc("GET /stories/{id}/{index}", func(w http.ResponseWriter, r *http.Request) {
		rt.Stories.StoryAt(w, r, r.PathValue("id"), r.PathValue("index"))
	})

	mux.HandleFunc("POST /prompt", rt.Prompt.StartPrompt)
	mux.HandleFunc("GET /prompt/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		rt.Prompt.Status(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("GET /prompt/{id}", func(w http.ResponseWriter, r *http.Request) {
		rt.Prompt.Result(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("GET /prompt/can-start/{parentId}", func(w http.ResponseWriter, r *http.Request) {
		rt.Prompt.CanStart(w, r, r.PathValue("parentId"))
	})

	mux.HandleFunc("GET /review/pending", rt.Review.ListPending)
	mux.HandleFunc("GET /review/{id}", func(w http.ResponseWriter, r *http.Request) {
		rt.Review.Get(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("POST /review/{id}/approve", func(w http.ResponseWriter, r *http.Request) {
		rt.Review.Approve(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("POST /review/{id}/reject", func(w http.ResponseWriter, r *http.Request) {
		rt.Review.Reject(w, r, r.PathValue("id"))
	})

	mux.HandleFunc("GET /health/providers", rt.Health.ListProviders)
	mux.HandleFunc("GET /health/providers/{name}", func(w http.ResponseWriter, r *http.Request) {
		rt.Health.Provider(w, r, r.PathValue("name"))
	})
	mux.HandleFunc("GET /health/review", rt.Health.Review)

	mux.HandleFunc("GET /project/{id}/progress", func(w http.ResponseWriter, r *http.Request) {
		rt.Progress.Progress(w, r, r.PathValue("id"))
	})

	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteSuccess(w, map[string]string{"status": "ok"})
	})

	return mux
}
