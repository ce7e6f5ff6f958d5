package audit

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/foodshed/market-api/internal/common"
	"github.com/foodshed/market-api/internal/obs"
)

// HTTPRecorder turns handled requests into audit entries. Recording happens
// after the handler has run so the response status is known.
type HTTPRecorder struct {
	Service   *Service
	OnError   func(error)
	ActorFunc func(*http.Request) Actor
}

// HTTPConfig describes how one route maps onto an audit entry.
type HTTPConfig struct {
	Action          string
	ResourceType    string
	ResourceIDParam string
	MetadataFunc    func(*http.Request, int) map[string]any
	ActorFunc       func(*http.Request) Actor
}

// Middleware wraps a handler so that every completed request of the route is
// recorded with the configured action and resource.
func (rec HTTPRecorder) Middleware(cfg HTTPConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rec.Service == nil || !rec.Service.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			recorder := obs.NewStatusRecorder(w)
			next.ServeHTTP(recorder, r)

			entry := auditEntry{
				actor:      rec.resolveActor(r, cfg),
				resourceID: resourceID(r, cfg),
				metadata:   encodeMetadata(r, cfg, recorder.Status()),
			}
			err := rec.Service.Record(r.Context(), entry.actor, cfg.Action,
				cfg.ResourceType, entry.resourceID, r, recorder.Status(), entry.metadata)
			if err != nil && rec.OnError != nil {
				rec.OnError(err)
			}
		})
	}
}

type auditEntry struct {
	actor      Actor
	resourceID string
	metadata   []byte
}

func (rec HTTPRecorder) resolveActor(r *http.Request, cfg HTTPConfig) Actor {
	if cfg.ActorFunc != nil {
		return cfg.ActorFunc(r)
	}
	if rec.ActorFunc != nil {
		return rec.ActorFunc(r)
	}
	if r != nil {
		if userID, ok := common.UserID(r.Context()); ok && userID != "" {
			return Actor{Kind: ActorKindUser, UserID: &userID}
		}
	}
	return Actor{Kind: ActorKindAnonymous}
}

func resourceID(r *http.Request, cfg HTTPConfig) string {
	if cfg.ResourceIDParam == "" {
		return ""
	}
	return chi.URLParam(r, cfg.ResourceIDParam)
}

func encodeMetadata(r *http.Request, cfg HTTPConfig, status int) []byte {
	if cfg.MetadataFunc == nil {
		return nil
	}
	payload := cfg.MetadataFunc(r, status)
	if payload == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}
