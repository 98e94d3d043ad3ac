package httpadapter

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	legacyrouter "github.com/getkin/kin-openapi/routers/legacy"
)

//go:embed openapi.yaml
var openAPIDocument []byte

// loadContract parses and validates the embedded contract and builds a
// request router over it. The result is shared by startup validation
// and the request validation middleware.
var loadContract = sync.OnceValues(func() (routers.Router, error) {
	ctx := context.Background()
	loader := &openapi3.Loader{Context: ctx}
	doc, err := loader.LoadFromData(openAPIDocument)
	if err != nil {
		return nil, fmt.Errorf("load openapi contract: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate openapi contract: %w", err)
	}
	router, err := legacyrouter.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("build openapi router: %w", err)
	}
	return router, nil
})

// ValidateOpenAPIContract checks the embedded API contract for
// structural errors, so drift between code and contract fails at
// startup rather than in a client.
func ValidateOpenAPIContract() error {
	_, err := loadContract()
	return err
}

// contractValidationMiddleware checks ingest and parse request bodies
// against the embedded contract before any handler runs. Validation
// restores the body, so handlers decode it as usual.
func contractValidationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !requiresContractValidation(r) {
			next.ServeHTTP(w, r)
			return
		}

		router, err := loadContract()
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "api contract unavailable"})
			return
		}

		route, pathParams, err := router.FindRoute(r)
		if err != nil {
			// Paths the contract does not know fall through to the mux.
			next.ServeHTTP(w, r)
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    r,
			PathParams: pathParams,
			Route:      route,
			Options: &openapi3filter.Options{
				AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
			},
		}
		if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": contractErrorMessage(err)})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requiresContractValidation limits body validation to the ingestion
// surfaces. The agent and OpenAI-compatible endpoints keep their own
// more lenient decoding.
func requiresContractValidation(r *http.Request) bool {
	if r.Method != http.MethodPost {
		return false
	}
	switch r.URL.Path {
	case "/v1/parse", "/v1/extract", "/v1/preprocess", "/v1/events":
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/v1/events/")
}

// contractErrorMessage keeps the first line of a validation error and
// drops the schema dump kin-openapi appends below it.
func contractErrorMessage(err error) string {
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return strings.TrimSpace(msg)
}

func (rt *Router) openAPIContract(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openAPIDocument)
}
