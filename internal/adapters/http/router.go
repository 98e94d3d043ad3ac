package httpadapter

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ardmere/crmparse/internal/config"
	"github.com/ardmere/crmparse/internal/core/domain"
	"github.com/ardmere/crmparse/internal/core/ports"
	"github.com/ardmere/crmparse/internal/observability/metrics"
)

const serviceName = "api"

type Router struct {
	cfg       config.Config
	ingestor  ports.EventIngestor
	preproc   ports.EventPreprocessor
	engine    ports.ExtractionEngine
	processor ports.EventProcessor
	reader    ports.InteractionReader
	agent     ports.AgentService
	reports   ports.ReportService
	metrics   *metrics.HTTPServerMetrics
}

func NewRouter(
	cfg config.Config,
	ingestor ports.EventIngestor,
	preproc ports.EventPreprocessor,
	engine ports.ExtractionEngine,
	processor ports.EventProcessor,
	reader ports.InteractionReader,
	agent ports.AgentService,
	reports ports.ReportService,
	m *metrics.HTTPServerMetrics,
) *Router {
	if m == nil {
		m = metrics.NewHTTPServerMetrics(serviceName)
	}
	return &Router{
		cfg:       cfg,
		ingestor:  ingestor,
		preproc:   preproc,
		engine:    engine,
		processor: processor,
		reader:    reader,
		agent:     agent,
		reports:   reports,
		metrics:   m,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.Handle("/metrics", rt.metrics.Handler())
	mux.HandleFunc("/openapi.yaml", rt.openAPIContract)
	mux.HandleFunc("/v1/parse", rt.parseEvent)
	mux.HandleFunc("/v1/extract", rt.extractEvent)
	mux.HandleFunc("/v1/preprocess", rt.preprocessEvent)
	mux.HandleFunc("/v1/events", rt.ingestWebhook)
	mux.HandleFunc("/v1/events/gmail", rt.ingestGmail)
	mux.HandleFunc("/v1/events/zoom", rt.ingestZoom)
	mux.HandleFunc("/v1/events/whatsapp", rt.ingestWhatsApp)
	mux.HandleFunc("/v1/events/calendar", rt.ingestCalendar)
	mux.HandleFunc("/v1/interactions/", rt.getInteractionByID)
	mux.HandleFunc("/v1/agent/chat", rt.agentChat)
	mux.HandleFunc("/v1/models", rt.listModels)
	mux.HandleFunc("/v1/chat/completions", rt.chatCompletions)
	mux.HandleFunc("/v1/reports/pipeline.xlsx", rt.pipelineReport)

	var handler http.Handler = mux
	handler = contractValidationMiddleware(handler)
	handler = rt.metrics.Middleware(serviceName, handler)
	if rt.cfg.APIMaxConcurrent > 0 {
		handler = backpressureMiddleware(handler, rt.cfg.APIMaxConcurrent, backpressureWait(rt.cfg.APIBackpressureWaitMS))
	}
	if rt.cfg.APIRateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseEvent runs the full pipeline synchronously: preprocess, extract,
// store. The response carries the generated interaction identifier.
func (rt *Router) parseEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var event domain.InteractionEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	outcome, err := rt.processor.Process(r.Context(), event)
	if err != nil {
		writeError(w, err)
		return
	}

	rt.metrics.RecordExtraction(serviceName, string(event.Channel), outcome.Confidence)
	rt.metrics.RecordInteractionStored(serviceName, string(event.Channel))
	if outcome.Data.DealValue != nil && *outcome.Data.DealValue > 0 {
		rt.metrics.RecordDealExtracted(serviceName)
	}

	writeJSON(w, http.StatusOK, outcome)
}

// extractEvent exposes the extraction engine alone, without storage.
func (rt *Router) extractEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var processed domain.ProcessedEvent
	if err := json.NewDecoder(r.Body).Decode(&processed); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	result := rt.engine.Extract(r.Context(), processed)
	rt.metrics.RecordExtraction(serviceName, string(processed.Channel), result.Confidence)
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) preprocessEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var event domain.InteractionEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	processed, err := rt.preproc.Preprocess(r.Context(), event)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, processed)
}

func (rt *Router) ingestWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var event domain.InteractionEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	accepted, err := rt.ingestor.IngestWebhook(r.Context(), event)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, accepted)
}

func (rt *Router) ingestGmail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var msg domain.GmailMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	event, err := rt.ingestor.IngestGmail(r.Context(), msg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, event)
}

func (rt *Router) ingestZoom(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var meeting domain.ZoomMeeting
	if err := json.NewDecoder(r.Body).Decode(&meeting); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	event, err := rt.ingestor.IngestZoom(r.Context(), meeting)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, event)
}

func (rt *Router) ingestWhatsApp(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var msg domain.WhatsAppMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	event, err := rt.ingestor.IngestWhatsApp(r.Context(), msg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, event)
}

func (rt *Router) ingestCalendar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var cal domain.CalendarEvent
	if err := json.NewDecoder(r.Body).Decode(&cal); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	event, err := rt.ingestor.IngestCalendar(r.Context(), cal)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, event)
}

func (rt *Router) getInteractionByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/interactions/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "interaction id is required"})
		return
	}

	record, err := rt.reader.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (rt *Router) agentChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req domain.AgentChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	result, err := rt.agent.Chat(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	rt.recordAgentRun(result)
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) pipelineReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	// Render into memory first so failures can still produce a JSON error.
	var buf bytes.Buffer
	if err := rt.reports.WritePipelineReport(r.Context(), &buf); err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="pipeline.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (rt *Router) recordAgentRun(result *domain.AgentRunResult) {
	status := "success"
	if result.FallbackReason != "" {
		status = "fallback"
	}
	rt.metrics.RecordAgentRun(serviceName, status, result.Iterations)
	for _, event := range result.ToolEvents {
		rt.metrics.RecordAgentToolCall(serviceName, event.Tool, event.Status)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}
