// Package securityapi implementa as rotas /api/security/* servidas pelo
// próprio gateway: verificação do site e recebimento de relatórios de
// problemas de segurança.
package securityapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"anires-gateway/internal/observability"
	"anires-gateway/middleware/security"
	"anires-gateway/middleware/security/application"
)

// PhishingChecker consulta se o domínio consta em listas de phishing.
type PhishingChecker interface {
	IsPhishing(ctx context.Context, domain string) (bool, error)
}

// noPhishing é o verificador padrão enquanto não há integração com uma lista externa.
type noPhishing struct{}

func (noPhishing) IsPhishing(context.Context, string) (bool, error) { return false, nil }

type Handler struct {
	TrustedDomains []string
	Phishing       PhishingChecker
	// TrustForwardedProto segue o mesmo ajuste do redirecionamento HTTPS.
	TrustForwardedProto bool
	ClientIP            func(r *http.Request) string
	Logger              *zap.Logger
	Now                 func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// Routes monta as rotas relativas a /api/security.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/verify-site", h.VerifySite)
	r.Post("/report-issue", h.ReportIssue)
	return r
}

type verifyResponse struct {
	IsSecure       bool     `json:"isSecure"`
	SecurityIssues []string `json:"securityIssues"`
	Domain         string   `json:"domain"`
	Timestamp      string   `json:"timestamp"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func (h *Handler) VerifySite(w http.ResponseWriter, r *http.Request) {
	log := observability.OrNop(h.Logger)
	host := r.Host

	issues := []string{}
	if !application.IsTrustedHost(host, h.TrustedDomains) {
		issues = append(issues, "Domínio não oficial")
	}
	if security.Scheme(r, h.TrustForwardedProto) != "https" && !application.IsLocalHost(host) {
		issues = append(issues, "Conexão não segura")
	}

	checker := h.Phishing
	if checker == nil {
		checker = noPhishing{}
	}
	phishing, err := checker.IsPhishing(r.Context(), host)
	if err != nil {
		log.Error("Erro ao verificar segurança do site", zap.String("domain", host), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "Falha ao verificar segurança",
			Message: "Ocorreu um erro ao processar a solicitação",
		})
		return
	}
	if phishing {
		issues = append(issues, "Possível site de phishing")
	}

	writeJSON(w, http.StatusOK, verifyResponse{
		IsSecure:       len(issues) == 0,
		SecurityIssues: issues,
		Domain:         host,
		Timestamp:      h.now().UTC().Format(time.RFC3339Nano),
	})
}

type reportRequest struct {
	IssueType    string `json:"issueType"`
	Description  string `json:"description"`
	URL          string `json:"url"`
	UserAgent    string `json:"userAgent"`
	ContactEmail string `json:"contactEmail"`
}

type reportResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	ReferenceID string `json:"referenceId"`
}

const maxReportBytes = 64 << 10

func (h *Handler) ReportIssue(w http.ResponseWriter, r *http.Request) {
	log := observability.OrNop(h.Logger)

	var req reportRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxReportBytes)).Decode(&req); err != nil {
		log.Error("Erro ao processar relatório de segurança", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "Falha ao processar relatório",
			Message: "Ocorreu um erro ao processar a solicitação",
		})
		return
	}
	if strings.TrimSpace(req.IssueType) == "" || strings.TrimSpace(req.Description) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Dados incompletos"})
		return
	}

	now := h.now()
	ip := "unknown"
	if h.ClientIP != nil {
		ip = h.ClientIP(r)
	}
	log.Warn("Problema de segurança reportado",
		zap.String("issueType", req.IssueType),
		zap.String("description", req.Description),
		zap.String("url", req.URL),
		zap.String("userAgent", req.UserAgent),
		zap.String("contactEmail", req.ContactEmail),
		zap.Time("reportedAt", now.UTC()),
		zap.String("ip", ip),
	)

	writeJSON(w, http.StatusOK, reportResponse{
		Success:     true,
		Message:     "Relatório de segurança recebido. Obrigado por ajudar a manter o AniRes seguro!",
		ReferenceID: ReferenceID(now),
	})
}

// ReferenceID gera "SEC-" + milissegundos Unix em base 36, maiúsculo.
func ReferenceID(t time.Time) string {
	return "SEC-" + strings.ToUpper(strconv.FormatInt(t.UnixMilli(), 36))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
