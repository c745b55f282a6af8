package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/julianshen/commitpro/internal/commitsummary"
	"github.com/julianshen/commitpro/internal/credentials"
	"github.com/julianshen/commitpro/internal/query"
	"github.com/julianshen/commitpro/internal/summarizer"
)

const maxBodyBytes = 1 << 20

// Greeting is the reply of /greeting. Content carries either the commit
// summary or the error that prevented it.
type Greeting struct {
	ID      int64  `json:"id"`
	Content string `json:"content"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func (s *Server) unavailable(w http.ResponseWriter, name string) {
	writeError(w, http.StatusServiceUnavailable, name+" is not configured")
}

// param returns a required query or form parameter, writing a 400 when it
// is absent.
func param(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form: "+err.Error())
		return "", false
	}
	if !r.Form.Has(name) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Missing '%s' parameter.", name))
		return "", false
	}
	return r.Form.Get(name), true
}

func (s *Server) handleRegisterApp(w http.ResponseWriter, r *http.Request) {
	if s.deps.Credentials == nil {
		s.unavailable(w, "app registration")
		return
	}
	id, err := s.deps.Credentials.Register(r.Context())
	if err != nil {
		s.logger.Error("registering app failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"uuid": id})
}

func (s *Server) handleAddLLMKey(w http.ResponseWriter, r *http.Request) {
	s.setKey(w, r, "llmKey", "LLM key updated successfully", func(app, key string) error {
		return s.deps.Credentials.SetLLMKey(r.Context(), app, key)
	})
}

func (s *Server) handleAddGitHubKey(w http.ResponseWriter, r *http.Request) {
	s.setKey(w, r, "githubKey", "GitHub key updated successfully", func(app, key string) error {
		return s.deps.Credentials.SetGitHubKey(r.Context(), app, key)
	})
}

func (s *Server) setKey(w http.ResponseWriter, r *http.Request, keyParam, okMsg string, set func(app, key string) error) {
	if s.deps.Credentials == nil {
		s.unavailable(w, "app registration")
		return
	}
	app, ok := param(w, r, "uuid")
	if !ok {
		return
	}
	key, ok := param(w, r, keyParam)
	if !ok {
		return
	}
	if err := set(app, key); err != nil {
		if errors.Is(err, credentials.ErrUnknownApp) {
			writeError(w, http.StatusNotFound, credentials.ErrUnknownApp.Error())
			return
		}
		s.logger.Error("storing key failed", "param", keyParam, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": okMsg})
}

func (s *Server) handleGetKeys(w http.ResponseWriter, r *http.Request) {
	if s.deps.Credentials == nil {
		s.unavailable(w, "app registration")
		return
	}
	app, ok := param(w, r, "uuid")
	if !ok {
		return
	}
	keys, err := s.deps.Credentials.Keys(r.Context(), app)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

func (s *Server) handleGreeting(w http.ResponseWriter, r *http.Request) {
	if s.deps.Commits == nil {
		s.unavailable(w, "commit summaries")
		return
	}
	url, ok := param(w, r, "url")
	if !ok {
		return
	}
	id, ok := param(w, r, "id")
	if !ok {
		return
	}
	req := commitsummary.Request{
		URL:      url,
		CommitID: id,
		Original: r.Form.Get("og"),
		AppID:    r.Form.Get("uuid"),
	}

	var content string
	sum, err := s.deps.Commits.Summarize(r.Context(), req)
	if err != nil {
		s.logger.Error("commit summary failed", "url", url, "commit", id, "error", err)
		content = "Error analyzing commit: " + err.Error()
	} else {
		content = sum.Message
	}
	writeJSON(w, http.StatusOK, Greeting{ID: s.greetings.Add(1), Content: content})
}

func (s *Server) handleCommitMessage(w http.ResponseWriter, r *http.Request) {
	if s.deps.Commits == nil {
		s.unavailable(w, "commit summaries")
		return
	}
	url, ok := param(w, r, "url")
	if !ok {
		return
	}
	id, ok := param(w, r, "id")
	if !ok {
		return
	}
	msg, err := s.deps.Commits.Message(r.Context(), url, id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (s *Server) handleRefactorings(w http.ResponseWriter, r *http.Request) {
	if s.deps.Commits == nil {
		s.unavailable(w, "commit summaries")
		return
	}
	url, ok := param(w, r, "url")
	if !ok {
		return
	}
	id, ok := param(w, r, "id")
	if !ok {
		return
	}
	refs, err := s.deps.Commits.Refactorings(r.Context(), url, id, r.Form.Get("uuid"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, commitsummary.ErrMissingCommit) {
			status = http.StatusBadRequest
		}
		s.logger.Error("loading refactorings failed", "url", url, "commit", id, "error", err)
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"refactorings": refs})
}

func (s *Server) handleGetResponse(w http.ResponseWriter, r *http.Request) {
	if s.deps.Questions == nil {
		s.unavailable(w, "question answering")
		return
	}
	token := r.Header.Get("Authorization")
	if strings.TrimSpace(token) == "" {
		writeError(w, http.StatusUnauthorized, query.ErrMissingToken.Error())
		return
	}
	var req query.Request
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	answer, err := s.deps.Questions.Answer(r.Context(), req, token)
	if err != nil {
		s.logger.Error("answering query failed", "error", err)
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response_with_cs": answer})
}

type summarizeRepoRequest struct {
	Repo string `json:"repo"`
	JSON bool   `json:"json"`
}

func (s *Server) handleSummarizeRepo(w http.ResponseWriter, r *http.Request) {
	if s.deps.Summarizer == nil {
		s.unavailable(w, "repository summaries")
		return
	}
	var req summarizeRepoRequest
	if err := decodeJSON(w, r, &req); err != nil || strings.TrimSpace(req.Repo) == "" {
		writeError(w, http.StatusBadRequest, "Missing 'repo' in request body.")
		return
	}
	sum, err := s.deps.Summarizer.Summarize(r.Context(), strings.TrimSpace(req.Repo), summarizer.Options{JSON: req.JSON})
	if err != nil {
		s.logger.Error("repository summary failed", "repo", req.Repo, "error", err)
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

type analyzeRequest struct {
	RepoURL string `json:"repoUrl"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if s.deps.Analyses == nil {
		s.unavailable(w, "repository analysis")
		return
	}
	var req analyzeRequest
	if err := decodeJSON(w, r, &req); err != nil || strings.TrimSpace(req.RepoURL) == "" {
		writeText(w, http.StatusBadRequest, "Missing 'repoUrl' in request body.")
		return
	}
	repo := strings.TrimSpace(req.RepoURL)
	id, err := s.deps.Analyses.Start(r.Context(), repo)
	if err != nil {
		s.logger.Error("starting analysis failed", "repo", repo, "error", err)
		status := statusFor(err)
		if status != http.StatusBadRequest && status != http.StatusServiceUnavailable {
			status = http.StatusInternalServerError
		}
		writeText(w, status, "Error starting analysis: "+err.Error())
		return
	}
	writeText(w, http.StatusAccepted, fmt.Sprintf("Analysis started for: %s. Check status using ID: %s", repo, id))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if check, _ := strconv.ParseBool(q.Get("check")); check {
		writeText(w, http.StatusOK, "Backend service is available")
		return
	}
	if s.deps.Analyses == nil {
		s.unavailable(w, "repository analysis")
		return
	}
	repo := strings.TrimSpace(q.Get("repoUrl"))
	if repo == "" {
		writeError(w, http.StatusBadRequest, "Missing 'repoUrl' parameter.")
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Analyses.Status(r.Context(), repo))
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	if s.deps.Analyses == nil {
		s.unavailable(w, "repository analysis")
		return
	}
	name := r.PathValue("filename")
	p, err := s.deps.Analyses.ResultPath(name)
	if err != nil {
		s.logger.Warn("result file rejected", "name", name, "error", err)
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	http.ServeFile(w, r, p)
}
