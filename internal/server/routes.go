package server

import "net/http"

func (s *Server) registerRoutes() {
	// App registration and keys
	s.mux.HandleFunc("GET /register-app", s.handleRegisterApp)
	s.mux.HandleFunc("POST /api/add-llm-key", s.handleAddLLMKey)
	s.mux.HandleFunc("POST /api/add-github-key", s.handleAddGitHubKey)
	s.mux.HandleFunc("GET /api/get-keys", s.handleGetKeys)

	// Commit summaries
	s.mux.HandleFunc("GET /greeting", s.handleGreeting)
	s.mux.HandleFunc("GET /api/commits/message", s.handleCommitMessage)
	s.mux.HandleFunc("GET /api/refactorings", s.handleRefactorings)

	// Questions
	s.mux.HandleFunc("POST /get-response", s.handleGetResponse)

	// Repository summary and metrics analysis
	s.mux.HandleFunc("POST /api/summarize-repo", s.handleSummarizeRepo)
	s.mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/results/{filename}", s.handleResult)

	// Health
	s.mux.HandleFunc("GET /api", s.handleHealth)
	s.mux.HandleFunc("GET /api/{$}", s.handleHealth)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "API is running")
}
