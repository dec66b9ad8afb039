package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/lexrag/internal/index"
	"github.com/hyperjump/lexrag/internal/models"
	"github.com/hyperjump/lexrag/internal/rag"
	"github.com/hyperjump/lexrag/internal/retrieval"
)

type answerRequest struct {
	Question string `json:"question"`
}

type answerResponse struct {
	Answer  string         `json:"answer"`
	Sources []string       `json:"sources"`
	Outcome models.Outcome `json:"outcome"`
	OK      bool           `json:"ok"`
}

// streamEvent is one NDJSON line of a streamed answer.
type streamEvent struct {
	Type    string   `json:"type"` // sources, fragment, error or done
	Text    string   `json:"text,omitempty"`
	Sources []string `json:"sources,omitempty"`
}

func (s *Server) decodeQuestion(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return "", false
	}
	return req.Question, true
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	question, ok := s.decodeQuestion(w, r)
	if !ok {
		return
	}
	s.logger.Debug("answer request",
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Int("question_len", len(question)))

	ans := s.answerer.Answer(r.Context(), question)
	s.respondJSON(w, answerStatus(ans), answerResponse{
		Answer:  ans.Text,
		Sources: ans.Sources,
		Outcome: ans.Outcome,
		OK:      ans.OK(),
	})
}

// answerStatus maps an answer outcome to an HTTP status. The body always carries the answer.
func answerStatus(ans *models.Answer) int {
	switch ans.Outcome {
	case models.OutcomeAnswered:
		return http.StatusOK
	case models.OutcomeGenerationFailed:
		return http.StatusBadGateway
	}
	switch {
	case errors.Is(ans.Err, rag.ErrEmptyQuestion):
		return http.StatusBadRequest
	case errors.Is(ans.Err, retrieval.ErrIndexNotLoaded), errors.Is(ans.Err, index.ErrIndexUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleAnswerStream(w http.ResponseWriter, r *http.Request) {
	question, ok := s.decodeQuestion(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	sa := s.answerer.AnswerStream(ctx, question)
	defer sa.Stream.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	send := func(ev streamEvent) bool {
		if err := enc.Encode(ev); err != nil {
			s.logger.Debug("stream client gone", zap.Error(err))
			return false
		}
		if flusher != nil {
			flusher.Flush()
		}
		return true
	}

	if !send(streamEvent{Type: "sources", Sources: nonNil(sa.Sources)}) {
		return
	}
	for sa.Stream.Next() {
		if ctx.Err() != nil {
			return
		}
		f := sa.Stream.Fragment()
		ev := streamEvent{Type: "fragment", Text: f.Text}
		if f.Failed {
			ev.Type = "error"
		}
		if !send(ev) {
			return
		}
	}
	send(streamEvent{Type: "done"})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := index.StatusOf(s.config.Index.Location, s.holder.Current())
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"index": st,
		"config": map[string]interface{}{
			"index_type":          s.config.Index.Type,
			"chunk_size":          s.config.Index.ChunkSize,
			"embedding_provider":  s.config.Embedding.Provider,
			"generation_provider": s.config.Generation.Provider,
			"generation_model":    s.config.Generation.Model,
			"top_k":               s.config.Retrieval.TopK,
		},
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	idx, err := s.holder.Reload()
	if err != nil {
		s.logger.Warn("index reload failed", zap.Error(err))
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"status": "reloaded", "chunks": idx.Len()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if s.holder.Current() == nil {
		status = "no index"
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
