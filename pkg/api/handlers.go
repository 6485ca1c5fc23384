package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/entrhq/soulcore/pkg/embedding"
	"github.com/entrhq/soulcore/pkg/router"
)

type embedRequest struct {
	Texts []string `json:"texts" validate:"required,min=1,max=256,dive,required"`
}

type embedResponse struct {
	Provider   string      `json:"provider"`
	Dimensions int         `json:"dimensions"`
	Vectors    [][]float64 `json:"vectors"`
}

type similarityRequest struct {
	A string `json:"a" validate:"required"`
	B string `json:"b" validate:"required"`
}

type similarityResponse struct {
	Provider string  `json:"provider"`
	Score    float64 `json:"score"`
}

type verifyRequest struct {
	Reply string `json:"reply" validate:"required"`
	Query string `json:"query"`
}

type routeRequest struct {
	Interests []string `json:"interests" validate:"max=64,dive,required,max=100"`
	Text      string   `json:"text"`
	Subject   string   `json:"subject" validate:"max=200"`
}

type errorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]string{"status": "ok"}
	if s.svc.Embedder != nil {
		resp["embedding"] = s.svc.Embedder.Name()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEmbed(w http.ResponseWriter, r *http.Request) {
	var req embedRequest
	if !s.bind(w, r, &req) {
		return
	}
	if s.svc.Embedder == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("embedding is not configured"))
		return
	}
	writeJSON(w, http.StatusOK, embedResponse{
		Provider:   s.svc.Embedder.Name(),
		Dimensions: s.svc.Embedder.Dimensions(),
		Vectors:    s.svc.Embedder.EmbedBatch(r.Context(), req.Texts),
	})
}

func (s *Server) handleSimilarity(w http.ResponseWriter, r *http.Request) {
	var req similarityRequest
	if !s.bind(w, r, &req) {
		return
	}
	if s.svc.Embedder == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("embedding is not configured"))
		return
	}
	vecs := s.svc.Embedder.EmbedBatch(r.Context(), []string{req.A, req.B})
	writeJSON(w, http.StatusOK, similarityResponse{
		Provider: s.svc.Embedder.Name(),
		Score:    embedding.CosineSimilarity(vecs[0], vecs[1]),
	})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !s.bind(w, r, &req) {
		return
	}
	if s.svc.Verifier == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("verifier is not configured"))
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Verifier.Check(r.Context(), req.Reply, req.Query))
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if !s.bind(w, r, &req) {
		return
	}
	if s.svc.Router == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("router is not configured"))
		return
	}
	rep := s.svc.Router.RouteAll(r.Context(), router.Learned{Interests: req.Interests}, req.Text, req.Subject)
	writeJSON(w, http.StatusOK, rep)
}

// bind decodes and validates the JSON body into dst. It writes the error
// response and returns false when the request is unusable.
func (s *Server) bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err)
			return false
		}
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON body: %w", err))
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Namespace()+": "+fe.Tag())
			}
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: fields})
			return false
		}
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
