package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/deusflow/technews/internal/source"
	"github.com/deusflow/technews/internal/urlscan"
)

const (
	defaultFetchLimit = 20
	maxFetchLimit     = 100
	maxBodyBytes      = 1 << 20
)

type fetchRequest struct {
	Limit int `json:"limit"`
}

type processRequest struct {
	Items []source.Item `json:"items"`
}

type checkURLRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleFetchNews(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.RequireNewsSource(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	limit, err := queryInt(r, "limit", defaultFetchLimit, 1, maxFetchLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
		return
	}
	if r.Method == http.MethodPost {
		var req fetchRequest
		if err := decodeOptional(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Limit != 0 {
			if req.Limit < 1 || req.Limit > maxFetchLimit {
				writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
				return
			}
			limit = req.Limit
		}
	}

	items, err := s.pipeline.FetchNews(r.Context(), limit)
	if err != nil {
		s.log.Error("news fetch failed", "error", err)
		s.metrics.SetError(err.Error())
		writeError(w, http.StatusBadGateway, "news source unavailable")
		return
	}
	if items == nil {
		items = []source.Item{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "success",
		"articles": items,
		"count":    len(items),
	})
}

// handleProcessContent processes the posted items, or one fresh batch from
// the news source when the body carries none.
func (s *Server) handleProcessContent(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	for i, it := range req.Items {
		if strings.TrimSpace(it.Title) == "" || strings.TrimSpace(it.URL) == "" {
			writeError(w, http.StatusBadRequest, "every item needs a title and a url")
			return
		}
		req.Items[i].Title = strings.TrimSpace(it.Title)
	}

	checks := []func() error{s.cfg.RequireWriteBack, s.cfg.RequireLLM}
	if len(req.Items) == 0 {
		checks = append(checks, s.cfg.RequireNewsSource)
	}
	for _, check := range checks {
		if err := check(); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	var results any
	var count int
	if len(req.Items) > 0 {
		res := s.pipeline.Process(r.Context(), req.Items)
		results, count = res, len(res)
	} else {
		res, err := s.pipeline.Run(r.Context())
		if err != nil {
			s.log.Error("content processing failed", "error", err)
			s.metrics.SetError(err.Error())
			writeError(w, http.StatusBadGateway, "news source unavailable")
			return
		}
		results, count = res, len(res)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"posts":  results,
		"count":  count,
	})
}

func (s *Server) handleCheckURL(w http.ResponseWriter, r *http.Request) {
	var req checkURLRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	report, err := s.links.Check(r.Context(), req.URL)
	if errors.Is(err, urlscan.ErrInvalidURL) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"result": report,
	})
}

// decodeOptional decodes a JSON body; an empty body leaves v untouched.
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
