package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/nerdneilsfield/page-translator/pkg/lang"
	"github.com/nerdneilsfield/page-translator/pkg/providers"
)

type translateRequest struct {
	Text       string `json:"text"`
	TargetLang string `json:"target_lang"`
	SourceLang string `json:"source_lang"`
}

type translateResponse struct {
	OriginalText   string `json:"original_text"`
	TranslatedText string `json:"translated_text"`
	SourceLang     string `json:"source_lang"`
	TargetLang     string `json:"target_lang"`
}

type batchRequest struct {
	Texts      []string `json:"texts"`
	TargetLang string   `json:"target_lang"`
	SourceLang string   `json:"source_lang"`
}

type batchResponse struct {
	Results []translateResponse `json:"results"`
}

type formRequest struct {
	FormData   map[string]any `json:"form_data"`
	TargetLang string         `json:"target_lang"`
}

type cardRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	TargetLang  string `json:"target_lang"`
	SourceLang  string `json:"source_lang"`
}

type cardResponse struct {
	OriginalTitle         string `json:"original_title"`
	TranslatedTitle       string `json:"translated_title"`
	OriginalDescription   string `json:"original_description"`
	TranslatedDescription string `json:"translated_description"`
	SourceLang            string `json:"source_lang"`
	TargetLang            string `json:"target_lang"`
}

type detectRequest struct {
	Text string `json:"text"`
}

func parseTarget(s string) (lang.Code, error) {
	code, err := lang.Parse(s)
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, "unsupported target_lang: "+s)
	}
	return code, nil
}

func sourceOrAuto(s string) string {
	if strings.TrimSpace(s) == "" {
		return providers.SourceAuto
	}
	return s
}

func (s *Server) handleHealth(c echo.Context) error {
	stats := s.service.CacheStats()
	body := map[string]any{
		"status":    "ok",
		"providers": s.service.Providers(),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"cache": map[string]any{
			"size":   stats.Size,
			"hits":   stats.Hits,
			"misses": stats.Misses,
		},
	}
	if ps := s.service.ProviderStats(); ps != nil {
		body["provider_stats"] = ps
	}
	return c.JSON(http.StatusOK, body)
}

func (s *Server) handleTranslate(c echo.Context) error {
	var req translateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	target, err := parseTarget(req.TargetLang)
	if err != nil {
		return err
	}
	source := sourceOrAuto(req.SourceLang)

	translated := s.service.Translate(c.Request().Context(), req.Text, target, source)
	return c.JSON(http.StatusOK, translateResponse{
		OriginalText:   req.Text,
		TranslatedText: translated,
		SourceLang:     source,
		TargetLang:     target.String(),
	})
}

func (s *Server) handleTranslateBatch(c echo.Context) error {
	var req batchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	target, err := parseTarget(req.TargetLang)
	if err != nil {
		return err
	}
	source := sourceOrAuto(req.SourceLang)

	translated := s.service.TranslateBatch(c.Request().Context(), req.Texts, target, source)
	results := make([]translateResponse, len(req.Texts))
	for i, text := range req.Texts {
		results[i] = translateResponse{
			OriginalText:   text,
			TranslatedText: translated[i],
			SourceLang:     source,
			TargetLang:     target.String(),
		}
	}
	return c.JSON(http.StatusOK, batchResponse{Results: results})
}

func (s *Server) handleTranslateForm(c echo.Context) error {
	var req formRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	target, err := parseTarget(req.TargetLang)
	if err != nil {
		return err
	}

	translated := s.service.TranslateForm(c.Request().Context(), req.FormData, target)
	return c.JSON(http.StatusOK, map[string]any{"translated_data": translated})
}

func (s *Server) handleTranslateCard(c echo.Context) error {
	var req cardRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	target, err := parseTarget(req.TargetLang)
	if err != nil {
		return err
	}
	source := sourceOrAuto(req.SourceLang)

	// 标题和描述并行翻译
	translated := s.service.TranslateBatch(c.Request().Context(), []string{req.Title, req.Description}, target, source)
	return c.JSON(http.StatusOK, cardResponse{
		OriginalTitle:         req.Title,
		TranslatedTitle:       translated[0],
		OriginalDescription:   req.Description,
		TranslatedDescription: translated[1],
		SourceLang:            source,
		TargetLang:            target.String(),
	})
}

func (s *Server) handleDetect(c echo.Context) error {
	var req detectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return c.JSON(http.StatusOK, map[string]string{
		"detected_language": lang.Detect(req.Text).String(),
	})
}

func (s *Server) handleLanguages(c echo.Context) error {
	languages := make(map[string]string)
	for _, code := range lang.Supported() {
		languages[code.String()] = code.Name()
	}
	return c.JSON(http.StatusOK, map[string]any{"languages": languages})
}
