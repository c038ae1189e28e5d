// Package api serves the tokenizer demo over HTTP: session state, tokenizer
// loading and tokenization as JSON, plus the embedded web page.
package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/samcharles93/tokenscope/internal/binding"
	"github.com/samcharles93/tokenscope/internal/logger"
	"github.com/samcharles93/tokenscope/internal/session"
	"github.com/samcharles93/tokenscope/internal/version"
	"github.com/samcharles93/tokenscope/internal/webui"
)

type ServerOptions struct {
	// Sources are offered by GET /api/sources. The first is the default.
	Sources []string
	Logger  logger.Logger
	// Gatherer backs /metrics. Nil uses the default prometheus gatherer.
	Gatherer prometheus.Gatherer
}

type Server struct {
	ctrl     *session.Controller
	sources  []string
	log      logger.Logger
	gatherer prometheus.Gatherer
}

func NewServer(ctrl *session.Controller, opts ServerOptions) *Server {
	sources := opts.Sources
	if len(sources) == 0 {
		sources = session.DefaultSources
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		ctrl:     ctrl,
		sources:  sources,
		log:      log.With("component", "api"),
		gatherer: gatherer,
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/api/session", s.handleSession)
	e.GET("/api/sources", s.handleSources)
	e.POST("/api/tokenizer", s.handleLoadTokenizer)
	e.POST("/api/tokenize", s.handleTokenize)
	e.POST("/api/encode", s.handleEncode)
	e.POST("/api/decode", s.handleDecode)

	e.GET("/healthz", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	e.GET("/*", echo.WrapHandler(http.FileServerFS(webui.FS())))
}

type LoadTokenizerRequest struct {
	URL string `json:"url"`
}

type TokenizeRequest struct {
	Text string `json:"text"`
}

// MaxBatch caps the number of items in one encode or decode request.
const MaxBatch = 256

type EncodeRequest struct {
	Texts            []string `json:"texts"`
	AddSpecialTokens bool     `json:"add_special_tokens"`
	// Fast skips offset tracking.
	Fast bool `json:"fast"`
}

type EncodeResponse struct {
	Encodings []*binding.Encoding `json:"encodings"`
}

type DecodeRequest struct {
	IDs               [][]int `json:"ids"`
	SkipSpecialTokens bool    `json:"skip_special_tokens"`
}

type DecodeResponse struct {
	Texts []string `json:"texts"`
}

type SourcesResponse struct {
	Default string   `json:"default"`
	Sources []string `json:"sources"`
}

type HealthResponse struct {
	Status      string       `json:"status"`
	ModuleState string       `json:"module_state"`
	Loaded      bool         `json:"loaded"`
	Version     version.Info `json:"version"`
}

func (s *Server) handleSession(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleSources(c *echo.Context) error {
	return c.JSON(http.StatusOK, SourcesResponse{Default: s.sources[0], Sources: s.sources})
}

func (s *Server) handleLoadTokenizer(c *echo.Context) error {
	req, err := decodeRequest[LoadTokenizerRequest](c)
	if err != nil {
		return writeDecodeError(c, err)
	}
	if strings.TrimSpace(req.URL) == "" {
		return writeSessionError(c, newInvalidRequest("url is required"))
	}
	if _, err := s.ctrl.LoadTokenizer(c.Request().Context(), req.URL); err != nil {
		return writeSessionError(c, err)
	}
	return c.JSON(http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleTokenize(c *echo.Context) error {
	req, err := decodeRequest[TokenizeRequest](c)
	if err != nil {
		return writeDecodeError(c, err)
	}
	if s.ctrl.Tokenizer() == nil {
		return writeError(c, http.StatusConflict, "no_tokenizer_error", "no tokenizer loaded")
	}
	if _, err := s.ctrl.Tokenize(c.Request().Context(), req.Text); err != nil {
		return writeSessionError(c, err)
	}
	return c.JSON(http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleEncode(c *echo.Context) error {
	req, err := decodeRequest[EncodeRequest](c)
	if err != nil {
		return writeDecodeError(c, err)
	}
	if err := checkBatch(len(req.Texts)); err != nil {
		return writeSessionError(c, err)
	}
	encs, err := s.ctrl.EncodeBatch(c.Request().Context(), req.Texts, req.AddSpecialTokens, !req.Fast)
	if err != nil {
		return writeSessionError(c, err)
	}
	return c.JSON(http.StatusOK, EncodeResponse{Encodings: encs})
}

func (s *Server) handleDecode(c *echo.Context) error {
	req, err := decodeRequest[DecodeRequest](c)
	if err != nil {
		return writeDecodeError(c, err)
	}
	if err := checkBatch(len(req.IDs)); err != nil {
		return writeSessionError(c, err)
	}
	texts, err := s.ctrl.DecodeBatch(c.Request().Context(), req.IDs, req.SkipSpecialTokens)
	if err != nil {
		return writeSessionError(c, err)
	}
	return c.JSON(http.StatusOK, DecodeResponse{Texts: texts})
}

func checkBatch(n int) error {
	switch {
	case n == 0:
		return newInvalidRequest("batch is empty")
	case n > MaxBatch:
		return newInvalidRequest(fmt.Sprintf("batch of %d exceeds %d items", n, MaxBatch))
	}
	return nil
}

func (s *Server) handleHealth(c *echo.Context) error {
	snap := s.ctrl.Snapshot()
	return c.JSON(http.StatusOK, HealthResponse{
		Status:      "ok",
		ModuleState: snap.ModuleState,
		Loaded:      snap.Loaded,
		Version:     version.Resolve(),
	})
}

var errUnsupportedMediaType = errors.New("content type must be application/json")

// decodeRequest decodes a JSON request body. Other content types are
// refused.
func decodeRequest[T any](c *echo.Context) (T, error) {
	mediaType, _, _ := mime.ParseMediaType(c.Request().Header.Get(echo.HeaderContentType))
	if mediaType != echo.MIMEApplicationJSON {
		var zero T
		return zero, errUnsupportedMediaType
	}
	return decodeJSON[T](c.Request().Body)
}

func writeDecodeError(c *echo.Context, err error) error {
	if errors.Is(err, errUnsupportedMediaType) {
		return writeError(c, http.StatusUnsupportedMediaType, "invalid_request_error", err.Error())
	}
	return writeBadRequest(c, err.Error())
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	dec := json.NewDecoder(r)
	if err := dec.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}
