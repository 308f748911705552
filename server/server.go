package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/RyanBlaney/sonido-melody/export"
	"github.com/RyanBlaney/sonido-melody/logging"
	"github.com/RyanBlaney/sonido-melody/melody"
	"github.com/RyanBlaney/sonido-melody/transcode"
)

// UploadFormats are the audio extensions accepted by the upload route
var UploadFormats = []string{"mp3", "wav", "m4a", "aac", "flac", "ogg"}

// Config holds server settings
type Config struct {
	Addr           string                   `json:"addr"`
	AllowedOrigins []string                 `json:"allowed_origins"`
	MaxUploadBytes int64                    `json:"max_upload_bytes"`
	Melody         melody.Config            `json:"melody"`
	Decoder        *transcode.DecoderConfig `json:"decoder"`
}

// DefaultConfig listens on :8080 and accepts uploads up to 50 MB from any origin
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		AllowedOrigins: []string{"*"},
		MaxUploadBytes: 50 << 20,
		Melody:         melody.DefaultConfig(),
		Decoder:        transcode.DefaultDecoderConfig(),
	}
}

// Server exposes melody transcription over HTTP
type Server struct {
	config Config
	loader *transcode.Loader
	logger logging.Logger
	router *mux.Router
}

// TranscribeResponse is the JSON body of a successful transcription
type TranscribeResponse struct {
	TrackID string          `json:"track_id"`
	Melody  export.Document `json:"melody"`
}

type errorResponse struct {
	Error   string `json:"error"`
	TrackID string `json:"track_id,omitempty"`
}

// New creates a server. A nil logger discards output.
func New(config Config, logger logging.Logger) (*Server, error) {
	if err := config.Melody.Validate(); err != nil {
		return nil, err
	}
	if config.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("%w: max upload size must be positive", melody.ErrConfiguration)
	}
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}

	loader, err := transcode.NewLoader(config.Decoder)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config: config,
		loader: loader,
		logger: logger.WithFields(logging.Fields{"component": "server"}),
		router: mux.NewRouter().StrictSlash(true),
	}

	s.router.Use(s.logRequests)
	s.router.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/transcribe", s.handleTranscribe).Methods(http.MethodPost)

	return s, nil
}

// Handler returns the router wrapped with CORS handling
func (s *Server) Handler() http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"*"},
	}).Handler(s.router)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := s.loader.CheckAvailability(ctx); err != nil {
		s.logger.Warn("ffmpeg unavailable, only wav uploads can be decoded", logging.Fields{"error": err.Error()})
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Listening", logging.Fields{
			"addr":    s.config.Addr,
			"origins": s.config.AllowedOrigins,
		})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("Shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	trackID := uuid.NewString()
	ctx := logging.ContextWithFields(r.Context(), logging.Fields{"run_id": trackID})
	logger := s.logger.WithContext(ctx)

	cfg, midiOut, err := s.requestConfig(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), trackID)
		return
	}

	name, data, err := s.readUpload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), trackID)
		return
	}

	transcriber, err := melody.NewTranscriber(cfg,
		melody.WithLogger(s.logger),
		melody.WithObserver(melody.NewLoggingObserver(logger)),
	)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), trackID)
		return
	}

	signal, err := s.loader.LoadBytes(ctx, name, data)
	if err != nil {
		logger.Error(err, "Failed to decode upload", logging.Fields{"file": name})
		writeError(w, http.StatusInternalServerError, "failed to decode audio", trackID)
		return
	}

	result, err := transcriber.Transcribe(ctx, signal)
	if err != nil {
		logger.Error(err, "Transcription failed", logging.Fields{"file": name})
		writeError(w, http.StatusInternalServerError, "transcription failed", trackID)
		return
	}
	if result.Empty() {
		writeError(w, http.StatusUnprocessableEntity, "no melody found", trackID)
		return
	}

	logger.Info("Transcribed upload", logging.Fields{
		"file":       name,
		"notes":      len(result.Notes),
		"elapsed_ms": result.Elapsed.Milliseconds(),
	})

	if midiOut {
		var buf bytes.Buffer
		if err := export.WriteMIDI(&buf, result.Tempo, result.Notes); err != nil {
			logger.Error(err, "Failed to render midi")
			writeError(w, http.StatusInternalServerError, "failed to render midi", trackID)
			return
		}
		w.Header().Set("Content-Type", "audio/midi")
		w.Header().Set("Content-Disposition", `attachment; filename="main_melody.mid"`)
		w.Header().Set("X-Track-Id", trackID)
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())
		return
	}

	writeJSON(w, http.StatusOK, TranscribeResponse{
		TrackID: trackID,
		Melody:  export.NewDocument(result.Tempo, result.Notes),
	})
}

// requestConfig applies the preset, tempo and format query parameters
func (s *Server) requestConfig(r *http.Request) (melody.Config, bool, error) {
	query := r.URL.Query()

	cfg := s.config.Melody
	if name := query.Get("preset"); name != "" {
		var err error
		if cfg, err = cfg.WithPreset(name); err != nil {
			return melody.Config{}, false, err
		}
	}

	if raw := query.Get("tempo"); raw != "" {
		bpm, err := strconv.ParseFloat(raw, 64)
		if err != nil || !(bpm > 0) {
			return melody.Config{}, false, fmt.Errorf("invalid tempo %q", raw)
		}
		cfg.TempoBPM = bpm
	}

	switch format := strings.ToLower(query.Get("format")); format {
	case "", "json":
		return cfg, false, nil
	case "midi", "mid":
		return cfg, true, nil
	default:
		return melody.Config{}, false, fmt.Errorf("unknown format %q", format)
	}
}

// readUpload returns the name and contents of the "audio" form file
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", nil, fmt.Errorf("upload exceeds %d bytes", tooLarge.Limit)
		}
		return "", nil, fmt.Errorf("invalid multipart form: %v", err)
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		return "", nil, errors.New("missing audio file")
	}
	defer file.Close()

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(header.Filename)), ".")
	if !slices.Contains(UploadFormats, ext) || !s.loader.Supports(header.Filename) {
		return "", nil, fmt.Errorf("unsupported file type %q", filepath.Ext(header.Filename))
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read upload: %v", err)
	}
	if len(data) == 0 {
		return "", nil, errors.New("empty audio file")
	}
	return header.Filename, data, nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.Debug("Handled request", logging.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rec.status,
			"duration_ms": time.Since(started).Milliseconds(),
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg, trackID string) {
	writeJSON(w, status, errorResponse{Error: msg, TrackID: trackID})
}
