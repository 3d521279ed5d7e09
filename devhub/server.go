package devhub

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/putto11262002/deliverchat/conversation"
)

// Server bundles the hub, the auth endpoint, and the marketplace REST
// collaborators behind one router.
type Server struct {
	hub       *Hub
	auth      *Auth
	directory *Directory
	logger    *slog.Logger

	allowedOrigins []string
}

type ServerOption func(*Server)

func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

func NewServer(hub *Hub, auth *Auth, directory *Directory, opts ...ServerOption) *Server {
	s := &Server{
		hub:            hub,
		auth:           auth,
		directory:      directory,
		logger:         slog.Default(),
		allowedOrigins: []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Hub() *Hub {
	return s.hub
}

// Router mounts the hub endpoint, the token endpoint, and the three REST
// collaborators the conversation loader consumes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
	}))

	r.Handle("/hub", s.hub)
	r.Post("/auth/token", s.tokenHandler)
	r.Route("/api", func(r chi.Router) {
		r.Get("/offers/{id}", s.offerHandler)
		r.Get("/orders/{id}", s.orderHandler)
		r.Get("/users/{id}", s.userHandler)
	})
	return r
}

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}

func (s *Server) tokenHandler(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeFailure(w, http.StatusBadRequest)
		return
	}

	tok, userID, err := s.auth.Issue(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			writeFailure(w, http.StatusUnauthorized)
			return
		}
		s.logger.Error(err.Error())
		writeFailure(w, http.StatusInternalServerError)
		return
	}
	writeSuccess(w, tokenResponse{Token: tok, UserID: userID})
}

func (s *Server) offerHandler(w http.ResponseWriter, r *http.Request) {
	offer, ok := s.directory.Offer(chi.URLParam(r, "id"))
	if !ok {
		writeFailure(w, http.StatusNotFound)
		return
	}
	writeSuccess(w, offer)
}

func (s *Server) orderHandler(w http.ResponseWriter, r *http.Request) {
	order, ok := s.directory.Order(chi.URLParam(r, "id"))
	if !ok {
		writeFailure(w, http.StatusNotFound)
		return
	}
	writeSuccess(w, order)
}

func (s *Server) userHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := s.directory.User(chi.URLParam(r, "id"))
	if !ok {
		writeFailure(w, http.StatusNotFound)
		return
	}
	writeSuccess(w, user)
}

func decodeJSON(r io.Reader, v any) error {
	return json.NewDecoder(r).Decode(v)
}

func writeSuccess(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(conversation.Envelope[any]{Success: true, Data: v})
}

func writeFailure(w http.ResponseWriter, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(conversation.Envelope[any]{Success: false})
}
