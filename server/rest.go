package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"

	"github.com/umputun/announcer/pkg/domain"
)

// credentials is the register and login request body
type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// searchItem is a feed item in search response
type searchItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Subject     string    `json:"subject,omitempty"`
	Link        string    `json:"link"`
	PubDate     string    `json:"pub_date"`
	Published   time.Time `json:"published,omitzero"`
	Attachments []string  `json:"attachments"`
}

// healthHandler returns server status, 503 if the user store is not reachable
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":  "healthy",
		"version": s.version,
		"time":    time.Now().UTC(),
	}
	if s.store == nil {
		RenderJSON(w, r, http.StatusOK, status)
		return
	}

	users, err := s.storeState(r.Context())
	if err != nil {
		lgr.Printf("[WARN] health check failed: %v", err)
		status["status"] = "unhealthy"
		status["database"] = "unavailable"
		RenderJSON(w, r, http.StatusServiceUnavailable, status)
		return
	}
	status["database"] = "ok"
	status["users"] = users
	RenderJSON(w, r, http.StatusOK, status)
}

func (s *Server) storeState(ctx context.Context) (users int, err error) {
	if err := s.store.Ping(ctx); err != nil {
		return 0, fmt.Errorf("ping database: %w", err)
	}
	return s.store.CountUsers(ctx)
}

// registerHandler creates a user, 201 on success and 409 for taken username
func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	creds, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	user, err := s.auth.Register(r.Context(), creds.Username, creds.Password)
	if err != nil {
		code, msg := authErrorResponse(err)
		rest.SendErrorJSON(w, r, lgr.Default(), code, err, msg)
		return
	}

	RenderJSON(w, r, http.StatusCreated, map[string]any{
		"message":    "User registered successfully",
		"user_id":    user.ID,
		"username":   user.Username,
		"created_at": user.CreatedAt,
	})
}

// loginHandler checks credentials, 401 for unknown user or wrong password
func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	creds, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	user, err := s.auth.Login(r.Context(), creds.Username, creds.Password)
	if err != nil {
		code, msg := authErrorResponse(err)
		rest.SendErrorJSON(w, r, lgr.Default(), code, err, msg)
		return
	}

	RenderJSON(w, r, http.StatusOK, map[string]any{
		"message":  "Login successful",
		"user_id":  user.ID,
		"username": user.Username,
	})
}

// statsHandler returns downloaded files stats
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	st, err := s.announcements.Stats()
	if err != nil {
		rest.SendErrorJSON(w, r, lgr.Default(), http.StatusInternalServerError, err, "can't get download stats")
		return
	}
	RenderJSON(w, r, http.StatusOK, st)
}

// searchHandler returns current feed items of a company, ?company=name
func (s *Server) searchHandler(w http.ResponseWriter, r *http.Request) {
	company := r.URL.Query().Get("company")
	if company == "" {
		rest.SendErrorJSON(w, r, lgr.Default(), http.StatusBadRequest, errors.New("empty company"), "company is required")
		return
	}

	items, err := s.announcements.Search(r.Context(), company)
	if err != nil {
		rest.SendErrorJSON(w, r, lgr.Default(), http.StatusBadGateway, err, "can't fetch announcements")
		return
	}

	res := make([]searchItem, 0, len(items))
	for _, item := range items {
		res = append(res, searchItem{ID: item.ID, Title: item.Title, Subject: item.Subject, Link: item.Link,
			PubDate: item.RawPubDate, Published: item.Published, Attachments: item.Attachments})
	}
	RenderJSON(w, r, http.StatusOK, map[string]any{"company": company, "count": len(res), "items": res})
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (credentials, bool) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		rest.SendErrorJSON(w, r, lgr.Default(), http.StatusBadRequest, err, "invalid request body")
		return creds, false
	}
	return creds, true
}

// authErrorResponse maps auth errors to status code and client message
func authErrorResponse(err error) (code int, msg string) {
	switch {
	case errors.Is(err, domain.ErrMissingCredentials):
		return http.StatusBadRequest, "Username and password are required"
	case errors.Is(err, domain.ErrPasswordTooLong):
		return http.StatusBadRequest, "Password is too long"
	case errors.Is(err, domain.ErrDuplicateUsername):
		return http.StatusConflict, "Username already exists"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid username or password"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
