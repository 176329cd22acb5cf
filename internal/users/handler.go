package users

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=users_test

type usersService interface {
	Register(ctx context.Context, creds Credentials) error
	Login(ctx context.Context, creds Credentials) error
}

type Handler struct {
	service usersService
}

func NewHandler(service usersService) *Handler {
	return &Handler{
		service: service,
	}
}

// SetupRoutes registers /register and /login on r, wrapping each with the given middleware.
func (h *Handler) SetupRoutes(r *mux.Router, mw ...mux.MiddlewareFunc) {
	wrap := func(hf http.HandlerFunc) http.Handler {
		var handler http.Handler = hf
		for i := len(mw) - 1; i >= 0; i-- {
			handler = mw[i](handler)
		}
		return handler
	}
	r.Handle("/register", wrap(h.HandleRegister)).Methods("POST", "OPTIONS").Name("register")
	r.Handle("/login", wrap(h.HandleLogin)).Methods("POST", "OPTIONS").Name("login")
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.register")
	defer span.End()

	creds, err := readCredentials(r)
	if err != nil {
		log.Tracef("register, read credentials: %s", err)
		pkg.WriteMessage(w, "invalid request data", http.StatusBadRequest)
		return
	}

	if err := h.service.Register(ctx, creds); err != nil {
		span.SetStatus(codes.Error, err.Error())
		writeError(w, err)
		return
	}

	pkg.WriteMessage(w, "User registered successfully", http.StatusCreated)
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.login")
	defer span.End()

	creds, err := readCredentials(r)
	if err != nil {
		log.Tracef("login, read credentials: %s", err)
		pkg.WriteMessage(w, "invalid request data", http.StatusBadRequest)
		return
	}

	if err := h.service.Login(ctx, creds); err != nil {
		span.SetStatus(codes.Error, err.Error())
		writeError(w, err)
		return
	}

	pkg.WriteMessage(w, "Login successful", http.StatusOK)
}

// readCredentials takes a JSON body, or form values for any other content type.
func readCredentials(r *http.Request) (Credentials, error) {
	var creds Credentials
	if strings.HasPrefix(r.Header.Get("Content-Type"), pkg.ContentType.JSON) {
		err := json.NewDecoder(r.Body).Decode(&creds)
		return creds, err
	}

	if err := r.ParseForm(); err != nil {
		return creds, err
	}
	creds.Email = r.Form.Get("email")
	creds.Password = r.Form.Get("password")
	return creds, nil
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrMissingCredentials):
		pkg.WriteMessage(w, "Email and password are required", http.StatusBadRequest)
	case errors.Is(err, ErrEmailTaken):
		pkg.WriteMessage(w, "Email already exists", http.StatusBadRequest)
	case errors.Is(err, ErrInvalidCredentials):
		pkg.WriteMessage(w, "Invalid credentials", http.StatusUnauthorized)
	case errors.Is(err, ErrStoreUnavailable):
		log.Errorf("users store unavailable: %s", err)
		pkg.WriteMessage(w, "store unavailable, try again later", http.StatusServiceUnavailable)
	default:
		log.Errorf("users: %s", err)
		pkg.WriteMessage(w, "server error", http.StatusInternalServerError)
	}
}
