package apifake

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/teamsales/crm-client/crmapi"
)

// Account is a user the fake API will authenticate.
type Account struct {
	ID         string
	Username   string
	Email      string
	Password   string
	Role       string
	TenantID   string
	TenantName string
	AvatarRef  string
}

// Server is an in-process stand-in for the remote TeamSales CRM API. Tests
// wrap Handler() in an httptest server; behaviour switches below simulate
// the failure modes the client has to survive.
type Server struct {
	lock sync.Mutex

	accounts map[string]Account // keyed by email
	tokens   map[string]string  // token -> email
	leads    []crmapi.Lead
	products []crmapi.Product

	forceUnauthorized bool
	omitTenant        bool
	omitToken         bool
	nextLoginDelay    time.Duration

	lastAuthorization string
}

func New() *Server {
	return &Server{
		accounts: make(map[string]Account),
		tokens:   make(map[string]string),
	}
}

// AddAccount registers an account, assigning an ID when none is given.
func (s *Server) AddAccount(acc Account) Account {
	s.lock.Lock()
	defer s.lock.Unlock()
	if acc.ID == "" {
		acc.ID = uuid.New().String()
	}
	s.accounts[acc.Email] = acc
	return acc
}

// SeedLeads replaces the lead fixtures served by GET /api/leads.
func (s *Server) SeedLeads(leads []crmapi.Lead) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.leads = leads
}

// SeedProducts replaces the product fixtures served by GET /api/products.
func (s *Server) SeedProducts(products []crmapi.Product) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.products = products
}

// ForceUnauthorized makes every request answer 401 until switched off.
func (s *Server) ForceUnauthorized(v bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.forceUnauthorized = v
}

// RespondWithoutTenant drops tenantId from login responses, simulating a
// malformed auth payload.
func (s *Server) RespondWithoutTenant(v bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.omitTenant = v
}

// RespondWithoutToken drops the token from login responses.
func (s *Server) RespondWithoutToken(v bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.omitToken = v
}

// DelayNextLogin makes the next login request sleep before answering, for
// racing two attempts against each other.
func (s *Server) DelayNextLogin(d time.Duration) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.nextLoginDelay = d
}

// LastAuthorization returns the Authorization header seen on the most recent
// resource request.
func (s *Server) LastAuthorization() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.lastAuthorization
}

// Handler returns the routed fake API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.unauthorizedSwitch)
	r.Post("/api/auth/login", s.handleLogin)
	r.Post("/api/auth/register", s.handleRegister)
	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/api/leads", s.handleLeads)
		r.Get("/api/products", s.handleProducts)
		r.Get("/api/salespersons", s.handleSalespersons)
	})
	return r
}

func (s *Server) unauthorizedSwitch(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.lock.Lock()
		forced := s.forceUnauthorized
		s.lock.Unlock()
		if forced {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "session expired"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")

		s.lock.Lock()
		s.lastAuthorization = header
		token := strings.TrimPrefix(header, "Bearer ")
		_, known := s.tokens[token]
		s.lock.Unlock()

		if header == "" || !known {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "missing or invalid token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds crmapi.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}

	s.lock.Lock()
	delay := s.nextLoginDelay
	s.nextLoginDelay = 0
	acc, ok := s.accounts[creds.Email]
	omitTenant, omitToken := s.omitTenant, s.omitToken
	s.lock.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	if !ok || acc.Password != creds.Password || acc.Role != creds.Role {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid credentials"})
		return
	}

	token := uuid.New().String()
	s.lock.Lock()
	s.tokens[token] = acc.Email
	s.lock.Unlock()

	user := crmapi.User{
		ID:         acc.ID,
		Username:   acc.Username,
		Email:      acc.Email,
		Role:       acc.Role,
		TenantID:   acc.TenantID,
		TenantName: acc.TenantName,
		AvatarRef:  acc.AvatarRef,
	}
	if omitTenant {
		user.TenantID = ""
	}
	resp := crmapi.LoginResponse{User: user, Token: token}
	if omitToken {
		resp.Token = ""
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var reg crmapi.Registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}
	if reg.Email == "" || reg.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "email and password are required"})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"id":      uuid.New().String(),
		"message": "registration received, check your email to verify the account",
	})
}

func (s *Server) handleLeads(w http.ResponseWriter, r *http.Request) {
	s.lock.Lock()
	leads := append([]crmapi.Lead(nil), s.leads...)
	s.lock.Unlock()
	writeJSON(w, http.StatusOK, leads)
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	s.lock.Lock()
	products := append([]crmapi.Product(nil), s.products...)
	s.lock.Unlock()
	writeJSON(w, http.StatusOK, products)
}

func (s *Server) handleSalespersons(w http.ResponseWriter, r *http.Request) {
	s.lock.Lock()
	salespersons := make([]crmapi.Salesperson, 0)
	for _, acc := range s.accounts {
		if acc.Role != "salesperson" {
			continue
		}
		salespersons = append(salespersons, crmapi.Salesperson{
			ID:        acc.ID,
			Username:  acc.Username,
			Email:     acc.Email,
			TenantID:  acc.TenantID,
			AvatarRef: acc.AvatarRef,
		})
	}
	s.lock.Unlock()
	writeJSON(w, http.StatusOK, salespersons)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
