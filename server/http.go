package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"secure-chat/auth"
	"secure-chat/domain"
	"secure-chat/errors"
	"secure-chat/repositories"
	"secure-chat/services"

	"github.com/samber/lo"
)

// Server wires the account/contact/group API and the relay endpoint onto
// one mux. Everything under /users/{id}/ requires a token whose claims
// match the path id.
type Server struct {
	log         *slog.Logger
	authService services.IAuthService
	directory   repositories.IDirectory
	messages    repositories.IMessageRepository
	relay       *RelayHandler
}

func NewServer(log *slog.Logger, authService services.IAuthService,
	directory repositories.IDirectory, messages repositories.IMessageRepository,
	relay *RelayHandler) *Server {
	return &Server{
		log:         log,
		authService: authService,
		directory:   directory,
		messages:    messages,
		relay:       relay,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /", s.handleRoot)
	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("GET /users/search", s.handleSearch)

	mux.HandleFunc("POST /users/{id}/contacts", s.withAuth(s.handleAddContact))
	mux.HandleFunc("GET /users/{id}/contacts", s.withAuth(s.handleListContacts))
	mux.HandleFunc("POST /users/{id}/groups", s.withAuth(s.handleCreateGroup))
	mux.HandleFunc("GET /users/{id}/groups", s.withAuth(s.handleListGroups))
	mux.HandleFunc("GET /users/{id}/chats", s.withAuth(s.handleListChats))
	mux.HandleFunc("PUT /users/{id}/username", s.withAuth(s.handleUpdateUsername))
	mux.HandleFunc("GET /users/{id}/messages", s.withAuth(s.handleHistory))

	mux.HandleFunc("GET /ws/{client_id}", s.relay.ServeWS)

	return mux
}

type userResponse struct {
	ID       int64  `json:"id"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username"`
}

type groupResponse struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	Members []int64 `json:"members"`
}

type tokenResponse struct {
	Token    string `json:"token"`
	UserID   int64  `json:"uid"`
	Username string `json:"user"`
}

type messageResponse struct {
	ID        string `json:"id"`
	SenderID  int64  `json:"sender_id"`
	Target    string `json:"target"`
	TargetID  int64  `json:"target_id"`
	Blob      string `json:"blob"`
	Nonce     string `json:"nonce"`
	Algorithm string `json:"algorithm"`
	IsFile    bool   `json:"is_file"`
	CreatedAt int64  `json:"created_at"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{"message": "secure-chat relay running"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	user, token, err := s.authService.Register(req.Email, req.Username, req.Password)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusCreated, tokenResponse{
		Token:    string(token),
		UserID:   user.ID,
		Username: user.Username,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	user, token, err := s.authService.Login(req.Email, req.Password)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusOK, tokenResponse{
		Token:    string(token),
		UserID:   user.ID,
		Username: user.Username,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	user, err := s.directory.GetUserByUsername(username)
	if err != nil {
		s.respond(w, http.StatusOK, map[string]any{"found": false})
		return
	}
	s.respond(w, http.StatusOK, map[string]any{
		"found":    true,
		"username": user.Username,
		"user_id":  user.ID,
	})
}

func (s *Server) handleAddContact(w http.ResponseWriter, r *http.Request, userID int64) {
	var req struct {
		Username string `json:"username"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if err := auth.ValidateContact(auth.ContactRequest{Username: req.Username}); err != nil {
		s.failStatus(w, http.StatusBadRequest, err)
		return
	}
	contact, err := s.directory.AddContact(userID, req.Username)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusCreated, map[string]any{
		"status":  "added",
		"contact": toUserResponse(contact),
	})
}

func (s *Server) handleListContacts(w http.ResponseWriter, _ *http.Request, userID int64) {
	contacts, err := s.directory.Contacts(userID)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusOK, toUserResponses(contacts))
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request, userID int64) {
	var req struct {
		Name    string   `json:"name"`
		Members []string `json:"members"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if err := auth.ValidateGroup(auth.GroupRequest{Name: req.Name, Members: req.Members}); err != nil {
		s.failStatus(w, http.StatusBadRequest, err)
		return
	}
	group, err := s.directory.CreateGroup(userID, req.Name, req.Members)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusCreated, toGroupResponse(group))
}

func (s *Server) handleListGroups(w http.ResponseWriter, _ *http.Request, userID int64) {
	groups, err := s.directory.UserGroups(userID)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusOK, toGroupResponses(groups))
}

// handleListChats returns the combined picture a client needs to draw its
// sidebar: contacts plus group memberships.
func (s *Server) handleListChats(w http.ResponseWriter, _ *http.Request, userID int64) {
	contacts, err := s.directory.Contacts(userID)
	if err != nil {
		s.fail(w, err)
		return
	}
	groups, err := s.directory.UserGroups(userID)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]any{
		"users":  toUserResponses(contacts),
		"groups": toGroupResponses(groups),
	})
}

func (s *Server) handleUpdateUsername(w http.ResponseWriter, r *http.Request, userID int64) {
	var req struct {
		Username string `json:"username"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if err := auth.ValidateContact(auth.ContactRequest{Username: req.Username}); err != nil {
		s.failStatus(w, http.StatusBadRequest, err)
		return
	}
	user, err := s.directory.UpdateUsername(userID, req.Username)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusOK, toUserResponse(user))
}

// handleHistory is the historical-fetch path: messages a recipient missed
// while offline are read from the store, never replayed live.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, _ int64) {
	target := domain.TargetKind(r.URL.Query().Get("target"))
	if target != domain.TargetUser && target != domain.TargetGroup {
		s.failStatus(w, http.StatusBadRequest, errors.ErrUnknownTarget)
		return
	}
	targetID, err := strconv.ParseInt(r.URL.Query().Get("target_id"), 10, 64)
	if err != nil || targetID <= 0 {
		s.failStatus(w, http.StatusBadRequest, errors.ErrInvalidTargetID)
		return
	}
	var cursor *string
	if c := r.URL.Query().Get("cursor"); c != "" {
		cursor = &c
	}

	records, next, err := s.messages.History(target, targetID, cursor)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]any{
		"messages": toMessageResponses(repositories.ToMessages(records)),
		"cursor":   next,
	})
}

// withAuth enforces a Bearer token whose user id matches the {id} path
// segment, so a user can only read or mutate their own records.
func (s *Server) withAuth(next func(http.ResponseWriter, *http.Request, int64)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			s.failStatus(w, http.StatusUnauthorized, errors.ErrInvalidCredentials)
			return
		}
		claims, err := auth.ValidateToken(token)
		if err != nil {
			s.failStatus(w, http.StatusUnauthorized, errors.ErrInvalidCredentials)
			return
		}
		pathID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil || pathID != claims.UserID {
			s.failStatus(w, http.StatusForbidden, errors.ErrInvalidCredentials)
			return
		}
		next(w, r, claims.UserID)
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		s.failStatus(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func (s *Server) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error("Response encoding failed", "error", err)
	}
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	s.failStatus(w, errors.MapToHTTPStatus(err), err)
}

func (s *Server) failStatus(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.log.Error("Request failed", "error", err)
	}
	s.respond(w, status, map[string]string{"detail": err.Error()})
}

func toUserResponse(user repositories.User) userResponse {
	return userResponse{ID: user.ID, Email: user.Email, Username: user.Username}
}

func toUserResponses(users []repositories.User) []userResponse {
	return lo.Map(users, func(user repositories.User, _ int) userResponse {
		return toUserResponse(user)
	})
}

func toGroupResponse(group repositories.Group) groupResponse {
	return groupResponse{ID: group.ID, Name: group.Name, Members: group.Members}
}

func toGroupResponses(groups []repositories.Group) []groupResponse {
	return lo.Map(groups, func(group repositories.Group, _ int) groupResponse {
		return toGroupResponse(group)
	})
}

func toMessageResponses(messages []domain.Message) []messageResponse {
	return lo.Map(messages, func(item domain.Message, _ int) messageResponse {
		return messageResponse{
			ID:        item.ID.String(),
			SenderID:  item.SenderID,
			Target:    string(item.Target),
			TargetID:  item.TargetID,
			Blob:      item.Blob,
			Nonce:     item.Nonce,
			Algorithm: item.Algorithm,
			IsFile:    item.IsFile,
			CreatedAt: item.CreatedAt.UnixNano(),
		}
	})
}
