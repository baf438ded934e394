package web

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pilipi-dev/pilipi/internal/guard"
	"github.com/pilipi-dev/pilipi/internal/models"
	"github.com/pilipi-dev/pilipi/internal/session"
)

// MsgAlreadyLoggedIn answers a login attempt from a signed in session
const MsgAlreadyLoggedIn = "Already logged in."

// SessionResponse is the public view of the current session. The token is
// never exposed.
type SessionResponse struct {
	Loading       bool            `json:"loading"`
	Authenticated bool            `json:"authenticated"`
	Role          models.UserType `json:"role,omitempty"`
	User          *models.User    `json:"user,omitempty"`
	Location      string          `json:"location"`
}

// ResultResponse mirrors session.Result
type ResultResponse struct {
	Success             bool   `json:"success"`
	Message             string `json:"message,omitempty"`
	PasswordIsTemporary bool   `json:"password_is_temporary,omitempty"`
	Redirect            string `json:"redirect,omitempty"`
}

func (s *Server) sessionResponse() SessionResponse {
	snap := s.app.Store.Snapshot()
	return SessionResponse{
		Loading:       snap.Loading,
		Authenticated: snap.IsAuthenticated(),
		Role:          snap.Role(),
		User:          snap.User,
		Location:      s.app.Nav.Location(),
	}
}

func (s *Server) getSession(c *gin.Context) {
	c.JSON(http.StatusOK, s.sessionResponse())
}

func (s *Server) getNavigation(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"location": s.app.Nav.Location(),
		"history":  s.app.Nav.History(),
	})
}

// respondResult writes r with failure mapped to status
func respondResult(c *gin.Context, r session.Result, failure int, redirect string) {
	resp := ResultResponse{
		Success:             r.Success,
		Message:             r.Message,
		PasswordIsTemporary: r.PasswordIsTemporary,
	}
	if !r.Success {
		c.JSON(failure, resp)
		return
	}
	resp.Redirect = redirect
	c.JSON(http.StatusOK, resp)
}

func (s *Server) login(c *gin.Context) {
	var req models.Credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// The login view is public-only: a signed in user is sent to their landing
	policy := s.app.Guard.Policy()
	if d := s.app.Guard.Decide(s.app.Store.Snapshot(), policy.Login); d.Outcome == guard.OutcomeRedirect {
		c.JSON(http.StatusConflict, ResultResponse{
			Success:  false,
			Message:  MsgAlreadyLoggedIn,
			Redirect: s.app.Nav.Navigate(d.Location).Path,
		})
		return
	}

	res := s.app.Manager.Login(c.Request.Context(), req)

	redirect := ""
	if res.Success {
		if res.PasswordIsTemporary {
			redirect = s.app.Nav.Navigate("/change-password").Path
		} else {
			redirect = s.app.Nav.Navigate(s.app.Guard.Policy().LandingFor(s.app.Store.Snapshot().Role())).Path
		}
	}
	respondResult(c, res, http.StatusUnauthorized, redirect)
}

func (s *Server) logout(c *gin.Context) {
	res := s.app.Manager.Logout(c.Request.Context())
	respondResult(c, res, http.StatusInternalServerError, s.app.Nav.Navigate(s.app.Guard.Policy().Login).Path)
}

func (s *Server) register(c *gin.Context) {
	var req models.Registration
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res := s.app.Manager.Register(c.Request.Context(), req)

	redirect := ""
	if res.Success {
		// Registration does not log in; send the user to the login view
		redirect = s.app.Nav.Navigate(s.app.Guard.Policy().Login).Path
	}
	respondResult(c, res, http.StatusBadRequest, redirect)
}

func (s *Server) updateProfile(c *gin.Context) {
	var req models.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res := s.app.Manager.UpdateProfile(c.Request.Context(), req)
	respondResult(c, res, s.failureStatus(), "")
}

func (s *Server) changePassword(c *gin.Context) {
	var req models.PasswordChange
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res := s.app.Manager.ChangePassword(c.Request.Context(), req)
	respondResult(c, res, s.failureStatus(), "")
}

func (s *Server) refresh(c *gin.Context) {
	res := s.app.Manager.Refresh(c.Request.Context())
	respondResult(c, res, s.failureStatus(), "")
}

// failureStatus is 401 once the session is gone, 400 otherwise
func (s *Server) failureStatus() int {
	if !s.app.Store.Snapshot().IsAuthenticated() {
		return http.StatusUnauthorized
	}
	return http.StatusBadRequest
}

// PageResponse is the body of a page navigation
type PageResponse struct {
	Decision guard.Decision  `json:"decision"`
	Session  SessionResponse `json:"session"`
}

// page runs the guard for the requested location. Redirects become 302 so
// the browser address follows the decision.
func (s *Server) page(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	requested := guard.CleanPath(c.Request.URL.Path)
	d := s.app.Nav.Navigate(requested)

	if d.Path != requested {
		c.Redirect(http.StatusFound, d.Path)
		return
	}

	status := http.StatusOK
	switch d.Outcome {
	case guard.OutcomePending:
		status = http.StatusAccepted
	case guard.OutcomeDenied:
		status = http.StatusForbidden
	case guard.OutcomeNotFound:
		status = http.StatusNotFound
	}

	c.JSON(status, PageResponse{Decision: d, Session: s.sessionResponse()})
}
