package web

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arlo/taskmill/internal/auth"
	"github.com/arlo/taskmill/internal/db"
)

type credentials struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req credentials
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Email) == "" || len(req.Password) < 8 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and a password of at least 8 characters are required"})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.fail(c, err)
		return
	}
	user, err := s.db.CreateUser(req.Email, strings.TrimSpace(req.Name), hash)
	if err != nil {
		s.fail(c, err)
		return
	}
	token, err := s.auth.IssueToken(user.ID)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user, "token": token})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req credentials
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := s.db.GetUserByEmail(req.Email)
	if err != nil {
		// A missing account and a wrong password are indistinguishable to
		// the caller.
		if err == db.ErrNotFound {
			s.fail(c, auth.ErrInvalidCredentials)
			return
		}
		s.fail(c, err)
		return
	}
	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		s.fail(c, err)
		return
	}
	token, err := s.auth.IssueToken(user.ID)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user, "token": token})
}

func (s *Server) handleMe(c *gin.Context) {
	user, err := s.db.GetUser(currentUser(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
