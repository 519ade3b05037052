package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lupa/roster/internal/users"
)

type status struct {
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

func statusOf(code int) status {
	return status{Code: code, Reason: http.StatusText(code)}
}

// respond writes the status body merged with custom
func respond(c *gin.Context, code int, custom gin.H) {
	body := gin.H{"status": statusOf(code)}
	for k, v := range custom {
		body[k] = v
	}

	c.JSON(code, body)
}

func respondErrors(c *gin.Context, errs users.ValidationErrors) {
	respond(c, http.StatusBadRequest, gin.H{"errors": errs})
}

func respondNotFound(c *gin.Context) {
	respond(c, http.StatusNotFound, nil)
}

type userSummary struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	URL   string `json:"url"`
}

type userView struct {
	userSummary
	Configs   map[string]interface{} `json:"configs"`
	CreatedAt time.Time              `json:"createdAt"`
	UpdatedAt time.Time              `json:"updatedAt"`
}

func (s *Server) summarize(u users.User) userSummary {
	return userSummary{
		ID:    u.ID(),
		Name:  u.Name(),
		Email: u.Email(),
		URL:   s.userURL(u.ID()),
	}
}

func (s *Server) present(u users.User) userView {
	return userView{
		userSummary: s.summarize(u),
		Configs:     u.Configs(),
		CreatedAt:   u.CreatedAt(),
		UpdatedAt:   u.UpdatedAt(),
	}
}
