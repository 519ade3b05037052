package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/lupa/roster/internal/users"
	"github.com/pkg/errors"
)

var allowedOnUser = strings.Join([]string{
	http.MethodDelete,
	http.MethodGet,
	http.MethodHead,
	http.MethodPatch,
}, ", ")

type links struct {
	First    string  `json:"first"`
	Previous *string `json:"previous"`
	Self     string  `json:"self"`
	Next     *string `json:"next"`
	Last     string  `json:"last"`
}

// GET /users?page=N
func (s *Server) index(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}

	p, err := s.store.Paginate(c.Request.Context(), page, s.cfg.PerPage)
	if err != nil {
		s.fail(c, err)
		return
	}

	data := make([]userSummary, 0, len(p.Users))
	for _, u := range p.Users {
		data = append(data, s.summarize(u))
	}

	respond(c, http.StatusOK, gin.H{
		"data":  data,
		"links": pageLinks(c, p),
	})
}

func pageLinks(c *gin.Context, p users.Page) links {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}

	base := fmt.Sprintf("%s://%s%s", scheme, c.Request.Host, c.Request.URL.Path)
	url := func(page int) string {
		return fmt.Sprintf("%s?page=%d", base, page)
	}

	l := links{
		First: url(1),
		Self:  url(p.Page),
		Last:  url(p.LastPage),
	}

	if p.Page > 1 {
		prev := url(p.Page - 1)
		l.Previous = &prev
	}

	if p.Page < p.LastPage {
		next := url(p.Page + 1)
		l.Next = &next
	}

	return l
}

// GET /users/:id
func (s *Server) show(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		respondNotFound(c)
		return
	}

	u, err := s.store.Find(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{"data": s.present(u)})
}

// POST /users
func (s *Server) create(c *gin.Context) {
	in, err := bindInput(c)
	if err != nil {
		_ = c.Error(err)
		respond(c, http.StatusUnprocessableEntity, nil)
		return
	}

	u, err := s.store.Create(c.Request.Context(), in)
	if err != nil {
		s.fail(c, err)
		return
	}

	respond(c, http.StatusCreated, gin.H{"data": s.present(u)})
}

// PATCH /users/:id
func (s *Server) update(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		respondNotFound(c)
		return
	}

	in, err := bindInput(c)
	if err != nil {
		_ = c.Error(err)
		respond(c, http.StatusUnprocessableEntity, nil)
		return
	}

	u, err := s.store.Update(c.Request.Context(), id, in)
	if err != nil {
		s.fail(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{"data": s.present(u)})
}

// PUT /users/:id
func (s *Server) replace(c *gin.Context) {
	c.Header("Allow", allowedOnUser)
	respond(c, http.StatusMethodNotAllowed, nil)
}

// DELETE /users/:id
func (s *Server) delete(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		respondNotFound(c)
		return
	}

	if err := s.store.Delete(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}

	respond(c, http.StatusOK, nil)
}

func (s *Server) fail(c *gin.Context, err error) {
	var ve users.ValidationErrors

	switch {
	case errors.As(err, &ve):
		respondErrors(c, ve)
	case errors.Is(err, users.ErrNotFound):
		respondNotFound(c)
	default:
		_ = c.Error(err)
		respond(c, http.StatusInternalServerError, nil)
	}
}

func userID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}

	return id, true
}

type jsonInput struct {
	Name     *string         `json:"name"`
	Email    *string         `json:"email"`
	Password *string         `json:"password"`
	Configs  json.RawMessage `json:"configs"`
}

// bindInput reads a JSON or form body. JSON configs may be sent either as an
// object or as a string holding one.
func bindInput(c *gin.Context) (users.Input, error) {
	if c.ContentType() != binding.MIMEJSON {
		var in users.Input
		if err := c.ShouldBindWith(&in, binding.Form); err != nil {
			return users.Input{}, errors.Wrap(err, "could not parse form body")
		}

		return in, nil
	}

	var body jsonInput
	if err := c.ShouldBindJSON(&body); err != nil {
		return users.Input{}, errors.Wrap(err, "could not parse json body")
	}

	in := users.Input{Name: body.Name, Email: body.Email, Password: body.Password}

	raw := strings.TrimSpace(string(body.Configs))
	switch {
	case raw == "" || raw == "null":
	case strings.HasPrefix(raw, `"`):
		var configs string
		if err := json.Unmarshal(body.Configs, &configs); err != nil {
			return users.Input{}, errors.Wrap(err, "could not parse configs")
		}
		in.Configs = &configs
	default:
		in.Configs = &raw
	}

	return in, nil
}
