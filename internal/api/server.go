// Package api serves the users resource over two HTTP surfaces: a public
// one and an API one guarded by basic auth.
package api

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lupa/roster/internal/logger"
	"github.com/lupa/roster/internal/users"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultPublicAddr      = ":8080"
	DefaultAPIAddr         = ":8081"
	DefaultAPIURL          = "http://localhost:8081"
	DefaultUsername        = "radio"
	DefaultToken           = "lupalupa"
	DefaultShutdownTimeout = 5 * time.Second
	authRealm              = `Basic realm="REST API Access"`
)

type UserStore interface {
	Paginate(ctx context.Context, page, perPage int) (users.Page, error)
	Find(ctx context.Context, id int64) (users.User, error)
	Create(ctx context.Context, in users.Input) (users.User, error)
	Update(ctx context.Context, id int64, in users.Input) (users.User, error)
	Delete(ctx context.Context, id int64) error
}

type Config struct {
	PublicAddr      string
	APIAddr         string
	APIURL          string
	Username        string
	Token           string
	PerPage         int
	ShutdownTimeout time.Duration
}

func (cfg Config) withDefaults() Config {
	if cfg.PublicAddr == "" {
		cfg.PublicAddr = DefaultPublicAddr
	}
	if cfg.APIAddr == "" {
		cfg.APIAddr = DefaultAPIAddr
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.Username == "" {
		cfg.Username = DefaultUsername
	}
	if cfg.Token == "" {
		cfg.Token = DefaultToken
	}
	if cfg.PerPage < 1 {
		cfg.PerPage = users.DefaultPerPage
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}

	return cfg
}

type Server struct {
	cfg    Config
	lg     logger.Logger
	store  UserStore
	public *gin.Engine
	api    *gin.Engine
}

func New(store UserStore, lg logger.Logger, cfg Config) *Server {
	if lg == nil {
		lg = logger.NullLogger{}
	}

	s := &Server{
		cfg:   cfg.withDefaults(),
		lg:    lg,
		store: store,
	}

	s.public = s.engine()
	s.api = s.engine(s.basicAuth())

	return s
}

// Public is the handler of the unauthenticated surface
func (s *Server) Public() http.Handler {
	return s.public
}

// API is the handler of the surface guarded by basic auth
func (s *Server) API() http.Handler {
	return s.api
}

// Run serves both surfaces until ctx is done or one of them fails
func (s *Server) Run(ctx context.Context) error {
	servers := []*http.Server{
		{Addr: s.cfg.PublicAddr, Handler: s.public, ReadHeaderTimeout: 10 * time.Second},
		{Addr: s.cfg.APIAddr, Handler: s.api, ReadHeaderTimeout: 10 * time.Second},
	}

	g, gctx := errgroup.WithContext(ctx)

	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			s.lg.Infof("listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrapf(err, "could not serve on %s", srv.Addr)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
		defer cancel()

		var result error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil && result == nil {
				result = errors.Wrapf(err, "could not shut down %s", srv.Addr)
			}
		}

		return result
	})

	return g.Wait()
}

func (s *Server) engine(middleware ...gin.HandlerFunc) *gin.Engine {
	e := gin.New()
	e.Use(gin.Recovery(), s.requestLogger())
	e.Use(middleware...)

	e.GET("/", s.home(e))

	u := e.Group("/users")
	{
		u.GET("", s.index)
		u.HEAD("", s.index)
		u.POST("", s.create)
		u.GET("/:id", s.show)
		u.HEAD("/:id", s.show)
		u.PATCH("/:id", s.update)
		u.PUT("/:id", s.replace)
		u.DELETE("/:id", s.delete)
	}

	e.NoRoute(func(c *gin.Context) {
		respondNotFound(c)
	})

	return e
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.lg.Infof(
			"%s %s %d %s",
			c.Request.Method, c.Request.URL.RequestURI(), c.Writer.Status(), time.Since(start).Round(time.Microsecond),
		)

		for _, err := range c.Errors {
			s.lg.Error(err.Err)
		}
	}
}

func (s *Server) basicAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		username, token, ok := c.Request.BasicAuth()
		if ok && equal(username, s.cfg.Username) && equal(token, s.cfg.Token) {
			c.Next()
			return
		}

		c.Header("WWW-Authenticate", authRealm)
		respond(c, http.StatusUnauthorized, nil)
		c.Abort()
	}
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

type routeView struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

func (s *Server) home(e *gin.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var routes []routeView
		for _, r := range e.Routes() {
			routes = append(routes, routeView{Method: r.Method, Path: r.Path})
		}

		respond(c, http.StatusOK, gin.H{"data": routes})
	}
}

func (s *Server) userURL(id int64) string {
	return fmt.Sprintf("%s/users/%d", strings.TrimRight(s.cfg.APIURL, "/"), id)
}
