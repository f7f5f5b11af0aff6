package router

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	govalidator "github.com/go-playground/validator/v10"

	"github.com/jwalitptl/patient-records/internal/handler/auth"
	"github.com/jwalitptl/patient-records/internal/handler/health"
	"github.com/jwalitptl/patient-records/internal/handler/patient"
	"github.com/jwalitptl/patient-records/internal/handler/prometheus"
	"github.com/jwalitptl/patient-records/internal/middleware"
	"github.com/jwalitptl/patient-records/internal/model"
	"github.com/jwalitptl/patient-records/pkg/metrics"
	"github.com/jwalitptl/patient-records/pkg/validator"
)

var staffRoles = []model.Role{model.RoleAdmin, model.RoleDoctor, model.RoleNurse}

type RouterConfig struct {
	Mode         string
	MaxBodyBytes int64
	CORSOrigins  []string
	RateLimit    *middleware.RateLimiterConfig // nil disables rate limiting
	MetricsPath  string                        // empty disables /metrics
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	patientH *patient.Handler
	authH    *auth.Handler
	healthH  *health.Handler
	metrics  *metrics.Metrics
	config   RouterConfig
}

func NewRouter(
	config RouterConfig,
	m *metrics.Metrics,
	authMW *middleware.AuthMiddleware,
	patientH *patient.Handler,
	authH *auth.Handler,
	healthH *health.Handler,
) (*Router, error) {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}

	engine, ok := binding.Validator.Engine().(*govalidator.Validate)
	if !ok {
		return nil, fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}
	if err := validator.Register(engine); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = middleware.DefaultMaxBodySize
	}

	r := &Router{
		engine:   gin.New(),
		auth:     authMW,
		patientH: patientH,
		authH:    authH,
		healthH:  healthH,
		metrics:  m,
		config:   config,
	}
	r.setup()
	return r, nil
}

func (r *Router) setup() {
	// Add core middlewares
	r.engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
	)
	if r.metrics != nil {
		r.engine.Use(middleware.Metrics(r.metrics))
	}
	r.engine.Use(
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.CORS(middleware.DefaultCORSConfig(r.config.CORSOrigins)),
	)
	if r.config.RateLimit != nil {
		r.engine.Use(middleware.NewRateLimiter(*r.config.RateLimit).RateLimit())
	}
	r.engine.Use(middleware.SizeLimit(middleware.SizeLimitConfig{
		MaxBodySize: r.config.MaxBodyBytes,
	}))

	compress := middleware.DefaultCompressConfig()
	if r.config.MetricsPath != "" {
		// promhttp negotiates its own encoding
		compress.SkipPaths = []string{r.config.MetricsPath}
	}
	r.engine.Use(middleware.Compress(compress))

	// Operational routes
	r.healthH.RegisterRoutes(r.engine)
	if r.metrics != nil && r.config.MetricsPath != "" {
		prometheus.New(r.metrics.Registry).RegisterRoutes(r.engine, r.config.MetricsPath)
	}

	// Public routes
	r.authH.RegisterRoutes(r.engine)

	// Protected routes
	protected := r.engine.Group("")
	protected.Use(r.auth.Authenticate())
	r.patientH.RegisterRoutes(protected, patient.Guards{
		List:   r.auth.RequireRoles(staffRoles...),
		Read:   r.auth.RequireRolesOrSelf("pid", staffRoles...),
		Write:  r.auth.RequireRoles(staffRoles...),
		Delete: r.auth.RequireRoles(model.RoleAdmin),
	})
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
