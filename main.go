package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/guillecro/leyesabiertas-core/handlers"
	"github.com/guillecro/leyesabiertas-core/internal/apperrors"
	"github.com/guillecro/leyesabiertas-core/internal/community"
	"github.com/guillecro/leyesabiertas-core/internal/config"
	"github.com/guillecro/leyesabiertas-core/internal/customform"
	"github.com/guillecro/leyesabiertas-core/internal/database"
	"github.com/guillecro/leyesabiertas-core/internal/notify"
	"github.com/guillecro/leyesabiertas-core/internal/oidc"
	"github.com/guillecro/leyesabiertas-core/internal/tokens"
	"github.com/guillecro/leyesabiertas-core/internal/users"
	"github.com/guillecro/leyesabiertas-core/pkg/logger"
	"github.com/guillecro/leyesabiertas-core/pkg/metrics"
	"github.com/guillecro/leyesabiertas-core/pkg/middleware"

	commenthandler "github.com/guillecro/leyesabiertas-core/internal/comment/handler"
	commentrepo "github.com/guillecro/leyesabiertas-core/internal/comment/repository"
	commentservice "github.com/guillecro/leyesabiertas-core/internal/comment/service"
	documenthandler "github.com/guillecro/leyesabiertas-core/internal/document/handler"
	documentrepo "github.com/guillecro/leyesabiertas-core/internal/document/repository"
	documentservice "github.com/guillecro/leyesabiertas-core/internal/document/service"
)

var startTime = time.Now()

func main() {
	// logging is controlled with LOG_LEVEL env: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: keycloak=%v mongo=%v redis=%v notifier=%v",
		cfg.Keycloak.URL != "", cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.Notifier.URL != "")

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// Lightweight CORS middleware for dev/test: set common headers and respond
	// to OPTIONS. Production should sit behind a stricter policy.
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}
		c.Next()
	})

	// Connect to Redis early so the rate limiter and closing-date schedule
	// can use it when configured
	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		rc := redis.NewClient(&redis.Options{Addr: cfg.Redis.Host + ":" + cfg.Redis.Port, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rc.Ping(context.Background()).Err(); err == nil {
			redisClient = rc
			logger.Infof("connected to Redis (%s:%s)", cfg.Redis.Host, cfg.Redis.Port)
		} else {
			logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
		}
	}

	// Optional global rate limiter (per-user when authenticated, otherwise per-IP)
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && redisClient != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(redisClient, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	// Token verifier: Keycloak OIDC when configured, HS256 local tokens as a
	// fallback, and an explicitly opted-in insecure parser for integration tests.
	ctx := context.Background()
	var verifier middleware.Verifier
	if cfg.Keycloak.URL != "" && cfg.Keycloak.ClientID != "" && cfg.Keycloak.Realm != "" {
		issuer := strings.TrimRight(cfg.Keycloak.URL, "/") + "/realms/" + cfg.Keycloak.Realm
		ver, err := oidc.NewVerifier(ctx, issuer, cfg.Keycloak.ClientID)
		if err != nil {
			logger.Warnf("failed to initialize OIDC verifier: %v", err)
		} else {
			verifier = ver
		}
	}
	if verifier == nil && cfg.JWT.Secret != "" {
		verifier = tokens.NewVerifier(cfg.JWT.Secret)
		logger.Infof("using HS256 token verifier")
	}
	if verifier == nil {
		if strings.EqualFold(strings.TrimSpace(os.Getenv("ALLOW_INSECURE_TOKEN")), "true") {
			logger.Warn("enabling insecure token verifier (integration mode)")
			verifier = oidc.NewInsecureVerifier()
		} else {
			logger.Fatalf("no token verifier available: set KEYCLOAK_URL or JWT_SECRET (or ALLOW_INSECURE_TOKEN=true for tests)")
		}
	}
	auth := middleware.AuthMiddleware(verifier)

	// Connect to MongoDB with retry/backoff to tolerate startup races. When no
	// Mongo is configured or reachable the service falls back to in-memory
	// stores, which is enough for local development.
	var mongoClient *mongo.Client
	if cfg.MongoDB.URI != "" {
		const maxAttempts = 5
		backoff := time.Second
		var errConn error
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			mongoClient, errConn = database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
			if errConn == nil {
				break
			}
			logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, maxAttempts, errConn)
			if attempt < maxAttempts {
				time.Sleep(backoff)
				backoff *= 2
			}
		}
		if errConn != nil {
			logger.Warnf("could not connect to MongoDB after %d attempts: %v", maxAttempts, errConn)
			mongoClient = nil
		}
	}
	if mongoClient != nil {
		defer func() { _ = mongoClient.Disconnect(ctx) }()
	}

	// Notification dispatcher: HTTP sink when a dispatcher URL is configured,
	// a log-only sink otherwise. The closing-date schedule lives in Redis when
	// available so restarts keep the latest date.
	var sink notify.Sink
	if cfg.Notifier.URL != "" {
		sink = notify.NewHTTPSink(cfg.Notifier.URL, cfg.Notifier.Timeout)
	} else {
		sink = notify.FuncSink(func(ctx context.Context, ev notify.Event) error {
			logger.Infof("notification (no sink configured): type=%s comment=%s document=%s", ev.Type, ev.CommentID, ev.DocumentID)
			return nil
		})
	}
	var schedule notify.ScheduleStore
	if redisClient != nil {
		schedule = notify.NewRedisScheduleStore(redisClient, "closes:")
	} else {
		schedule = notify.NewMemoryScheduleStore()
	}
	dispatcher := notify.NewDispatcher(sink, schedule, 256)
	defer dispatcher.Close()

	// Repository wiring: Mongo collections when connected, memory otherwise.
	var (
		userSvc    *users.Service
		formSvc    *customform.Service
		policy     community.Repository
		docSvc     *documentservice.Service
		commentSvc *commentservice.Service
	)
	if mongoClient != nil {
		db := mongoClient.Database(cfg.MongoDB.Database)
		userSvc = users.NewService(users.NewMongoUserRepository(db.Collection("users")))
		formSvc = customform.NewService(customform.NewMongoRepository(db.Collection("customforms")))
		policy = community.NewMongoRepository(db.Collection("communities"), cfg.Community)
		versions := documentrepo.NewMongoVersionRepo(db.Collection("documentversions"))
		docs := documentrepo.NewMongoDocumentRepo(db.Collection("documents"), versions)
		comments := commentrepo.NewMongoCommentRepo(db.Collection("comments"))
		likes := commentrepo.NewMongoLikeRepo(db.Collection("likes"))
		docSvc = documentservice.New(docs, versions, formSvc, policy, comments, dispatcher)
		commentSvc = commentservice.New(comments, likes, docs, versions, formSvc, dispatcher)
	} else {
		logger.Warnf("MongoDB unavailable, using in-memory stores")
		formSvc = customform.NewService(customform.NewMemoryRepository(&customform.CustomForm{
			Slug:    "project",
			Name:    "Project",
			Version: 1,
			Fields:  customform.FormFields{AllowComments: []string{"fundamentation", "articles"}},
		}))
		policy = community.NewStaticRepository(community.Default(cfg.Community))
		versions := documentrepo.NewMemoryVersionRepo()
		docs := documentrepo.NewMemoryDocumentRepo(versions)
		comments := commentrepo.NewMemoryCommentRepo()
		likes := commentrepo.NewMemoryLikeRepo()
		docSvc = documentservice.New(docs, versions, formSvc, policy, comments, dispatcher)
		commentSvc = commentservice.New(comments, likes, docs, versions, formSvc, dispatcher)
	}

	// Basic health endpoint
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// readiness: 200 only when critical dependencies are available
	r.GET("/ready", func(c *gin.Context) {
		ready := true
		deps := map[string]bool{}

		deps["mongodb"] = mongoClient != nil && database.Ping(c.Request.Context(), mongoClient) == nil
		if cfg.MongoDB.URI != "" && !deps["mongodb"] {
			ready = false
		}
		if cfg.Redis.Host != "" && cfg.RateLimit.UseRedis {
			deps["redis"] = redisClient != nil
			if redisClient == nil {
				ready = false
			}
		} else {
			deps["redis"] = true
		}
		deps["verifier"] = verifier != nil

		status := http.StatusOK
		label := "ready"
		if !ready {
			status = http.StatusServiceUnavailable
			label = "not_ready"
		}
		c.JSON(status, gin.H{"status": label, "deps": deps, "uptime": time.Since(startTime).String()})
	})

	handlers.RegisterSwagger(r)

	api := r.Group("/api/v1")
	documenthandler.RegisterDocumentRoutes(api, docSvc, auth)
	commenthandler.RegisterCommentRoutes(api, commentSvc, auth)

	// read-only provider endpoints: the community settings and the form
	// schemas the frontend renders documents from
	api.GET("/community", func(c *gin.Context) {
		com, err := policy.Get(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, com)
	})
	api.GET("/customforms", func(c *gin.Context) {
		forms, err := formSvc.List(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, forms)
	})
	api.GET("/customforms/:ref", func(c *gin.Context) {
		form, err := formSvc.Resolve(c.Request.Context(), c.Param("ref"))
		if err != nil {
			c.JSON(apperrors.Status(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, form)
	})

	api.GET("/me", auth, func(c *gin.Context) {
		claims, _ := c.Get("claims")
		if userSvc != nil {
			if cm, ok := claims.(map[string]interface{}); ok {
				u, err := userSvc.UpsertFromClaims(c.Request.Context(), cm)
				if err == nil && u != nil {
					c.JSON(http.StatusOK, gin.H{"user": u})
					return
				}
			}
		}
		// fallback: return claims
		c.JSON(http.StatusOK, gin.H{"claims": claims})
	})

	// Expose Prometheus metrics
	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.Infof("starting leyesabiertas-core on %s", addr)
	if err := r.Run(addr); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
}
