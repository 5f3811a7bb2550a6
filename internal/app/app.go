// Package app assembles the DigitalBank service from configuration: storage
// backends, domain services, the HTTP router and the background workers.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"digitalbank/internal/audit"
	auditMetrics "digitalbank/internal/audit/metrics"
	"digitalbank/internal/audit/relay"
	auditMemory "digitalbank/internal/audit/store/memory"
	auditPostgres "digitalbank/internal/audit/store/postgres"
	ledgerPorts "digitalbank/internal/ledger/ports"
	ledgerService "digitalbank/internal/ledger/service"
	ledgerMemory "digitalbank/internal/ledger/store/memory"
	ledgerPostgres "digitalbank/internal/ledger/store/postgres"
	mfaMetrics "digitalbank/internal/mfa/metrics"
	mfaService "digitalbank/internal/mfa/service"
	"digitalbank/internal/mfa/store/challenge"
	"digitalbank/internal/mfa/store/factor"
	"digitalbank/internal/platform/config"
	"digitalbank/internal/platform/httpserver"
	"digitalbank/internal/platform/kafka"
	"digitalbank/internal/platform/metrics"
	"digitalbank/internal/platform/postgres"
	"digitalbank/internal/platform/redis"
	policyMetrics "digitalbank/internal/policy/metrics"
	rlMetrics "digitalbank/internal/ratelimit/metrics"
	rlMiddleware "digitalbank/internal/ratelimit/middleware"
	rlModels "digitalbank/internal/ratelimit/models"
	"digitalbank/internal/ratelimit/ports"
	"digitalbank/internal/ratelimit/service/authlockout"
	"digitalbank/internal/ratelimit/service/requestlimit"
	lockoutStore "digitalbank/internal/ratelimit/store/authlockout"
	"digitalbank/internal/ratelimit/store/bucket"
	sessionMetrics "digitalbank/internal/session/metrics"
	sessionModels "digitalbank/internal/session/models"
	sessionService "digitalbank/internal/session/service"
	"digitalbank/internal/session/store/credential"
	"digitalbank/internal/session/store/revocation"
	"digitalbank/internal/session/token"
	httptransport "digitalbank/internal/transport/http"
	id "digitalbank/pkg/domain"
	"digitalbank/pkg/platform/middleware/device"
)

const (
	purgeInterval       = time.Minute
	outboxPurgeInterval = time.Hour
	outboxRetention     = 24 * time.Hour
	kafkaPartitions     = 3
	kafkaReplication    = 1
)

type purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

type outboxPurger interface {
	PurgePublishedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

type idlePurger interface {
	PurgeIdle(ctx context.Context, cutoff time.Time) (int, error)
}

type credentialStore interface {
	sessionService.CredentialStore
	Save(ctx context.Context, c *sessionModels.Credential) error
}

// factorChecker lets the session manager ask the factor store directly, so
// the session and MFA services do not depend on each other.
type factorChecker struct {
	factors mfaService.FactorStore
}

func (f factorChecker) HasVerifiedFactor(ctx context.Context, principalID id.PrincipalID) (bool, error) {
	return f.factors.HasVerified(ctx, principalID)
}

// App owns every long-lived resource of the service.
type App struct {
	cfg    config.Config
	logger *slog.Logger

	Metrics     *metrics.Metrics
	Server      *http.Server
	Credentials credentialStore
	Ledger      ledgerPorts.Store
	Sessions    *sessionService.Service
	MFA         *mfaService.Service

	db       *sql.DB
	redis    *redis.Client
	producer *kgo.Client

	lockout     *authlockout.Service
	buckets     idlePurger
	revocations purger
	challenges  purger
	outbox      outboxPurger
	relay       *relay.Relay
}

// New connects the configured backends and wires the services. Empty
// DATABASE_URL, REDIS_URL and KAFKA_BROKERS select in-memory stores and
// disable the outbox relay.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger, Metrics: metrics.New()}
	if err := a.connect(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.wire(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) connect(ctx context.Context) error {
	if a.cfg.Database.URL != "" {
		db, err := postgres.Open(ctx, postgres.Config{
			URL:          a.cfg.Database.URL,
			MaxOpenConns: a.cfg.Database.MaxOpenConns,
			MaxIdleConns: a.cfg.Database.MaxIdleConns,
		})
		if err != nil {
			return err
		}
		a.db = db
	}

	client, err := redis.New(ctx, a.cfg.Redis)
	if err != nil {
		return err
	}
	a.redis = client

	if brokers := kafka.ParseBrokers(a.cfg.Kafka.Brokers); len(brokers) > 0 {
		producer, err := kafka.NewProducer(kafka.Config{
			Brokers:        brokers,
			ClientID:       "digitalbank",
			DefaultTopic:   a.cfg.Kafka.AuditTopic,
			ProduceTimeout: a.cfg.UpstreamTimeout,
		})
		if err != nil {
			return err
		}
		a.producer = producer
		if err := kafka.EnsureTopic(ctx, producer, a.cfg.Kafka.AuditTopic, kafkaPartitions, kafkaReplication); err != nil {
			return err
		}
	}

	a.logger.InfoContext(ctx, "storage backends selected",
		"postgres", a.db != nil,
		"redis", a.redis != nil,
		"kafka", a.producer != nil,
	)
	return nil
}

func (a *App) wire() error {
	reg := a.Metrics.Registry

	var (
		lockouts    ports.AuthLockoutStore
		factors     mfaService.FactorStore
		challenges  mfaService.ChallengeStore
		revocations sessionService.RevocationList
		auditStore  audit.Store
	)
	if a.db != nil {
		pgCreds := credential.NewPostgres(a.db)
		pgAudit := auditPostgres.New(a.db)
		pgRevocations := revocation.NewPostgres(a.db)
		a.Credentials = pgCreds
		a.Ledger = ledgerPostgres.New(a.db)
		a.outbox = pgAudit
		auditStore = pgAudit
		lockouts = lockoutStore.NewPostgres(a.db)
		factors = factor.NewPostgres(a.db)
		revocations, a.revocations = pgRevocations, pgRevocations
	} else {
		memAudit := auditMemory.NewInMemoryStore()
		memRevocations := revocation.NewInMemory()
		a.Credentials = credential.NewInMemory()
		a.Ledger = ledgerMemory.New()
		a.outbox = memAudit
		auditStore = memAudit
		lockouts = lockoutStore.New()
		factors = factor.NewInMemory()
		revocations, a.revocations = memRevocations, memRevocations
	}

	if a.redis != nil {
		redisRevocations := revocation.NewRedis(a.redis.Client)
		redisChallenges := challenge.NewRedis(a.redis.Client)
		revocations, a.revocations = redisRevocations, redisRevocations
		challenges, a.challenges = redisChallenges, redisChallenges
	} else {
		memChallenges := challenge.NewInMemory()
		challenges, a.challenges = memChallenges, memChallenges
	}

	lockout, err := authlockout.New(lockouts,
		authlockout.WithLogger(a.logger),
		authlockout.WithMetrics(rlMetrics.New(reg)),
		authlockout.WithConfig(rlModels.AuthLockoutConfig{
			AttemptsPerWindow: a.cfg.Lockout.MaxAttempts,
			WindowDuration:    a.cfg.Lockout.Window,
			LockDuration:      a.cfg.Lockout.LockDuration,
		}),
	)
	if err != nil {
		return fmt.Errorf("auth lockout: %w", err)
	}
	a.lockout = lockout

	keyring, err := a.keyring()
	if err != nil {
		return err
	}
	sessions, err := sessionService.New(a.Credentials, revocations, token.NewService(keyring, a.cfg.Auth.Issuer),
		sessionService.WithLogger(a.logger),
		sessionService.WithMetrics(sessionMetrics.New(reg)),
		sessionService.WithFactorChecker(factorChecker{factors}),
		sessionService.WithLockout(lockout),
		sessionService.WithSessionTTL(a.cfg.Auth.SessionTTL),
	)
	if err != nil {
		return fmt.Errorf("session service: %w", err)
	}
	a.Sessions = sessions

	mfa, err := mfaService.New(factors, challenges, sessions,
		mfaService.WithLogger(a.logger),
		mfaService.WithMetrics(mfaMetrics.New(reg)),
		mfaService.WithLockout(lockout),
		mfaService.WithIssuer(a.cfg.MFA.Issuer),
		mfaService.WithChallengeTTL(a.cfg.MFA.ChallengeTTL),
	)
	if err != nil {
		return fmt.Errorf("mfa service: %w", err)
	}
	a.MFA = mfa

	am := auditMetrics.New(reg)
	recorder, err := audit.NewRecorder(auditStore, audit.WithLogger(a.logger), audit.WithMetrics(am))
	if err != nil {
		return fmt.Errorf("audit recorder: %w", err)
	}

	ledger, err := ledgerService.New(a.Ledger, recorder,
		ledgerService.WithLogger(a.logger),
		ledgerService.WithMetrics(policyMetrics.New(reg)),
	)
	if err != nil {
		return fmt.Errorf("ledger service: %w", err)
	}

	if a.producer != nil {
		outbox, ok := auditStore.(relay.Outbox)
		if !ok {
			return errors.New("audit store does not expose an outbox")
		}
		r, err := relay.New(outbox, a.producer, a.cfg.Kafka.AuditTopic,
			relay.WithLogger(a.logger),
			relay.WithMetrics(am),
		)
		if err != nil {
			return fmt.Errorf("audit relay: %w", err)
		}
		a.relay = r
	}

	limiter, err := a.requestLimiter()
	if err != nil {
		return err
	}

	handler := httptransport.New(sessions, mfa, ledger, a.logger)
	a.registerHealthChecks(handler)
	router := httptransport.NewRouter(handler, httptransport.RouterConfig{
		Verifier:        sessions,
		Metrics:         a.Metrics,
		Logger:          a.logger,
		Devices:         device.NewService(true),
		RateLimit:       limiter,
		UpstreamTimeout: a.cfg.UpstreamTimeout,
	})
	a.Server = httpserver.New(a.cfg.Server.Addr, router, httpserver.WithLogger(a.logger))
	return nil
}

// requestLimiter builds the per-IP request limit middleware, or nil when rate
// limiting is disabled. Buckets live in Redis when configured so replicas
// share one budget.
func (a *App) requestLimiter() (*rlMiddleware.Middleware, error) {
	rl := a.cfg.RateLimit
	if !rl.Enabled {
		return nil, nil
	}

	var store ports.BucketStore
	if a.redis != nil {
		store = bucket.NewRedis(a.redis.Client)
	} else {
		memBuckets := bucket.NewInMemoryBucketStore()
		store, a.buckets = memBuckets, memBuckets
	}

	rm := rlMetrics.NewRequestMetrics(a.Metrics.Registry)
	svc, err := requestlimit.New(store,
		requestlimit.WithLogger(a.logger),
		requestlimit.WithMetrics(rm),
		requestlimit.WithLimits(rlModels.RequestLimits{
			rlModels.ClassAuth:  {Requests: rl.AuthPerMinute, Window: time.Minute},
			rlModels.ClassRead:  {Requests: rl.ReadPerMinute, Window: time.Minute},
			rlModels.ClassWrite: {Requests: rl.WritePerMinute, Window: time.Minute},
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("request limiter: %w", err)
	}
	return rlMiddleware.New(svc, a.logger, rlMiddleware.WithMetrics(rm)), nil
}

func (a *App) keyring() (*token.Keyring, error) {
	current := token.Key{Version: a.cfg.Auth.KeyVersion, Secret: []byte(a.cfg.Auth.JWTSecret)}
	var previous []token.Key
	if a.cfg.Auth.PreviousSecret != "" {
		previous = append(previous, token.Key{
			Version: a.cfg.Auth.KeyVersion - 1,
			Secret:  []byte(a.cfg.Auth.PreviousSecret),
		})
	}
	keyring, err := token.NewKeyring(current, previous...)
	if err != nil {
		return nil, fmt.Errorf("session keyring: %w", err)
	}
	return keyring, nil
}

func (a *App) registerHealthChecks(h *httptransport.Handler) {
	if a.db != nil {
		h.AddHealthCheck("postgres", a.db.PingContext)
	}
	if a.redis != nil {
		h.AddHealthCheck("redis", a.redis.Health)
	}
	if a.producer != nil {
		producer := a.producer
		h.AddHealthCheck("kafka", func(ctx context.Context) error {
			return kafka.Ping(ctx, producer)
		})
	}
}

// Run serves HTTP and runs the background workers until ctx is cancelled,
// then shuts the server down within the configured timeout.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "starting digitalbank", "addr", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		a.logger.InfoContext(shutdownCtx, "shutting down http server")
		return a.Server.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return a.lockout.RunSweeper(ctx, a.cfg.Lockout.Window) })
	g.Go(func() error { return a.purgeLoop(ctx, "session_revocations", a.revocations) })
	g.Go(func() error { return a.purgeLoop(ctx, "mfa_challenges", a.challenges) })
	g.Go(func() error { return a.outboxLoop(ctx) })
	if a.buckets != nil {
		g.Go(func() error { return a.bucketLoop(ctx) })
	}
	if a.relay != nil {
		g.Go(func() error { return a.relay.Run(ctx) })
	}
	return g.Wait()
}

func (a *App) purgeLoop(ctx context.Context, name string, p purger) error {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			removed, err := p.PurgeExpired(ctx, now)
			if err != nil {
				a.logger.ErrorContext(ctx, "purge failed", "store", name, "error", err)
				continue
			}
			if removed > 0 {
				a.logger.DebugContext(ctx, "purged expired rows", "store", name, "removed", removed)
			}
		}
	}
}

func (a *App) outboxLoop(ctx context.Context) error {
	ticker := time.NewTicker(outboxPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			removed, err := a.outbox.PurgePublishedBefore(ctx, now.Add(-outboxRetention))
			if err != nil {
				a.logger.ErrorContext(ctx, "audit outbox purge failed", "error", err)
				continue
			}
			if removed > 0 {
				a.logger.InfoContext(ctx, "purged published audit outbox rows", "removed", removed)
			}
		}
	}
}

// bucketLoop drops in-memory request windows idle for longer than a minute.
func (a *App) bucketLoop(ctx context.Context) error {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if _, err := a.buckets.PurgeIdle(ctx, now.Add(-time.Minute)); err != nil {
				a.logger.ErrorContext(ctx, "request bucket purge failed", "error", err)
			}
		}
	}
}

// Close releases the backend connections.
func (a *App) Close() {
	if a.producer != nil {
		a.producer.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("close redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("close postgres", "error", err)
		}
	}
}
