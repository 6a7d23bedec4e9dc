package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/casbin/casbin/v2/persist"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/brooklin-io/taskassign/internal/assignment/adapters/archive"
	"github.com/brooklin-io/taskassign/internal/assignment/adapters/audit"
	assigncache "github.com/brooklin-io/taskassign/internal/assignment/adapters/cache"
	assignevents "github.com/brooklin-io/taskassign/internal/assignment/adapters/events"
	"github.com/brooklin-io/taskassign/internal/assignment/adapters/etcdstore"
	assignmetrics "github.com/brooklin-io/taskassign/internal/assignment/adapters/metrics"
	"github.com/brooklin-io/taskassign/internal/assignment/adapters/partitionsource"
	"github.com/brooklin-io/taskassign/internal/assignment/adapters/searchindex"
	"github.com/brooklin-io/taskassign/internal/assignment/adapters/streamstore"
	"github.com/brooklin-io/taskassign/internal/assignment/app/orchestrator"
	"github.com/brooklin-io/taskassign/internal/assignment/ports"
	"github.com/brooklin-io/taskassign/internal/server"
	"github.com/brooklin-io/taskassign/internal/server/auth"
	"github.com/brooklin-io/taskassign/pkg/cache"
	"github.com/brooklin-io/taskassign/pkg/config"
	"github.com/brooklin-io/taskassign/pkg/database"
	"github.com/brooklin-io/taskassign/pkg/events"
	"github.com/brooklin-io/taskassign/pkg/logger"
	"github.com/brooklin-io/taskassign/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("coordinator")
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.Logger.ToLoggerConfig())

	etcdClient, err := clientv3.New(clientv3.Config{
		Endpoints:   []string{cfg.Cluster.CoordinationEndpoint},
		DialTimeout: cfg.Cluster.ConnectionTimeout,
	})
	if err != nil {
		log.Fatal("failed to connect to coordination store", "error", err)
	}
	defer etcdClient.Close()

	store := etcdstore.New(etcdClient, cfg.Cluster.SessionTimeout, log)
	streams := streamstore.New(etcdClient, log)

	var snapshots ports.PartitionMetadataProvider = partitionsource.NewKafkaProvider(log)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Warn("redis unavailable, partition snapshots will not be cached", "error", err)
		redisClient.Close()
	} else {
		defer redisClient.Close()
		snapshots = assigncache.NewSnapshotProvider(snapshots, cache.NewRedisCache(redisClient, nil), 30*time.Second, log)
	}

	orch := orchestrator.New(orchestrator.Config{
		MaxTasks:             cfg.Cluster.MaxTasks,
		ImbalanceThreshold:   cfg.Cluster.ImbalanceThreshold,
		MaxPartitionsPerTask: cfg.Cluster.MaxPartitionsPerTask,
		SoftDeadline:         cfg.Cluster.RebalanceSoftDeadline,
	}, store, store, streams, snapshots, log)

	observers := orchestrator.MultiObserver{assignmetrics.NewRecorder(prometheus.DefaultRegisterer)}

	var rbacAdapter persist.Adapter
	var dbMonitor *database.DBMonitor
	if db, err := database.New(cfg.Database.ToDatabaseConfig()); err != nil {
		log.Warn("audit database unavailable, audit trail and RBAC persistence disabled", "error", err)
	} else {
		defer db.Close()
		repo := audit.NewRepository(db, log)
		if err := repo.Migrate(); err != nil {
			log.Warn("audit schema migration failed, audit trail disabled", "error", err)
		} else {
			observers = append(observers, audit.NewObserver(repo, log))
		}
		if adapter, err := audit.NewRBACAdapter(db); err != nil {
			log.Warn("casbin gorm adapter unavailable, RBAC policy will not persist", "error", err)
		} else {
			rbacAdapter = adapter
		}
		if monitor, err := database.NewDBMonitor(db.DB, log, prometheus.DefaultRegisterer); err != nil {
			log.Warn("database monitor unavailable", "error", err)
		} else {
			if err := monitor.Start(context.Background()); err != nil {
				log.Warn("database monitor failed to start", "error", err)
			} else {
				dbMonitor = monitor
				defer monitor.Stop()
			}
		}
	}

	if cfg.Archive.Bucket != "" {
		sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.Archive.Region)})
		if err != nil {
			log.Warn("s3 session unavailable, assignment archiving disabled", "error", err)
		} else {
			observers = append(observers, archive.NewArchiver(sess, store, cfg.Archive.Bucket, cfg.Archive.Prefix, log))
		}
	}

	if len(cfg.Search.Addresses) > 0 {
		esClient, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: cfg.Search.Addresses})
		if err != nil {
			log.Warn("elasticsearch client unavailable, cycle indexing disabled", "error", err)
		} else {
			observers = append(observers, searchindex.NewIndexer(esClient, cfg.Search.Index, log))
		}
	}

	if len(cfg.Kafka.Brokers) > 0 {
		bus, err := events.NewKafkaEventBus(cfg.Kafka.ToKafkaConfig())
		if err != nil {
			log.Warn("rebalance event bus unavailable, lifecycle events will not be published", "error", err)
		} else {
			defer bus.Close()
			observers = append(observers, assignevents.NewPublisher(bus, log))
		}
	}

	orch = orch.WithObserver(observers)

	enforcer, err := auth.NewEnforcer(rbacAdapter, log)
	if err != nil {
		log.Fatal("failed to initialize RBAC enforcer", "error", err)
	}

	jwtManager, err := auth.NewManager(cfg.Auth.JWT)
	if err != nil {
		log.Fatal("failed to initialize JWT manager", "error", err)
	}

	tel, err := telemetry.New(cfg.Telemetry.ToTelemetryConfig())
	if err != nil {
		log.Warn("tracing unavailable, continuing without it", "error", err)
		tel = telemetry.NewNop()
	}
	defer tel.Close()

	srv := server.New(cfg, log, orch, streams, store, enforcer, jwtManager, tel, dbMonitor)

	go func() {
		runDebounceLoop(context.Background(), cfg.Cluster.Name, cfg.Cluster.DebounceInterval, store, orch, log)
	}()

	sweep := cron.New(cron.WithSeconds())
	if _, err := sweep.AddFunc(cfg.Cluster.RebalanceSweepCron, func() {
		if err := orch.RebalanceCluster(context.Background(), cfg.Cluster.Name); err != nil {
			log.Error("periodic rebalance sweep failed", "cluster", cfg.Cluster.Name, "error", err)
		}
	}); err != nil {
		log.Warn("periodic rebalance sweep disabled, invalid schedule", "schedule", cfg.Cluster.RebalanceSweepCron, "error", err)
	} else {
		sweep.Start()
		defer sweep.Stop()
	}

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal("coordinator HTTP server exited", "error", err)
		}
	}()

	log.Info("coordinator started", "cluster", cfg.Cluster.Name, "addr", cfg.Server.Host)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down coordinator...")

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("coordinator forced to shutdown", "error", err)
	}

	log.Info("coordinator exited")
}

// runDebounceLoop watches the cluster's change-notification tick and, after
// each tick, waits the debounce interval, folds any tick that arrived
// meanwhile into the same pass, and triggers one full rebalance, until ctx
// is canceled. A watch failure is logged and retried after the debounce
// interval rather than tearing down the process.
func runDebounceLoop(ctx context.Context, cluster string, interval time.Duration, notifier interface {
	Watch(ctx context.Context, cluster string) (<-chan time.Time, error)
}, orch *orchestrator.Orchestrator, log logger.Logger) {
	for {
		ticks, err := notifier.Watch(ctx, cluster)
		if err != nil {
			log.Error("failed to watch cluster change notifications", "error", err)
			select {
			case <-time.After(interval):
				continue
			case <-ctx.Done():
				return
			}
		}

	watchLoop:
		for {
			select {
			case _, ok := <-ticks:
				if !ok {
					break watchLoop
				}
				select {
				case <-time.After(interval):
				case <-ctx.Done():
					return
				}
				select {
				case <-ticks:
				default:
				}
				if err := orch.RebalanceCluster(ctx, cluster); err != nil {
					log.Error("rebalance failed", "cluster", cluster, "error", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}
}
