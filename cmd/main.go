package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"os"
	"reflect"
	"syscall"
	"time"

	"github.com/aukilabs/garth/assetcache"
	"github.com/aukilabs/garth/bloom"
	"github.com/aukilabs/garth/catalog"
	"github.com/aukilabs/garth/featureflag"
	garthhttp "github.com/aukilabs/garth/http"
	"github.com/aukilabs/garth/messages"
	"github.com/aukilabs/garth/models"
	"github.com/aukilabs/garth/modules"
	"github.com/aukilabs/garth/modules/fehu"
	"github.com/aukilabs/garth/modules/raido"
	"github.com/aukilabs/garth/smoketest"
	"github.com/aukilabs/garth/snapshot"
	garthws "github.com/aukilabs/garth/websocket"
	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

var (
	// The Garth version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "garth_info",
		Help:        "Garth information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr                string        `cli:""        env:"GARTH_ADDR"                   help:"Listening address for client connections."`
	AdminAddr           string        `cli:""        env:"GARTH_ADMIN_ADDR"             help:"Admin listening address."`
	PublicEndpoint      string        `cli:""        env:"GARTH_PUBLIC_ENDPOINT"        help:"The public endpoint where this Garth server is reachable."`
	ModelsDir           string        `cli:""        env:"GARTH_MODELS_DIR"             help:"The directory that contains the 3D model catalog."`
	SnapshotsDir        string        `cli:""        env:"GARTH_SNAPSHOTS_DIR"          help:"The directory where scene snapshots are stored."`
	ServerID            string        `cli:""        env:"GARTH_SERVER_ID"              help:"The server id advertised in global scene ids."`
	LogLevel            string        `cli:""        env:"GARTH_LOG_LEVEL"              help:"Log level (debug|info|warning|error)."`
	LogIndent           bool          `cli:""        env:"GARTH_LOG_INDENT"             help:"Indent logs."`
	CacheCapacity       int           `cli:""        env:"GARTH_CACHE_CAPACITY"         help:"The maximum number of asset templates kept in the cache."`
	ExpectedAssets      int           `cli:",hidden" env:"GARTH_EXPECTED_ASSETS"        help:"The expected number of distinct assets, sizes the existence filters."`
	FilterFPRate        float64       `cli:",hidden" env:"GARTH_FILTER_FP_RATE"         help:"The target false positive rate of the existence filters."`
	CollisionCellSize   float64       `cli:",hidden" env:"GARTH_COLLISION_CELL_SIZE"    help:"The collision grid cell edge length, zero uses the default."`
	SyncClockInterval   time.Duration `cli:",hidden" env:"GARTH_SYNC_CLOCK_INTERVAL"    help:"Client sync clock (heartbeat) message interval."`
	ClientIdleTimeout   time.Duration `cli:",hidden" env:"GARTH_CLIENT_IDLE_TIMEOUT"    help:"Time until an idle client will be disconnected."`
	FrameDuration       time.Duration `cli:",hidden" env:"GARTH_FRAME_DURATION"         help:"The duration of a scene frame."`
	LogSummaryInterval  time.Duration `cli:",hidden" env:"GARTH_LOG_SUMMARY_INTERVAL"   help:"The duration between each log summary by connection."`
	SnapshotQueueSize   int           `cli:",hidden" env:"GARTH_SNAPSHOT_QUEUE_SIZE"    help:"The size of the queue between connections and the snapshot writer."`
	SmokeTestTimeout    time.Duration `cli:",hidden" env:"GARTH_SMOKE_TEST_TIMEOUT"     help:"The time budget of a smoke test run."`
	Events              eventsConfig  `cli:",hidden" env:"-"                            help:"Event pusher configuration."`
	FeatureFlags        []string      `cli:",hidden" env:"GARTH_FEATURE_FLAGS"          help:"Comma separated feature flags."`
	Version             bool          `cli:""        env:"-"                            help:"Show version."`
	Help                bool          `cli:""        env:"-"                            help:"Show help."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"GARTH_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed."`
	FlushInterval time.Duration `cli:",hidden" env:"GARTH_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"GARTH_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"GARTH_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:               ":4000",
		AdminAddr:          ":18190",
		PublicEndpoint:     "http://localhost:4000",
		ModelsDir:          "./models",
		SnapshotsDir:       "./snapshots",
		ServerID:           "garth",
		LogLevel:           logs.InfoLevel.String(),
		CacheCapacity:      64,
		ExpectedAssets:     512,
		FilterFPRate:       0.01,
		SyncClockInterval:  time.Second * 5,
		ClientIdleTimeout:  time.Minute * 5,
		FrameDuration:      time.Millisecond * 15,
		LogSummaryInterval: time.Minute,
		SnapshotQueueSize:  128,
		SmokeTestTimeout:   smoketest.DefaultTimeout,
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts Garth server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     metrics.HTTPTransport(http.DefaultTransport),
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "garth",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	cat, err := catalog.Scan(conf.ModelsDir)
	if err != nil {
		logs.Fatal(errors.New("scanning model catalog failed").Wrap(err))
	}

	loader := assetcache.NewLoader(
		catalog.DiskFetcher{Dir: conf.ModelsDir},
		assetcache.New(conf.CacheCapacity),
		bloom.New(conf.ExpectedAssets, conf.FilterFPRate),
		bloom.New(conf.ExpectedAssets, conf.FilterFPRate),
	)

	loadIDs := &models.SequentialIDGenerator{}
	scenes := &models.SceneStore{ServerID: conf.ServerID}
	flags := featureflag.New(conf.FeatureFlags)

	snapshotStore := &snapshot.Store{Dir: conf.SnapshotsDir}
	snapshotChan := make(chan snapshot.Snapshot, conf.SnapshotQueueSize)
	snapshotHandler := snapshot.Handler{
		Store:        snapshotStore,
		SnapshotChan: snapshotChan,
	}
	snapshotHandler.HandleSnapshots(ctx)

	// Not ready while the snapshot writer is saturated.
	readinessCheck := func() bool {
		return len(snapshotChan) < cap(snapshotChan)
	}

	var service http.ServeMux
	service.Handle("/health", garthhttp.HandleWithCORS(http.HandlerFunc(garthhttp.HandleHealthCheck)))
	service.Handle("/ready", garthhttp.HandleWithCORS(garthhttp.HandleReadyCheck(readinessCheck)))
	service.Handle("/version", garthhttp.HandleWithCORS(garthhttp.HandleVersion(version)))
	service.Handle("GET /catalog", garthhttp.HandleWithCORS(garthhttp.HandleCatalog(cat)))
	service.Handle("GET /assets/{category}/{name}", garthhttp.HandleWithCORS(garthhttp.HandleAsset(loader, loadIDs)))
	service.Handle("GET /stats", garthhttp.HandleWithCORS(garthhttp.HandleStats(loader, scenes)))
	service.Handle("GET /snapshots", garthhttp.HandleWithCORS(garthhttp.HandleSnapshotList(snapshotStore)))
	service.Handle("GET /snapshots/{id}", garthhttp.HandleWithCORS(garthhttp.HandleSnapshot(snapshotStore)))

	service.Handle("/", garthhttp.HandleWithCORS(websocket.Server{
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			var rh garthws.Handler = &garthws.RealtimeHandler{
				ClientSyncClockInterval: conf.SyncClockInterval,
				ClientIdleTimeout:       conf.ClientIdleTimeout,
				FrameDuration:           conf.FrameDuration,
				Scenes:                  scenes,
				Modules: []modules.Module{
					&fehu.Module{
						Loader:       loader,
						IDs:          loadIDs,
						FeatureFlags: flags,
					},
					&raido.Module{
						Loader:      loader,
						IDs:         loadIDs,
						NonBlocking: cat.Settings.NonBlocking,
						CellSize:    float32(conf.CollisionCellSize),
					},
				},
				FeatureFlags: flags,
				Snapshots:    snapshotStore,
				SnapshotChan: snapshotChan,
			}
			h := garthws.HandlerWithLogs(rh, conf.LogSummaryInterval)
			h = garthws.HandlerWithMetrics(h)
			defer h.Close()

			garthws.Handle(ctx, conn, h)
		},
	}))

	service.Handle("/ping", websocket.Server{
		Handler: func(ws *websocket.Conn) {
			defer ws.Close()
			io.Copy(ws, ws)
		},
	})

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", garthhttp.HandleHealthCheck)
	admin.HandleFunc("/ready", garthhttp.HandleReadyCheck(readinessCheck))
	admin.HandleFunc("/smoke-test", smoketest.HandleSmokeTest(ctx, smoketest.Options{
		Endpoint:  conf.PublicEndpoint,
		UserAgent: fmt.Sprintf("Garth %s", version),
		Asset:     smokeTestAsset(cat),
		Timeout:   conf.SmokeTestTimeout,
	}))
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("endpoint", conf.PublicEndpoint).
		WithTag("models", cat.Count()).
		WithTag("categories", len(cat.Categories())).
		Info("starting garth server")

	garthhttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
			garthhttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)
}

// smokeTestAsset picks the first catalog model. With an empty catalog the
// smoke test stops after the scene join.
func smokeTestAsset(cat *catalog.Catalog) messages.AssetRef {
	for _, category := range cat.Categories() {
		if names := cat.Models(category); len(names) > 0 {
			return messages.AssetRef{Category: category, Name: names[0]}
		}
	}
	return messages.AssetRef{}
}
