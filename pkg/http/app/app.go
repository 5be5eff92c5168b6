package app

import (
	"context"
	"crypto/tls"
	"expvar"
	"flag"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/code-payments/x402-resource-server/pkg/metrics"
	"github.com/code-payments/x402-resource-server/pkg/osutil"
)

// App is an HTTP service whose lifecycle is bound to the process. Run calls
// Init before serving, serves the handlers from GetHandlers, and calls Stop
// once the HTTP server has drained.
type App interface {
	// Init blocks until the app is ready to serve requests
	Init(config Config, metricsProvider *newrelic.Application) error

	// GetHandlers returns handlers keyed by http.ServeMux pattern
	GetHandlers() map[string]http.HandlerFunc

	// ShutdownChan is closed when the app wants the process to exit
	ShutdownChan() <-chan struct{}

	// Stop releases the app's resources. It must be idempotent.
	Stop()
}

var (
	configPath = flag.String("config", "config.yaml", "configuration file path")

	osSigCh = make(chan os.Signal, 1)
)

func init() {
	signal.Notify(osSigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
}

// Run serves app until the process is signalled, the server fails, the
// memory leak cron fires or the app shuts itself down. Any failure before
// serving exits the process.
func Run(app App, options ...Option) error {
	flag.Parse()

	log := logrus.StandardLogger().WithField("type", "http/app")
	fatal := func(err error, msg string) {
		log.WithError(err).Error(msg)
		os.Exit(1)
	}

	config, err := loadConfig()
	if err != nil {
		fatal(err, "failure loading config")
	}

	metricsProvider, err := newMetricsProvider(config)
	if err != nil {
		fatal(err, "failure connecting to new relic")
	}
	configureLogger(config, metricsProvider)

	startDebugServer(log, config)
	ballast := allocateBallast(config)

	restartCh, err := scheduleRestarts(config)
	if err != nil {
		fatal(err, "failure scheduling memory leak restarts")
	}

	lis, err := newListener(config)
	if err != nil {
		fatal(err, "failure creating listener")
	}

	if err := app.Init(config.AppConfig, metricsProvider); err != nil {
		fatal(err, "failure initializing app")
	}

	httpServer := &http.Server{
		Handler:           newHandler(app, metricsProvider, options),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
		ReadTimeout:       config.ReadTimeout,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
	}

	servingDoneCh := make(chan struct{})
	go func() {
		defer close(servingDoneCh)

		err := httpServer.Serve(lis)
		if err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("http server failed")
			return
		}
		log.Info("http server stopped")
	}()

	select {
	case sig := <-osSigCh:
		log.WithField("signal", sig.String()).Info("signal received, shutting down")
	case <-servingDoneCh:
		log.Info("http server exited, shutting down")
	case <-restartCh:
		log.Info("scheduled memory leak restart, shutting down")
	case <-app.ShutdownChan():
		log.Info("app requested shutdown")
	}

	err = shutdown(log, httpServer, app, config.ShutdownGracePeriod)

	// Keep the ballast reachable for the life of the process
	if len(ballast) > 0 {
		ballast[0] = 1
	}
	return err
}

func loadConfig() (BaseConfig, error) {
	// viper only reports a missing file when it searched for one, so an
	// explicit path is checked here instead
	if _, err := os.Stat(*configPath); err == nil {
		viper.SetConfigFile(*configPath)
	} else if !os.IsNotExist(err) {
		return BaseConfig{}, errors.Wrap(err, "error checking config file")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return BaseConfig{}, errors.Wrap(err, "error reading config file")
		}
	}

	config := defaultConfig
	if err := viper.Unmarshal(&config); err != nil {
		return BaseConfig{}, errors.Wrap(err, "error unmarshalling config")
	}

	if len(config.AppName) == 0 {
		return BaseConfig{}, errors.New("app_name is required")
	}
	return config, nil
}

func newMetricsProvider(config BaseConfig) (*newrelic.Application, error) {
	if len(config.NewRelicLicenseKey) == 0 {
		return nil, nil
	}

	return newrelic.NewApplication(
		newrelic.ConfigFromEnvironment(),
		newrelic.ConfigAppName(config.AppName),
		newrelic.ConfigLicense(config.NewRelicLicenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
		newrelic.ConfigAppLogForwardingEnabled(true),
	)
}

func configureLogger(config BaseConfig, metricsProvider *newrelic.Application) {
	var formatter logrus.Formatter = &logrus.JSONFormatter{}
	if metricsProvider != nil {
		formatter = metrics.NewCustomNewRelicLogFormatter(metricsProvider, formatter)
	}
	logrus.SetFormatter(formatter)
	logrus.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(strings.ToLower(config.LogLevel))
	if err != nil {
		logrus.StandardLogger().WithField("log_level", config.LogLevel).Warn("unknown log level, ignoring")
		return
	}
	logrus.SetLevel(level)
}

// startDebugServer serves pprof and expvar on the debug address only. Both
// register on http.DefaultServeMux, which is replaced so they never leak
// onto the public listener.
func startDebugServer(log *logrus.Entry, config BaseConfig) {
	http.DefaultServeMux = http.NewServeMux()

	if !config.EnableExpvar && !config.EnablePprof {
		return
	}

	mux := http.NewServeMux()
	if config.EnableExpvar {
		mux.Handle("/debug/vars", expvar.Handler())
	}
	if config.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	go func() {
		for {
			err := http.ListenAndServe(config.DebugListenAddress, mux)
			log.WithError(err).Warn("debug http server failed, retrying in 5s")
			time.Sleep(5 * time.Second)
		}
	}()
}

func allocateBallast(config BaseConfig) []byte {
	if !config.EnableBallast {
		return nil
	}

	capacity := config.BallastCapacity
	if capacity > 0.5 {
		capacity = 0.5
	}
	return make([]byte, uint64(capacity*float32(osutil.GetTotalMemory())))
}

func scheduleRestarts(config BaseConfig) (<-chan struct{}, error) {
	restartCh := make(chan struct{})
	if !config.EnableMemoryLeakCron {
		return restartCh, nil
	}

	scheduler := cron.New(cron.WithLocation(time.Local))
	_, err := scheduler.AddFunc(config.MemoryLeakCronSchedule, func() {
		close(restartCh)
	})
	if err != nil {
		return nil, errors.Wrap(err, "invalid memory leak cron schedule")
	}
	scheduler.Start()
	return restartCh, nil
}

func newListener(config BaseConfig) (net.Listener, error) {
	var tlsConfig *tls.Config
	if len(config.TLSCertificate) > 0 {
		if len(config.TLSKey) == 0 {
			return nil, errors.New("tls key must be provided with a certificate")
		}

		certPem, err := LoadFile(config.TLSCertificate)
		if err != nil {
			return nil, err
		}
		keyPem, err := LoadFile(config.TLSKey)
		if err != nil {
			return nil, err
		}

		cert, err := tls.X509KeyPair(certPem, keyPem)
		if err != nil {
			return nil, errors.Wrap(err, "invalid tls key pair")
		}
		tlsConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}

	lis, err := net.Listen("tcp", config.ListenAddress)
	if err != nil {
		return nil, errors.Wrapf(err, "error listening on %s", config.ListenAddress)
	}
	if tlsConfig != nil {
		lis = tls.NewListener(lis, tlsConfig)
	}
	return lis, nil
}

func newHandler(app App, metricsProvider *newrelic.Application, options []Option) http.Handler {
	opts := opts{}
	for _, o := range options {
		o(&opts)
	}

	mux := http.NewServeMux()
	for pattern, handler := range app.GetHandlers() {
		mux.HandleFunc(pattern, metrics.WrapHTTPHandler(metricsProvider, pattern, handler))
	}

	// The first registered middleware is the outermost
	var handler http.Handler = mux
	for i := len(opts.middleware) - 1; i >= 0; i-- {
		handler = opts.middleware[i](handler)
	}
	return handler
}

func shutdown(log *logrus.Entry, httpServer *http.Server, app App, gracePeriod time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), gracePeriod)
	defer cancel()

	doneCh := make(chan struct{})
	go func() {
		defer close(doneCh)

		if err := httpServer.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("failure draining http server")
		}
		app.Stop()
	}()

	select {
	case <-doneCh:
		return nil
	case <-ctx.Done():
		return errors.Errorf("failed to stop within %v", gracePeriod)
	}
}
