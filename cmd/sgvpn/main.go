// Command sgvpn provisions a tunnel interface from a tunnel configuration and
// hands it to the tunnel engine.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/pborman/getopt/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/speedguard/sgvpn/internal/metrics"
	"github.com/speedguard/sgvpn/pkg/config"
	"github.com/speedguard/sgvpn/pkg/tunnel"
)

var (
	startTime = time.Now()
)

func printUsage() {
	getopt.Usage()
	os.Exit(0)
}

func fatal(msg string, err error) {
	fmt.Fprintf(os.Stderr, "fatal: %s: %s\n", msg, err)
	os.Exit(1)
}

func main() {
	optConfig := getopt.StringLong("config", 'c', "", "Tunnel configuration file (- for stdin)")
	optSettings := getopt.StringLong("settings", 's', "", "Daemon settings file (YAML)")
	optVerbosity := getopt.Uint16Long("verbosity", 'v', uint16(4), "Verbosity level (1 to 5, 1 is lowest)")
	optSniff := getopt.BoolLong("sniff", 0, "Log packets instead of running the engine")
	helpFlag := getopt.Bool('h', "Display help")

	getopt.Parse()

	if *helpFlag || *optConfig == "" {
		printUsage()
	}

	settings := config.DefaultSettings()
	if *optSettings != "" {
		var err error
		settings, err = config.ReadSettingsFile(*optSettings)
		if err != nil {
			fatal("cannot read settings", err)
		}
	}

	verbosityLevel, _ := log.ParseLevel(settings.LogLevel)
	if getopt.IsSet("verbosity") {
		verbosityLevel = levelFromVerbosity(*optVerbosity)
	}
	logger := &log.Logger{Level: verbosityLevel, Handler: &logHandler{Writer: os.Stderr}}
	logger.Debugf("config file: %s", *optConfig)

	rawConfig, err := readTunnelConfig(*optConfig)
	if err != nil {
		fatal("cannot read tunnel config", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	cfg := config.NewConfig(
		config.WithLogger(logger),
		config.WithSettings(settings),
		config.WithRegisterer(reg),
	)

	var opts []tunnel.Option
	if *optSniff {
		opts = append(opts, tunnel.WithPacketLog())
	}
	svc, err := tunnel.NewService(cfg, opts...)
	if err != nil {
		fatal("cannot create the tunnel service", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	if settings.MetricsAddress != "" {
		srv := newMetricsServer(settings.MetricsAddress, reg)
		g.Go(func() error {
			logger.Infof("serving metrics on %s", settings.MetricsAddress)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	disposition := svc.Start(rawConfig)
	logger.Debugf("start request: %s", disposition)

	g.Go(func() error {
		select {
		case <-ctx.Done():
			logger.Info("interrupted")
		case <-svc.Done():
		}
		svc.Stop()
		stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("sgvpn")
		os.Exit(1)
	}
	if !svc.Provisioned() {
		os.Exit(1)
	}
}

func levelFromVerbosity(v uint16) log.Level {
	switch v {
	case uint16(1):
		return log.FatalLevel
	case uint16(2):
		return log.ErrorLevel
	case uint16(3):
		return log.WarnLevel
	case uint16(4):
		return log.InfoLevel
	default:
		return log.DebugLevel
	}
}

func readTunnelConfig(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func newMetricsServer(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
