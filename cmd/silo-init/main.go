package main

import (
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/phuslu/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	silo "github.com/luhtfiimanal/go-cache-silo"
)

func main() {
	var (
		configPath  = flag.String("config", "", "JSON config file; flags below override it")
		path        = flag.String("path", "", "backing file of the silo")
		size        = flag.String("size", "", "silo size, e.g. 1GiB or 50% (empty reuses the file size)")
		placement   = flag.String("placement", "", "placement hint when no address is recorded: none or break")
		keepASLR    = flag.Bool("keep-aslr", false, "do not try to disable address space randomization")
		logLevel    = flag.String("log.level", "info", "log level")
		metricsAddr = flag.String("metrics.addr", "", "serve Prometheus metrics on this address and wait for a signal")
		writeConfig = flag.String("write-config", "", "write the effective config to this file and exit")
	)
	flag.Parse()

	cfg := silo.Config{}
	if *configPath != "" {
		c, err := silo.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(2)
		}
		cfg = c
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "path":
			cfg.Path = *path
		case "size":
			cfg.Size = *size
		case "placement":
			cfg.Placement = *placement
		case "keep-aslr":
			cfg.KeepASLR = *keepASLR
		case "log.level":
			cfg.LogLevel = *logLevel
		}
	})
	if cfg.LogLevel == "" {
		cfg.LogLevel = *logLevel
	}

	if *writeConfig != "" {
		if err := silo.WriteConfig(*writeConfig, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "write config: %v\n", err)
			os.Exit(1)
		}
		return
	}

	opts, err := cfg.Options()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}
	logger := opts.Logger

	reg := prometheus.NewRegistry()
	opts.Metrics = silo.NewMetrics(reg)

	s, err := silo.Open(cfg.Path, cfg.Size, opts)
	if err != nil {
		logger.Error().Err(err).Msg("silo bring-up failed")
		os.Exit(exitCode(err))
	}
	defer s.Close()

	report(logger, s)

	if *metricsAddr == "" {
		return
	}
	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(*metricsAddr, nil); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server failed")
			os.Exit(1)
		}
	}()
	logger.Info().Str("addr", *metricsAddr).Msg("serving metrics")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info().Msg("shutting down")
}

func report(logger log.Logger, s *silo.Silo) {
	for _, w := range s.Warnings {
		logger.Warn().Err(w).Msg("bring-up warning")
	}
	fmt.Printf("silo        %s\n", s.Path)
	fmt.Printf("media size  %s (%d bytes)\n", humanize.IBytes(s.MediaSize), s.MediaSize)
	fmt.Printf("base        %#x\n", s.Base)
	fmt.Printf("silo id     %s\n", s.Ident.SiloID)
	fmt.Printf("reloaded    %t\n", !s.Reinitialized)
	fmt.Printf("nseg        min %d  aim %d  max %d\n", s.MinNseg, s.AimNseg, s.MaxNseg)
	fmt.Printf("segl        min %s  aim %s  max %s\n",
		humanize.IBytes(s.MinSegl), humanize.IBytes(s.AimSegl), humanize.IBytes(s.MaxSegl))
	fmt.Printf("reserve     %s\n", humanize.IBytes(s.FreeReserve))
}

func exitCode(err error) int {
	var ce *silo.ConfigurationError
	if errors.As(err, &ce) {
		return 2
	}
	return 1
}
