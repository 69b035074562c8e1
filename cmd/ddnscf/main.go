package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Travis-Britz/ddns/v2"
	"github.com/Travis-Britz/ddns/v2/internal/config"
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

var flags = struct {
	ConfigFile      string
	Domain          string
	Zone            string
	KeyFile         string
	RouterURL       string
	APIURL          string
	Interval        time.Duration
	IP              string
	MetricsTextfile string
	Once            bool
	Setup           bool
	Verbose         bool
}{}

func init() {
	flag.StringVar(&flags.ConfigFile, "c", os.Getenv("DDNS_CONFIG"), "Path to an optional YAML config file")
	flag.StringVar(&flags.Domain, "d", "", "DNS entry to update")
	flag.StringVar(&flags.Zone, "z", "", "ID of the Cloudflare zone which is managing the domain name")
	flag.StringVar(&flags.KeyFile, "k", config.DefaultKeyFile(), "Path to cloudflare API credentials file")
	flag.StringVar(&flags.RouterURL, "router", ddns.DefaultRouterURL, "UPnP control URL of the router's WANIPConnection service")
	flag.StringVar(&flags.APIURL, "api", ddns.DefaultAPIBaseURL, "Base URL of the Cloudflare API")
	flag.DurationVar(&flags.Interval, "i", ddns.DefaultInterval, "Duration to wait between IP checks")
	flag.StringVar(&flags.IP, "ip", "", "IP address to set instead of asking the router")
	flag.StringVar(&flags.MetricsTextfile, "metrics-textfile", "", "Write Prometheus metrics to this file after every cycle")
	flag.BoolVar(&flags.Once, "once", false, "Run a single update cycle and exit")
	flag.BoolVar(&flags.Setup, "setup", false, "Prompt for an API token, verify it, and write the key file")
	flag.BoolVar(&flags.Verbose, "v", false, "Enable verbose logging")
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	zl, err := newZapLogger(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("error creating logger: %w", err)
	}
	defer zl.Sync()
	logger := zapr.NewLogger(zl)

	if flags.Setup || needsSetup(cfg) {
		if err := runSetup(logger, cfg); err != nil {
			return fmt.Errorf("setup: %w", err)
		}
		if flags.Setup {
			return nil
		}
	}

	if err := cfg.ResolveToken(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger.V(1).Info("config is valid", "config", cfg.String())

	client, err := newClient(logger, cfg, cfg.Token)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if flags.Once {
		return client.RunOnce(ctx)
	}
	logger.Info("starting", "domain", cfg.Domain, "interval", cfg.Interval.String())
	if err := client.Run(ctx, cfg.Interval); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run: %w", err)
	}
	logger.Info("stopped")
	return nil
}

// loadConfig merges the config file and environment with any flags given on the command line.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flags.ConfigFile)
	if err != nil {
		return nil, err
	}

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	override := func(name string, dst *string, v string) {
		if set[name] || *dst == "" {
			*dst = v
		}
	}
	override("d", &cfg.Domain, flags.Domain)
	override("z", &cfg.ZoneID, flags.Zone)
	override("k", &cfg.KeyFile, flags.KeyFile)
	override("router", &cfg.RouterURL, flags.RouterURL)
	override("api", &cfg.APIURL, flags.APIURL)
	override("metrics-textfile", &cfg.MetricsTextfile, flags.MetricsTextfile)
	if set["i"] || cfg.Interval == 0 {
		cfg.Interval = flags.Interval
	}
	if set["v"] {
		cfg.Verbose = flags.Verbose
	}
	return cfg, nil
}

func newZapLogger(verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return zc.Build()
}

func newClient(logger logr.Logger, cfg *config.Config, token string) (*ddns.Client, error) {
	options := []ddns.ClientOption{
		ddns.UsingCloudflare(token, cfg.ZoneID),
		ddns.WithAPIBaseURL(cfg.APIURL),
		ddns.UsingRouter(cfg.RouterURL),
		ddns.WithLogger(logger),
	}
	if flags.IP != "" {
		r, err := ddns.FromString(flags.IP)
		if err != nil {
			return nil, err
		}
		options = append(options, ddns.UsingResolver(r))
	}
	if cfg.MetricsTextfile != "" {
		options = append(options, ddns.WithMetrics(ddns.NewMetrics(cfg.MetricsTextfile)))
	}

	client, err := ddns.New(cfg.Domain, options...)
	if err != nil {
		return nil, fmt.Errorf("error creating ddns.Client: %w", err)
	}
	return client, nil
}

// needsSetup reports whether an interactive user should be asked for a token.
func needsSetup(cfg *config.Config) bool {
	if cfg.Token != "" || cfg.KeyFile == "" {
		return false
	}
	if _, err := os.Stat(cfg.KeyFile); !errors.Is(err, fs.ErrNotExist) {
		return false
	}
	return term.IsTerminal(int(syscall.Stdin))
}

func runSetup(logger logr.Logger, cfg *config.Config) error {
	logger.Info("running setup", "keyFile", cfg.KeyFile)
	fmt.Fprintf(os.Stderr, "Enter Cloudflare API Token: \n")
	bytekey, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return fmt.Errorf("error reading from stdin: %w", err)
	}
	key := string(bytekey)
	if key == "" {
		return errors.New("no token entered")
	}

	client, err := newClient(logger, cfg, key)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("verifying token")
	if err := client.Verify(ctx); err != nil {
		return fmt.Errorf("unable to verify api token: %w", err)
	}
	logger.Info("token verified successfully")

	if err := config.WriteKey(cfg.KeyFile, key); err != nil {
		return err
	}
	logger.Info("token written", "keyFile", cfg.KeyFile)
	cfg.Token = key
	return nil
}
