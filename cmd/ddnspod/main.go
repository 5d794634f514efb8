package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/miekg/dns"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/Travis-Britz/dnspod-ddns"
	"github.com/Travis-Britz/dnspod-ddns/internal/config"
)

var flags = struct {
	ConfigFile  string
	Verbosity   int
	Once        bool
	MetricsAddr string
	IP          string
}{}

// defaultTextServices answer with the client address as plain text.
var defaultTextServices = []string{
	"https://checkip.amazonaws.com/",
	"https://icanhazip.com/", // operated by Cloudflare since ~2021
	"https://ipinfo.io/ip",
}

func main() {
	flag.StringVar(&flags.ConfigFile, "c", "", "Path to a .toml or .yaml config file; DDNS_* environment variables override it")
	flag.IntVar(&flags.Verbosity, "v", 0, "Log verbosity; 1 logs every cycle, 2 logs every API call")
	flag.BoolVar(&flags.Once, "once", false, "Run a single reconciliation cycle and exit")
	flag.StringVar(&flags.MetricsAddr, "metrics", "", "Address to serve Prometheus metrics on, e.g. :9108")
	flag.StringVar(&flags.IP, "ip", "", "IP address to set instead of discovering one")
	flag.Parse()

	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	stdr.SetVerbosity(flags.Verbosity)
	logger := stdr.New(log.New(os.Stderr, "", log.LstdFlags))

	cfg, err := config.Load(flags.ConfigFile)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if flags.IP != "" {
		cfg.Discovery = config.DiscoveryStatic
		cfg.StaticAddress = flags.IP
	}
	if cfg.SecretKey == "" && term.IsTerminal(int(syscall.Stdin)) {
		if cfg.SecretKey, err = readSecret(); err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger.V(1).Info("config is valid", "provider", cfg.Provider, "domain", cfg.Domain, "subdomain", cfg.Subdomain, "discovery", cfg.Discovery)

	options, err := buildOptions(cfg, logger)
	if err != nil {
		return err
	}
	client, err := ddns.New(cfg.Domain, cfg.Subdomain, options...)
	if err != nil {
		return fmt.Errorf("error creating ddns client: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flags.Once {
		return client.RunDDNS(ctx)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := client.Run(ctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	if flags.MetricsAddr != "" {
		srv := &http.Server{Addr: flags.MetricsAddr, Handler: metricsHandler(), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			logger.Info("serving metrics", "addr", flags.MetricsAddr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
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
	return g.Wait()
}

func metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// buildOptions translates the config into ddns options.
func buildOptions(cfg *config.Config, logger logr.Logger) ([]ddns.Option, error) {
	options := []ddns.Option{
		ddns.WithLogger(logger),
		ddns.WithRecordType(cfg.RecordType),
		ddns.WithInterval(cfg.Interval.Duration),
		ddns.WithRetryPolicy(ddns.RetryPolicy{Attempts: cfg.RetryAttempts, Backoff: cfg.RetryBackoff.Duration}),
		ddns.WithTimeout(cfg.Timeout.Duration),
	}

	switch cfg.Provider {
	case config.ProviderDNSPod:
		options = append(options, ddns.UsingDNSPod(cfg.SecretID, cfg.SecretKey))
	case config.ProviderCloudflare:
		options = append(options, ddns.UsingCloudflare(cfg.SecretKey))
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}

	switch cfg.Discovery {
	case config.DiscoveryJSON:
		urls := cfg.DiscoveryURLs
		if len(urls) == 0 {
			urls = []string{ddns.DefaultDiscoveryURL}
		}
		options = append(options, ddns.UsingJSONResolver(cfg.DiscoveryField, urls...))
	case config.DiscoveryText:
		urls := cfg.DiscoveryURLs
		if len(urls) == 0 {
			urls = defaultTextServices
		}
		options = append(options, ddns.UsingWebResolver(urls...))
	case config.DiscoveryDNS:
		server := cfg.DNSServer
		if server == "" {
			server = ddns.OpenDNSServer
		}
		qtype := dns.TypeA
		if cfg.RecordType == "AAAA" {
			qtype = dns.TypeAAAA
		}
		options = append(options, ddns.UsingResolver(ddns.DNSResolver(server, ddns.OpenDNSName, qtype)))
	case config.DiscoveryInterface:
		var ifaces []string
		if cfg.Interface != "" {
			ifaces = strings.Split(cfg.Interface, ",")
		}
		options = append(options, ddns.UsingResolver(ddns.InterfaceResolver(cfg.RecordType, ifaces...)))
	case config.DiscoveryStatic:
		r, err := ddns.FromString(cfg.StaticAddress)
		if err != nil {
			return nil, fmt.Errorf("invalid static_address: %w", err)
		}
		options = append(options, ddns.UsingResolver(r))
	default:
		return nil, fmt.Errorf("unknown discovery %q", cfg.Discovery)
	}
	return options, nil
}

func readSecret() (string, error) {
	fmt.Fprintf(os.Stderr, "Enter secret key: ")
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("error reading from stdin: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}
