// Command fscpd is a minimal demonstrator binary wiring the FSCP engine
// together: it is not a full CLI or daemon, just enough flag parsing to
// load an identity, a trust anchor set, and start the engine in either
// switch or router dispatch mode until signalled to stop.
package main

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/freelan-go/fscp/internal/clock"
	"github.com/freelan-go/fscp/internal/config"
	"github.com/freelan-go/fscp/internal/dispatch"
	"github.com/freelan-go/fscp/internal/engine"
	"github.com/freelan-go/fscp/internal/identity"
	"github.com/freelan-go/fscp/internal/metrics"
	"github.com/freelan-go/fscp/internal/pidfile"
	"github.com/freelan-go/fscp/internal/tap"
	"github.com/freelan-go/fscp/internal/wire"
)

func main() {
	signingCertPath := flag.String("cert", "", "path to PEM signing certificate (required)")
	signingKeyPath := flag.String("key", "", "path to PEM signing private key (required)")
	trustAnchorsPath := flag.String("trust", "", "path to a PEM file containing one or more trust anchor certificates (required)")
	listen := flag.String("listen", "0.0.0.0:12000", "UDP address to listen on")
	mode := flag.String("mode", "switch", "dispatch mode: switch or router")
	mac := flag.String("mac", "02:00:00:00:00:01", "local Ethernet address (switch mode)")
	switchCapacity := flag.Int("switch-capacity", 4096, "maximum learned MAC table entries (switch mode)")
	metricsAddr := flag.String("metrics", "", "address to serve Prometheus metrics on (empty disables)")
	pidPath := flag.String("pidfile", "", "path to write a PID file (empty disables)")
	flag.Parse()

	if *signingCertPath == "" || *signingKeyPath == "" || *trustAnchorsPath == "" {
		fmt.Fprintln(os.Stderr, "fscpd: -cert, -key, and -trust are required")
		os.Exit(1)
	}

	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fscpd: build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log, *signingCertPath, *signingKeyPath, *trustAnchorsPath, *listen, *mode, *mac, *switchCapacity, *metricsAddr, *pidPath); err != nil {
		log.Fatal("fscpd exited", zap.Error(err))
	}
}

func run(log *zap.Logger, signingCertPath, signingKeyPath, trustAnchorsPath, listen, mode, macStr string, switchCapacity int, metricsAddr, pidPath string) error {
	id, err := identity.LoadIdentity(signingCertPath, signingKeyPath, "", "")
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}

	anchors, err := loadCertPool(trustAnchorsPath)
	if err != nil {
		return fmt.Errorf("load trust anchors: %w", err)
	}
	trust := identity.NewTrustStore(anchors, nil)

	udpAddr, err := net.ResolveUDPAddr("udp", listen)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}
	cfg := config.Default()
	cfg.ListenOn = wire.NewEndpointFromUDPAddr(udpAddr)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	hw, err := net.ParseMAC(macStr)
	if err != nil {
		return fmt.Errorf("parse mac: %w", err)
	}
	device := tap.NewPipe(hw)

	e, err := engine.New(cfg, id, trust, device, m, log, clock.System{})
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	switch mode {
	case "switch":
		var localMAC dispatch.MAC
		copy(localMAC[:], hw)
		sw, err := dispatch.NewSwitch(switchCapacity, localMAC, cfg.ClientRoutingEnabled)
		if err != nil {
			return fmt.Errorf("create switch: %w", err)
		}
		e.UseSwitch(sw, localMAC)
	case "router":
		e.UseRouter(dispatch.NewRouter(cfg.ClientRoutingEnabled))
	default:
		return fmt.Errorf("unknown dispatch mode %q (want switch or router)", mode)
	}

	if pidPath != "" {
		pf, err := pidfile.Create(pidPath)
		if err != nil {
			return fmt.Errorf("create pid file: %w", err)
		}
		defer pf.Remove()
	}

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warn("metrics server exited", zap.Error(err))
			}
		}()
		defer srv.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("signal received, shutting down")
		cancel()
	}()

	log.Info("fscpd started", zap.Stringer("listen", e.LocalAddr()), zap.String("mode", mode))
	e.Run(ctx)
	return e.Close()
}

// loadCertPool parses every PEM-encoded CERTIFICATE block in path.
func loadCertPool(path string) ([]*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var certs []*x509.Certificate
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse certificate in %s: %w", path, err)
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("%s: no certificates found", path)
	}
	return certs, nil
}
