// Command gomysql-bench loads a pool configuration, runs a configurable
// number of borrow/query/return cycles against it, and optionally
// serves a small introspection HTTP server alongside the run.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dbbouncer/gomysql/config"
	"github.com/dbbouncer/gomysql/conn"
	"github.com/dbbouncer/gomysql/internal/observability"
	"github.com/dbbouncer/gomysql/pool"
)

func main() {
	configPath := flag.String("config", "configs/gomysql.yaml", "path to configuration file")
	workers := flag.Int("workers", 8, "number of concurrent borrow/query/return workers")
	iterations := flag.Int("iterations", 1000, "borrow/query/return cycles per worker")
	query := flag.String("query", "SELECT 1", "query run on every cycle")
	introspect := flag.String("introspect", "", "address to serve /debug/pool and /metrics on, empty disables it")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	log.Printf("gomysql-bench starting against %s (%d workers, %d iterations each)", cfg.Conn.Address, *workers, *iterations)

	metrics := observability.New()

	dial := func(ctx context.Context) (*conn.Conn, error) {
		return conn.Dial(ctx, conn.Config{
			Address:         cfg.Conn.Address,
			Username:        cfg.Conn.Username,
			Password:        cfg.Conn.Password,
			Database:        cfg.Conn.Database,
			Collation:       cfg.Conn.Collation,
			SSLMode:         cfg.Conn.SSLMode,
			MultiStatements: cfg.Conn.MultiStatements,
			ConnectAttrs:    cfg.Conn.ConnectAttrs,
			ConnectTimeout:  cfg.Pool.ConnectTimeout,
			Metrics:         metrics,
		})
	}

	p := pool.New(pool.Config{
		InitialSize:    cfg.Pool.InitialSize,
		MaxSize:        cfg.Pool.MaxSize,
		ConnectTimeout: cfg.Pool.ConnectTimeout,
		PingInterval:   cfg.Pool.PingInterval,
		PingTimeout:    cfg.Pool.PingTimeout,
		RetryInterval:  cfg.Pool.RetryInterval,
		ResetOnReturn:  cfg.Pool.ResetOnReturn,
		ThreadSafe:     cfg.Pool.ThreadSafe,
	}, dial, metrics)
	defer p.Close()

	var watcher *config.Watcher
	watcher, err = config.NewWatcher(*configPath, func(newCfg *config.Config) {
		p.UpdateConfig(pool.Config{
			InitialSize:    newCfg.Pool.InitialSize,
			MaxSize:        newCfg.Pool.MaxSize,
			ConnectTimeout: newCfg.Pool.ConnectTimeout,
			PingInterval:   newCfg.Pool.PingInterval,
			PingTimeout:    newCfg.Pool.PingTimeout,
			RetryInterval:  newCfg.Pool.RetryInterval,
			ResetOnReturn:  newCfg.Pool.ResetOnReturn,
			ThreadSafe:     newCfg.Pool.ThreadSafe,
		})
	})
	if err != nil {
		log.Printf("config hot-reload not available: %v", err)
	}

	var introspectSrv *http.Server
	if *introspect != "" {
		introspectSrv = startIntrospectionServer(*introspect, p, metrics)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-sigCh
		log.Printf("received interrupt, stopping workers")
		cancel()
	}()

	start := time.Now()
	var wg sync.WaitGroup
	var succeeded, failed int64
	var mu sync.Mutex

	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < *iterations; i++ {
				select {
				case <-ctx.Done():
					return
				default:
				}
				if err := runCycle(ctx, p, *query); err != nil {
					mu.Lock()
					failed++
					mu.Unlock()
					slog.Warn("cycle failed", "err", err)
					continue
				}
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	elapsed := time.Since(start)
	log.Printf("done: %d succeeded, %d failed in %s (%.0f cycles/sec)",
		succeeded, failed, elapsed, float64(succeeded+failed)/elapsed.Seconds())

	if watcher != nil {
		watcher.Stop()
	}
	if introspectSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		introspectSrv.Shutdown(shutdownCtx)
	}
}

func runCycle(ctx context.Context, p *pool.Pool, query string) error {
	c, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	_, err = c.Query(ctx, query)
	p.Release(c, err)
	return err
}

// startIntrospectionServer serves /debug/pool (pool occupancy as JSON)
// and /metrics (the pool's own Prometheus registry) on addr, routed
// with a mux.Router rather than bare http.ServeMux.
func startIntrospectionServer(addr string, p *pool.Pool, metrics *observability.Collector) *http.Server {
	r := mux.NewRouter()
	r.HandleFunc("/debug/pool", func(w http.ResponseWriter, req *http.Request) {
		s := p.Stats()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"idle":%d,"pending":%d,"total":%d,"waiting":%d,"max_size":%d}`,
			s.Idle, s.Pending, s.Total, s.Waiting, s.MaxSize)
	})
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[introspect] server error: %v", err)
		}
	}()
	log.Printf("introspection server listening on %s", addr)
	return srv
}
