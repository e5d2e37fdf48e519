package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/gops/agent"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/CVDpl/go-taillog/pkg/taillog"
	"github.com/CVDpl/go-taillog/pkg/taillog/aggregate"
	"github.com/CVDpl/go-taillog/pkg/taillog/monitoring"
)

func main() {
	// Optional gops diagnostics agent: enable with TAILLOG_GOPS=1.
	if os.Getenv("TAILLOG_GOPS") != "" {
		if err := agent.Listen(agent.Options{}); err != nil {
			log.Printf("failed to start gops agent: %v", err)
		} else {
			defer agent.Close()
		}
	}

	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)

	registry := prometheus.NewRegistry()
	metrics, err := taillog.NewMetrics(registry)
	if err != nil {
		log.Fatalf("Failed to create metrics: %v", err)
	}

	// Optional pprof + /metrics: enable by setting TAILLOG_DEBUG_ADDR (e.g., ":6060").
	if addr := os.Getenv("TAILLOG_DEBUG_ADDR"); addr != "" {
		srv, err := monitoring.StartDebugServer(addr, registry)
		if err == nil {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				_ = monitoring.StopDebugServer(ctx, srv)
				cancel()
			}()
			fmt.Printf("debug server listening on %s\n", addr)
		} else {
			fmt.Printf("failed to start debug server on %s: %v\n", addr, err)
		}
	}

	fmt.Printf("Taillog Example\n")
	fmt.Printf("===============\n\n")

	opts := taillog.DefaultOptions()
	opts.MaxKeys = 1 << 20
	opts.LogSize = 64 << 20
	opts.Logger = taillog.NewLogrusLogger(logger)
	opts.Metrics = metrics

	store, err := taillog.New(opts)
	if err != nil {
		log.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	fmt.Println("1. Appending sample records...")
	sampleData := []string{
		"user:john:admin",
		"user:jane:moderator",
		"user:bob:user",
		"event:login:john",
		"event:logout:jane",
	}
	for _, s := range sampleData {
		key, err := store.Append([]byte(s))
		if err != nil {
			log.Fatalf("Failed to append %q: %v", s, err)
		}
		fmt.Printf("   key %d <- %q\n", key, s)
	}

	fmt.Println("\n2. Substring search...")
	for _, q := range []string{"user:", "john", "event:log"} {
		keys := store.Search([]byte(q))
		fmt.Printf("   %q -> %v\n", q, keys)
	}

	fmt.Println("\n3. Delete and update...")
	if store.Delete(2) {
		fmt.Println("   key 2 deleted")
	}
	newKey, err := store.Update(0, []byte("user:john:superadmin"))
	if err != nil {
		log.Fatalf("Failed to update: %v", err)
	}
	fmt.Printf("   key 0 updated -> key %d\n", newKey)
	fmt.Printf("   search %q -> %v\n", "admin", store.Search([]byte("admin")))

	fmt.Println("\n4. Versioned aggregate...")
	agg := aggregate.New(aggregate.Sum[int64](), 4)
	for slot := 0; slot < 4; slot++ {
		for v := uint64(1); v <= 10; v++ {
			agg.SeqUpdate(slot, 1, v)
		}
	}
	fmt.Printf("   sum at version 10: %d\n", agg.Get(10))
	fmt.Printf("   sum at version 5:  %d\n", agg.Get(5))

	fmt.Println("\n5. Store state...")
	fmt.Printf("   numKeys=%d size=%d gap=%d\n", store.NumKeys(), store.Size(), store.Gap())
	fmt.Printf("   fingerprint=%s\n", store.Fingerprint())
}
