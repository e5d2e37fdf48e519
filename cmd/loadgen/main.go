package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CVDpl/go-taillog/internal/common"
	"github.com/CVDpl/go-taillog/pkg/taillog"
)

// loadgen drives the store with concurrent writers and readers and reports
// throughput and the write/read tail gap.
func main() {
	writers := flag.Int("writers", 8, "concurrent writer goroutines")
	readers := flag.Int("readers", 2, "concurrent search goroutines")
	records := flag.Int("records", 100000, "records per writer")
	payload := flag.Int("payload", 32, "payload size in bytes")
	flag.Parse()

	opts := taillog.DefaultOptions()
	opts.MaxKeys = 1 << 24
	opts.LogSize = 1 << 30
	opts.Logger = common.NewNullLogger()

	store, err := taillog.New(opts)
	if err != nil {
		log.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	alphabet := []byte("abcdefghijklmnopqrstuvwxyz0123456789")

	start := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < *writers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			buf := make([]byte, *payload)
			for i := 0; i < *records; i++ {
				for j := range buf {
					buf[j] = alphabet[rng.Intn(len(alphabet))]
				}
				if _, err := store.Append(buf); err != nil {
					log.Fatalf("append failed: %v", err)
				}
			}
		}(int64(w) + 1)
	}

	done := make(chan struct{})
	var searches atomic.Int64
	var rwg sync.WaitGroup
	for r := 0; r < *readers; r++ {
		rwg.Add(1)
		go func(seed int64) {
			defer rwg.Done()
			rng := rand.New(rand.NewSource(seed))
			q := make([]byte, 4)
			for {
				select {
				case <-done:
					return
				default:
				}
				for j := range q {
					q[j] = alphabet[rng.Intn(len(alphabet))]
				}
				store.Search(q)
				searches.Add(1)
			}
		}(int64(r) + 100)
	}

	wg.Wait()
	elapsed := time.Since(start)
	close(done)
	rwg.Wait()

	total := *writers * *records
	fmt.Printf("appended %d records in %v (%.0f appends/s)\n",
		total, elapsed.Round(time.Millisecond), float64(total)/elapsed.Seconds())
	fmt.Printf("numKeys=%d size=%d gap=%d searches=%d\n",
		store.NumKeys(), store.Size(), store.Gap(), searches.Load())

	store.RefreshStats()
	st := store.Stats()
	fmt.Printf("stats: appends=%d bytes=%d searches=%d\n",
		st.Appends, st.BytesAppended, st.Searches)
}
