// Command sample draws a uniform sample of experience tuples from one or
// more dataset shards and prints them as JSON lines, for quick inspection
// or piping into an external training job.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/kharnhold/tacticsrl/internal/dataset"
)

func main() {
	var (
		shardGlob string
		count     int
		seed      int64
	)

	flag.StringVar(&shardGlob, "shard-glob", "./shards/shard-*.gob", "glob pattern matching shard files")
	flag.IntVar(&count, "count", 100, "number of experience tuples to sample")
	flag.Int64Var(&seed, "seed", 0, "RNG seed (0 = time-based)")
	flag.Parse()

	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	pool, err := dataset.LoadExperiences(shardGlob)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sample: %v\n", err)
		os.Exit(1)
	}
	if len(pool) == 0 {
		fmt.Fprintf(os.Stderr, "sample: no experiences matched %q\n", shardGlob)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	n := count
	if n > len(pool) {
		n = len(pool)
	}
	for i := 0; i < n; i++ {
		exp := pool[rng.Intn(len(pool))]
		if err := enc.Encode(exp); err != nil {
			fmt.Fprintf(os.Stderr, "sample: encode: %v\n", err)
			os.Exit(1)
		}
	}
}
