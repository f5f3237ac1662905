package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/Micos01/dir-analysis/internal/db"
	"github.com/Micos01/dir-analysis/internal/entry"
)

func main() {
	outDir := flag.String("out", ".", "Output directory for temp DB")
	rows := flag.Int("rows", 100000, "File rows to insert")
	batch := flag.Int("batch", 5000, "Batch size per transaction")
	dirEvery := flag.Int("dir-every", 50, "Insert a directory row every N file rows")
	indexes := flag.Bool("indexes", true, "Also time the deferred index build")
	flag.Parse()

	if *batch <= 0 || *dirEvery <= 0 {
		fmt.Fprintln(os.Stderr, "batch and dir-every must be positive")
		os.Exit(1)
	}
	if err := os.MkdirAll(*outDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "mkdir error: %v\n", err)
		os.Exit(1)
	}

	dbPath := filepath.Join(*outDir, fmt.Sprintf(".diranasqlitebench-%d.db", time.Now().UnixNano()))
	database, err := db.OpenWriter(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db error: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		database.Close()
		for _, suffix := range []string{"", "-wal", "-shm"} {
			os.Remove(dbPath + suffix)
		}
	}()

	if err := db.InitSchema(database); err != nil {
		fmt.Fprintf(os.Stderr, "schema error: %v\n", err)
		os.Exit(1)
	}
	if err := db.ApplyWritePragmas(database); err != nil {
		fmt.Fprintf(os.Stderr, "pragma error: %v\n", err)
		os.Exit(1)
	}

	batches := make(chan []entry.Record, 8)
	w := db.NewWriter(database, batches, zerolog.Nop())

	go func() {
		defer close(batches)
		parent := ""
		buf := make([]entry.Record, 0, *batch)
		for i := 0; i < *rows; i++ {
			if i%*dirEvery == 0 {
				parent = `C:\bench\d` + strconv.Itoa(i / *dirEvery)
				buf = append(buf, entry.Record{Kind: entry.KindDir, Path: parent, SizeBytes: 1 << 20, SizeStr: "1 MB"})
			}
			buf = append(buf, entry.Record{
				Kind:      entry.KindFile,
				Name:      "file" + strconv.Itoa(i) + ".bin",
				Parent:    parent,
				SizeBytes: int64(i%4096) * 1024,
				SizeStr:   "4 KB",
			})
			if len(buf) >= *batch {
				batches <- buf
				buf = make([]entry.Record, 0, *batch)
			}
		}
		if len(buf) > 0 {
			batches <- buf
		}
	}()

	start := time.Now()
	if err := w.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "insert error: %v\n", err)
		os.Exit(1)
	}
	elapsed := time.Since(start)
	p := w.Progress()

	fmt.Printf("out=%s rows=%d batch=%d dirs=%d dropped=%d\n", *outDir, *rows, *batch, p.Dirs, p.Dropped)
	fmt.Printf("total: %v\n", elapsed)
	if elapsed.Seconds() > 0 {
		fmt.Printf("throughput: %.0f rows/sec\n", float64(p.Dirs+p.Files)/elapsed.Seconds())
	}

	if *indexes {
		start = time.Now()
		if err := db.BuildIndexes(database); err != nil {
			fmt.Fprintf(os.Stderr, "index error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("indexes: %v\n", time.Since(start))
	}
}
