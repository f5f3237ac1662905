package main

import (
	"bufio"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Micos01/dir-analysis/internal/report"
	"github.com/Micos01/dir-analysis/internal/size"
)

var units = []string{"KB", "KB", "KB", "MB", "MB", "GB"}

type generator struct {
	w         *bufio.Writer
	rng       *rand.Rand
	fanout    int
	files     int
	depth     int
	malformed int
	lines     int64
	dirs      int64
	fileCount int64
}

func main() {
	out := flag.String("out", "report.txt", "Report file to write")
	root := flag.String("root", `C:\Synthetic`, "Root directory path")
	fanout := flag.Int("fanout", 8, "Subdirectories per directory")
	depth := flag.Int("depth", 4, "Directory levels below the root")
	files := flag.Int("files", 20, "Files per directory")
	malformed := flag.Int("malformed-every", 0, "Insert a garbage line every N lines (0 = never)")
	seed := flag.Uint64("seed", 1, "Random seed")
	scan := flag.Bool("scan", false, "Time a full scan of the generated report")
	skipGen := flag.Bool("skip-gen", false, "Only scan an existing report")
	flag.Parse()

	if !*skipGen {
		start := time.Now()
		g, err := generate(*out, *root, *fanout, *depth, *files, *malformed, *seed)
		if err != nil {
			fmt.Fprintf(os.Stderr, "generate error: %v\n", err)
			os.Exit(1)
		}
		elapsed := time.Since(start)
		fi, _ := os.Stat(*out)
		var bytes uint64
		if fi != nil {
			bytes = uint64(fi.Size())
		}
		fmt.Printf("out=%s dirs=%s files=%s lines=%s size=%s\n", *out,
			humanize.Comma(g.dirs), humanize.Comma(g.fileCount), humanize.Comma(g.lines), humanize.IBytes(bytes))
		fmt.Printf("generate: %v\n", elapsed)
	}

	if *scan || *skipGen {
		if err := timeScan(*out); err != nil {
			fmt.Fprintf(os.Stderr, "scan error: %v\n", err)
			os.Exit(1)
		}
	}
}

func generate(path, root string, fanout, depth, files, malformed int, seed uint64) (*generator, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	g := &generator{
		w:         bufio.NewWriterSize(f, 1<<20),
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		fanout:    fanout,
		files:     files,
		depth:     depth,
		malformed: malformed,
	}
	g.dir(root, 0)
	// bufio.Writer errors are sticky and surface here.
	if err := g.w.Flush(); err != nil {
		f.Close()
		return nil, err
	}
	return g, f.Close()
}

// dir writes one directory line, its files and then its subdirectories.
// Reported sizes are random and do not add up.
func (g *generator) dir(path string, level int) {
	g.line(path + " [" + g.size() + "]")
	g.dirs++
	for i := 0; i < g.files; i++ {
		g.line("  [" + g.size() + "] file" + strconv.Itoa(i) + ".dat")
		g.fileCount++
	}
	if level >= g.depth {
		return
	}
	for i := 0; i < g.fanout; i++ {
		g.dir(path+`\dir`+strconv.Itoa(i), level+1)
	}
}

func (g *generator) line(s string) {
	g.lines++
	if g.malformed > 0 && g.lines%int64(g.malformed) == 0 {
		g.w.WriteString("#### not a report line ####\n")
		g.lines++
	}
	g.w.WriteString(s)
	g.w.WriteByte('\n')
}

func (g *generator) size() string {
	unit := units[g.rng.IntN(len(units))]
	return size.Format(int64(g.rng.IntN(1000)+1), unit)
}

func timeScan(path string) error {
	src, err := report.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	start := time.Now()
	sc := report.NewScanner(src, '\\')
	for sc.Next() {
	}
	if err := sc.Err(); err != nil {
		return err
	}
	elapsed := time.Since(start)
	st := sc.Stats()

	fmt.Printf("scan: %v lines=%s dirs=%s files=%s malformed=%s orphans=%s\n", elapsed,
		humanize.Comma(st.Lines), humanize.Comma(st.Dirs), humanize.Comma(st.Files),
		humanize.Comma(st.Malformed), humanize.Comma(st.Orphans))
	if elapsed.Seconds() > 0 {
		fmt.Printf("throughput: %.0f lines/sec\n", float64(st.Lines)/elapsed.Seconds())
	}
	return nil
}
