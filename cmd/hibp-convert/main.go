package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/hibp/internal/convert"
	"github.com/GriffinCanCode/hibp/internal/flatfile"
	"github.com/GriffinCanCode/hibp/internal/logging"
	"github.com/GriffinCanCode/hibp/internal/record"
)

func main() {
	var (
		ntlm    = flag.Bool("ntlm", false, "records are NTLM, not SHA-1")
		out     = flag.String("o", "", "output file (import requires it, export derives one from the database name)")
		export  = flag.Bool("export", false, "binary to text instead of text to binary")
		lenient = flag.Bool("lenient", false, "skip and count bad lines instead of failing on the first")
		gz      = flag.Bool("gzip", false, "gzip the exported text")
		debug   = flag.Bool("debug", false, "development logging")
	)
	flag.Usage = usage
	flag.Parse()

	logCfg := logging.DefaultConfig()
	if *debug {
		logCfg = logging.DevelopmentConfig()
	}
	log, err := logging.New(logCfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer log.Sync()

	if *export {
		if flag.NArg() != 1 {
			usage()
			os.Exit(2)
		}
		dbPath := flag.Arg(0)
		outPath := *out
		if outPath == "" {
			outPath = exportName(dbPath, *gz)
		}
		if *ntlm {
			err = runExport[record.NTLM](record.NTLMCodec{}, dbPath, outPath, *gz, log)
		} else {
			err = runExport[record.SHA1](record.SHA1Codec{}, dbPath, outPath, *gz, log)
		}
	} else {
		if flag.NArg() < 1 || *out == "" {
			usage()
			os.Exit(2)
		}
		inputs, gerr := expandGlobs(flag.Args())
		if gerr != nil {
			log.Fatal("bad input pattern", zap.Error(gerr))
		}
		if len(inputs) == 0 {
			log.Fatal("no inputs match", zap.Strings("patterns", flag.Args()))
		}
		if *ntlm {
			err = runImport[record.NTLM](record.NTLMCodec{}, inputs, *out, *lenient, log)
		} else {
			err = runImport[record.SHA1](record.SHA1Codec{}, inputs, *out, *lenient, log)
		}
	}
	if err != nil {
		log.Error("convert failed", zap.Error(err))
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: %[1]s [-ntlm] [-lenient] -o db.bin <glob>...
       %[1]s [-ntlm] -export [-gzip] [-o dump.txt] db.bin
`, os.Args[0])
	flag.PrintDefaults()
}

// expandGlobs resolves doublestar patterns and sorts the union. Corpus
// dump files are named in digest order, so the sorted file list is the
// import order.
func expandGlobs(patterns []string) ([]string, error) {
	var inputs []string
	for _, p := range patterns {
		matches, err := doublestar.FilepathGlob(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		inputs = append(inputs, matches...)
	}
	sort.Strings(inputs)
	return inputs, nil
}

func runImport[R any](c record.Codec[R], inputs []string, outPath string, lenient bool, log *zap.Logger) error {
	w, err := flatfile.Create[R](c, outPath)
	if err != nil {
		return err
	}
	start := time.Now()
	stats, err := convert.Import[R](c, inputs, w, lenient)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		// A partial binary is not resumable, unlike a download.
		os.Remove(outPath)
		return err
	}
	log.Info("import complete",
		zap.Int("files", stats.Files),
		zap.Int64("lines", stats.Lines),
		zap.Int64("records", stats.Records),
		zap.Int64("malformed", stats.Malformed),
		zap.Int64("bad_counts", stats.BadCounts),
		zap.Int64("out_of_order", stats.OutOfOrder),
		zap.String("to", outPath),
		zap.Duration("took", time.Since(start)))
	return nil
}

func runExport[R any](c record.Codec[R], dbPath, outPath string, gzOut bool, log *zap.Logger) error {
	db, err := flatfile.Open[R](c, dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	var w io.Writer = f
	var zw *gzip.Writer
	if gzOut {
		zw = gzip.NewWriter(f)
		w = zw
	}

	start := time.Now()
	n, err := convert.Export[R](c, db, w)
	if zw != nil {
		if cerr := zw.Close(); err == nil {
			err = cerr
		}
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(outPath)
		return err
	}
	log.Info("export complete",
		zap.Int64("records", n),
		zap.String("to", outPath),
		zap.Duration("took", time.Since(start)))
	return nil
}

func exportName(dbPath string, gz bool) string {
	name := strings.TrimSuffix(dbPath, ".bin") + ".txt"
	if gz {
		name += ".gz"
	}
	return name
}
