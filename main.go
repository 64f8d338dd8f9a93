// anycop finds negated emptiness checks in Ruby code and rewrites them to any?.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/phobologic/anycop/internal/analyze"
	"github.com/phobologic/anycop/internal/cache"
	"github.com/phobologic/anycop/internal/config"
	"github.com/phobologic/anycop/internal/discover"
	"github.com/phobologic/anycop/internal/fix"
	"github.com/phobologic/anycop/internal/lang"
	"github.com/phobologic/anycop/internal/model"
	"github.com/phobologic/anycop/internal/report"
	"github.com/phobologic/anycop/internal/rule"
)

var version = "dev"

// errOffenses signals that uncorrected offenses remain.
var errOffenses = errors.New("offenses detected")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if errors.Is(err, errOffenses) {
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 && args[0] == "init" {
		return runInit(args[1:], stdout, stderr)
	}

	fs := flag.NewFlagSet("anycop", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		autocorrect bool
		format      string
		cachePath   string
		configPath  string
		maxFileSize int
		jobs        int
		noColor     bool
		verbose     bool
		showVersion bool
	)

	fs.BoolVar(&autocorrect, "a", false, "autocorrect offenses in place")
	fs.BoolVar(&autocorrect, "autocorrect", false, "autocorrect offenses in place")
	fs.StringVar(&format, "f", report.FormatText, "output format: "+strings.Join(report.Formats, ", "))
	fs.StringVar(&format, "format", report.FormatText, "output format: "+strings.Join(report.Formats, ", "))
	fs.StringVar(&cachePath, "cache", "", "result cache file path")
	fs.StringVar(&configPath, "config", "", "config file (default <root>/"+config.FileName+")")
	fs.IntVar(&maxFileSize, "max-file-size", 0, "skip files larger than this many bytes (overrides config)")
	fs.IntVar(&jobs, "j", 0, "number of parallel workers (overrides config)")
	fs.IntVar(&jobs, "jobs", 0, "number of parallel workers (overrides config)")
	fs.BoolVar(&noColor, "no-color", false, "disable colored output")
	fs.BoolVar(&verbose, "v", false, "verbose logging")
	fs.BoolVar(&verbose, "verbose", false, "verbose logging")
	fs.BoolVar(&showVersion, "V", false, "show version and exit")
	fs.BoolVar(&showVersion, "version", false, "show version and exit")

	if err := fs.Parse(reorderArgs(args)); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	if showVersion {
		_, _ = fmt.Fprintf(stdout, "anycop %s\n", version)
		return nil
	}

	if !slices.Contains(report.Formats, format) {
		return fmt.Errorf("unsupported format %q", format)
	}

	logger := newLogger(stderr, verbose)
	defer func() { _ = logger.Sync() }()

	root, explicit, err := resolveRoot(fs.Args())
	if err != nil {
		return err
	}

	cfg, err := config.Load(root, configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Path != "" {
		logger.Debug("loaded config", zap.String("path", cfg.Path))
	}
	if maxFileSize > 0 {
		cfg.Files.MaxFileSize = maxFileSize
	}
	if jobs > 0 {
		cfg.Run.Jobs = jobs
	}

	// Discover files
	opts := discover.Options{Exclude: cfg.Files.Exclude}
	var files []discover.FileEntry
	if explicit != nil {
		files, err = discover.Explicit(root, explicit, opts)
	} else {
		files, err = discover.Files(root, opts)
	}
	if err != nil {
		return fmt.Errorf("discovering files: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no Ruby files found")
	}

	// Filter by size
	files = filterBySize(root, files, cfg.Files.MaxFileSize, logger)
	if len(files) == 0 {
		return fmt.Errorf("no Ruby files found (all exceeded size limit)")
	}

	var rc *cache.Cache
	if cachePath != "" {
		rc, err = cache.Open(cachePath, version+"/"+rule.Name)
		if err != nil {
			logger.Warn("ignoring cache", zap.String("path", cachePath), zap.Error(err))
			rc = nil
		}
	}

	// Inspect files concurrently
	results := inspectFilesConcurrent(ctx, root, files, inspectOptions{
		autocorrect:   autocorrect,
		enabled:       cfg.Rule.Enabled,
		maxIterations: cfg.Run.MaxIterations,
		jobs:          cfg.Run.Jobs,
		cache:         rc,
	}, logger)
	if err := ctx.Err(); err != nil {
		return err
	}

	if autocorrect {
		if err := fix.WriteFiles(ctx, root, results, cfg.Run.Jobs); err != nil {
			return fmt.Errorf("writing corrections: %w", err)
		}
	}

	if rc != nil {
		if explicit == nil {
			keep := make(map[string]struct{}, len(files))
			for _, f := range files {
				keep[f.Path] = struct{}{}
			}
			rc.Retain(keep)
		}
		if err := rc.Save(); err != nil {
			logger.Warn("failed to save cache", zap.String("path", cachePath), zap.Error(err))
		}
	}

	err = report.Write(stdout, results, report.Options{
		Format:  format,
		Color:   !noColor && isTerminal(stdout),
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	sum := model.Summarize(results)
	if sum.Offenses > sum.Corrected {
		return errOffenses
	}
	return nil
}

// resolveRoot picks the inspection root. With no arguments it is the current
// directory; a single directory argument becomes the root; anything else is
// a list of explicit paths relative to the current directory.
func resolveRoot(args []string) (string, []string, error) {
	if len(args) == 1 {
		info, err := os.Stat(args[0])
		if err != nil {
			return "", nil, fmt.Errorf("root path: %w", err)
		}
		if info.IsDir() {
			root, err := filepath.Abs(args[0])
			if err != nil {
				return "", nil, fmt.Errorf("resolving root: %w", err)
			}
			return root, nil, nil
		}
	}

	root, err := filepath.Abs(".")
	if err != nil {
		return "", nil, fmt.Errorf("resolving root: %w", err)
	}
	if len(args) == 0 {
		return root, nil, nil
	}
	return root, args, nil
}

func newLogger(w io.Writer, verbose bool) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(zapcore.AddSync(w)),
		level,
	)
	return zap.New(core)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func filterBySize(root string, files []discover.FileEntry, maxSize int, logger *zap.Logger) []discover.FileEntry {
	if maxSize <= 0 {
		return files
	}
	var kept []discover.FileEntry
	for _, f := range files {
		fi, err := os.Stat(filepath.Join(root, f.Path))
		if err != nil {
			kept = append(kept, f) // keep if can't stat
			continue
		}
		if fi.Size() > int64(maxSize) {
			logger.Warn("skipped large file", zap.String("file", f.Path), zap.Int("limit", maxSize))
			continue
		}
		kept = append(kept, f)
	}
	return kept
}

type inspectOptions struct {
	autocorrect   bool
	enabled       bool
	maxIterations int
	jobs          int
	cache         *cache.Cache
}

func inspectFilesConcurrent(ctx context.Context, root string, files []discover.FileEntry, opts inspectOptions, logger *zap.Logger) []model.FileResult {
	type result struct {
		index int
		res   model.FileResult
		ok    bool
	}

	numWorkers := opts.jobs
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	if numWorkers > len(files) {
		numWorkers = len(files)
	}

	work := make(chan int, len(files))
	results := make(chan result, len(files))

	var wg sync.WaitGroup

	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// Each goroutine gets its own analyzers
			analyzers := make(map[string]*analyze.Analyzer)
			defer func() {
				for _, a := range analyzers {
					a.Close()
				}
			}()

			for idx := range work {
				if ctx.Err() != nil {
					continue
				}
				f := files[idx]
				an, ok := analyzers[f.Language]
				if !ok {
					l, known := lang.Languages[f.Language]
					if !known {
						logger.Warn("unsupported language", zap.String("file", f.Path), zap.String("language", f.Language))
						continue
					}
					var err error
					an, err = analyze.New(l)
					if err != nil {
						logger.Warn("failed to compile query", zap.String("language", f.Language), zap.Error(err))
						continue
					}
					analyzers[f.Language] = an
				}

				fr, err := inspectFile(ctx, root, f, an, opts, logger)
				if err != nil {
					logger.Warn("failed to inspect file", zap.String("file", f.Path), zap.Error(err))
					continue
				}
				results <- result{index: idx, res: fr, ok: true}
			}
		}()
	}

	for i := range files {
		work <- i
	}
	close(work)

	go func() {
		wg.Wait()
		close(results)
	}()

	// Collect results in original order
	indexed := make([]model.FileResult, len(files))
	valid := make([]bool, len(files))
	for r := range results {
		indexed[r.index] = r.res
		valid[r.index] = r.ok
	}

	var fileResults []model.FileResult
	for i, v := range valid {
		if v {
			fileResults = append(fileResults, indexed[i])
		}
	}

	return fileResults
}

func inspectFile(ctx context.Context, root string, f discover.FileEntry, an *analyze.Analyzer, opts inspectOptions, logger *zap.Logger) (model.FileResult, error) {
	fr := model.FileResult{Path: f.Path}
	if !opts.enabled {
		return fr, nil
	}

	absPath := filepath.Join(root, f.Path)
	info, err := os.Stat(absPath)
	if err != nil {
		return fr, err
	}

	if !opts.autocorrect {
		if cached, ok := opts.cache.Get(f.Path, info.Size(), info.ModTime()); ok {
			logger.Debug("cache hit", zap.String("file", f.Path))
			fr.Offenses = cached
			return fr, nil
		}
	}

	source, err := os.ReadFile(absPath)
	if err != nil {
		return fr, err
	}

	if !opts.autocorrect {
		fr.Offenses, err = an.Source(ctx, source, f.Path)
		if err != nil {
			return fr, err
		}
		opts.cache.Put(f.Path, info.Size(), info.ModTime(), fr.Offenses)
		return fr, nil
	}

	res, err := fix.Loop(ctx, func(ctx context.Context, src []byte) ([]model.Offense, error) {
		return an.Source(ctx, src, f.Path)
	}, source, opts.maxIterations)
	if errors.Is(err, fix.ErrInfiniteLoop) {
		logger.Warn("autocorrect did not converge; file left unchanged",
			zap.String("file", f.Path), zap.Int("passes", res.Passes))
		fr.Offenses = res.Offenses
		return fr, nil
	}
	if err != nil {
		return fr, err
	}

	fr.Offenses = res.Offenses
	if res.Changed() {
		fr.Corrected = res.Source
		logger.Debug("corrected file", zap.String("file", f.Path),
			zap.Int("edits", res.Applied), zap.Int("passes", res.Passes))
	} else {
		opts.cache.Put(f.Path, info.Size(), info.ModTime(), fr.Offenses)
	}
	return fr, nil
}

// flagsWithValue lists flags that take a value argument.
var flagsWithValue = map[string]bool{
	"-f": true, "--f": true,
	"-format": true, "--format": true,
	"-cache": true, "--cache": true,
	"-config": true, "--config": true,
	"-max-file-size": true, "--max-file-size": true,
	"-j": true, "--j": true,
	"-jobs": true, "--jobs": true,
}

// reorderArgs moves positional arguments after all flags so Go's flag package
// can parse them correctly (it stops at the first non-flag arg).
func reorderArgs(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		if args[i] == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if len(args[i]) > 0 && args[i][0] == '-' {
			flags = append(flags, args[i])
			if flagsWithValue[args[i]] && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			positional = append(positional, args[i])
		}
	}
	return append(flags, positional...)
}
