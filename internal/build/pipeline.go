// Package build annotates templates in bulk. Each template is compiled,
// rewritten with line tracking and written below the output directory as
// <name>.prog; when rendering is enabled the annotated output is written
// next to it as <name>.out. Programs are cached by content hash so
// unchanged templates skip the compiler.
package build

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/templine/internal/compiler"
	"github.com/conneroisu/templine/internal/errors"
	"github.com/conneroisu/templine/internal/lineno"
	"github.com/conneroisu/templine/internal/logging"
	"github.com/conneroisu/templine/internal/renderer"
	"github.com/conneroisu/templine/internal/rewriter"
	"github.com/conneroisu/templine/internal/scanner"
)

// Output file extensions.
const (
	ProgramExt = ".prog"
	OutputExt  = ".out"
)

// Task is one template to annotate.
type Task struct {
	// Path is the file to read.
	Path string
	// Name is the slash separated template name used in #line directives
	// and as the output path below the output directory.
	Name string
}

// BuildResult represents the result of annotating one template
type BuildResult struct {
	Task        Task
	Program     string
	ProgramPath string
	OutputPath  string
	Directives  int
	Error       error
	Duration    time.Duration
	CacheHit    bool
	Hash        string
}

// BuildCallback is called when a template finishes
type BuildCallback func(result BuildResult)

// Options configures a Pipeline.
type Options struct {
	Workers   int
	OutputDir string
	Encoding  string
	CacheSize int64
	CacheTTL  time.Duration
	// Render also evaluates each program against Data and writes the
	// annotated output.
	Render bool
	Data   map[string]interface{}
	Logger logging.Logger
}

// Pipeline annotates templates with a bounded number of workers.
type Pipeline struct {
	compiler  *compiler.Compiler
	renderer  *renderer.Renderer
	cache     *BuildCache
	metrics   *BuildMetrics
	errors    *errors.ErrorCollector
	logger    logging.Logger
	workers   int
	outputDir string
	encoding  string
	render    bool
	data      map[string]interface{}

	mu        sync.RWMutex
	callbacks []BuildCallback
}

// NewPipeline creates a pipeline.
func NewPipeline(opts Options) *Pipeline {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Encoding == "" {
		opts.Encoding = compiler.DefaultEncoding
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 64 << 20
	}
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger{}
	}
	logger := opts.Logger.WithComponent("build")

	return &Pipeline{
		compiler: compiler.New(
			compiler.WithEncoding(opts.Encoding),
			compiler.WithLogger(logger),
		),
		renderer:  renderer.New(renderer.WithLogger(logger)),
		cache:     NewBuildCache(opts.CacheSize, opts.CacheTTL),
		metrics:   NewBuildMetrics(),
		errors:    errors.NewErrorCollector(),
		logger:    logger,
		workers:   opts.Workers,
		outputDir: opts.OutputDir,
		encoding:  opts.Encoding,
		render:    opts.Render,
		data:      opts.Data,
	}
}

// TasksFromScanner turns discovered paths into tasks named relative to the
// scanner root.
func TasksFromScanner(s *scanner.TemplateScanner, paths []string) ([]Task, error) {
	tasks := make([]Task, 0, len(paths))
	for _, path := range paths {
		rel, err := s.Rel(path)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, Task{Path: path, Name: filepath.ToSlash(rel)})
	}
	return tasks, nil
}

// AddCallback adds a callback to be called when a template finishes
func (p *Pipeline) AddCallback(callback BuildCallback) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.callbacks = append(p.callbacks, callback)
}

// Metrics returns a snapshot of the build metrics.
func (p *Pipeline) Metrics() BuildMetrics {
	return p.metrics.Snapshot()
}

func (p *Pipeline) CacheStats() CacheStats {
	return p.cache.Stats()
}

func (p *Pipeline) ClearCache() {
	p.cache.Clear()
}

// Errors returns the collector holding the errors of the latest build of
// every template.
func (p *Pipeline) Errors() *errors.ErrorCollector {
	return p.errors
}

// Build annotates every task and replaces the collected errors. Results are
// returned in task order. The error is non-nil when the context ends or any
// template fails.
func (p *Pipeline) Build(ctx context.Context, tasks []Task) ([]BuildResult, error) {
	timer := logging.StartOperation(p.logger, "build")
	p.errors.Clear()
	results := make([]BuildResult, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, task := range tasks {
		g.Go(func() error {
			results[i] = p.BuildOne(gctx, task)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}

	failed := 0
	for _, r := range results {
		if r.Error != nil {
			failed++
		}
	}
	timer.End(ctx, "templates", len(tasks), "failed", failed)

	if failed > 0 {
		return results, fmt.Errorf("%d of %d templates failed", failed, len(tasks))
	}
	return results, nil
}

// BuildOne annotates a single template.
func (p *Pipeline) BuildOne(ctx context.Context, task Task) BuildResult {
	start := time.Now()
	result := BuildResult{Task: task}

	p.errors.ClearFile(task.Name)
	result.Error = p.process(ctx, task, &result)
	result.Duration = time.Since(start)

	p.metrics.RecordBuild(result)
	if result.Error != nil {
		p.errors.AddError(result.Error)
		p.logger.Warn(ctx, result.Error, "Template failed", "template", task.Name)
	} else {
		p.logger.Debug(ctx, "Template annotated",
			"template", task.Name,
			"cached", result.CacheHit,
			"duration", result.Duration,
		)
	}

	p.mu.RLock()
	callbacks := p.callbacks
	p.mu.RUnlock()
	for _, callback := range callbacks {
		callback(result)
	}
	return result
}

func (p *Pipeline) process(ctx context.Context, task Task, result *BuildResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !filepath.IsLocal(filepath.FromSlash(task.Name)) {
		return errors.Wrap(fmt.Errorf("name %q is not a local path", task.Name),
			errors.ErrorTypeValidation, errors.CodeWriteOutput, "invalid template name").WithFile(task.Path)
	}

	src, err := os.ReadFile(task.Path)
	if err != nil {
		return errors.WrapIO(err, errors.CodeReadTemplate, "failed to read template").WithFile(task.Path)
	}

	result.Hash = p.contentHash(task.Name, src)
	if cached, ok := p.cache.Get(result.Hash); ok {
		result.Program = string(cached)
		result.CacheHit = true
	} else {
		compiled, err := p.compiler.Compile(ctx, task.Name, src)
		if err != nil {
			return errors.WrapTemplate(err, errors.CodeCompile, "failed to compile template")
		}
		result.Program = rewriter.Rewrite(compiled, task.Name)
		p.cache.Set(result.Hash, []byte(result.Program))
	}

	base := filepath.Join(p.outputDir, filepath.FromSlash(task.Name))
	result.ProgramPath = base + ProgramExt
	if err := writeFile(result.ProgramPath, result.Program); err != nil {
		return err
	}

	if !p.render {
		return nil
	}
	out, err := p.renderer.Render(ctx, task.Name, result.Program, p.data)
	if err != nil {
		return errors.WrapTemplate(err, errors.CodeRender, "failed to render template").WithFile(task.Name)
	}
	result.Directives = len(lineno.Directives(out))
	result.OutputPath = base + OutputExt
	return writeFile(result.OutputPath, out)
}

// Remove deletes the outputs written for task and forgets its errors.
func (p *Pipeline) Remove(task Task) error {
	p.errors.ClearFile(task.Name)
	base := filepath.Join(p.outputDir, filepath.FromSlash(task.Name))
	for _, path := range []string{base + ProgramExt, base + OutputExt} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errors.WrapIO(err, errors.CodeWriteOutput, "failed to remove output").WithFile(path)
		}
	}
	return nil
}

// contentHash keys the cache. The name and encoding are part of the key
// because both end up in the program.
func (p *Pipeline) contentHash(name string, src []byte) string {
	h := sha256.New()
	h.Write([]byte(p.encoding))
	h.Write([]byte{0})
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write(src)
	return hex.EncodeToString(h.Sum(nil))
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.WrapIO(err, errors.CodeWriteOutput, "failed to create output directory").WithFile(path)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return errors.WrapIO(err, errors.CodeWriteOutput, "failed to write output").WithFile(path)
	}
	return nil
}
