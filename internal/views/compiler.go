package views

import (
	"fmt"
	"hash/crc32"
	"path"
	"strings"
	"sync"

	"github.com/helixframework/helix/internal/core/container"
	"github.com/helixframework/helix/internal/infrastructure/files"
	"github.com/helixframework/helix/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// ProcessorAlias returns the container alias a processor is bound under
func ProcessorAlias(name string) string {
	return "views.processor." + name
}

// Processor transforms view source at compile time
type Processor interface {
	Process(source string) (string, error)
}

// ProcessorFunc adapts a function to Processor
type ProcessorFunc func(source string) (string, error)

// Process calls f
func (f ProcessorFunc) Process(source string) (string, error) {
	return f(source)
}

// Compiler compiles one view through the configured processors
type Compiler struct {
	views     *Manager
	namespace string
	view      string
	filename  string

	mu               sync.Mutex
	compiledFilename string
	processors       []Processor
	depth            int
}

// Namespace returns the view namespace
func (c *Compiler) Namespace() string { return c.namespace }

// View returns the view name
func (c *Compiler) View() string { return c.view }

// Filename returns the view source filename
func (c *Compiler) Filename() string { return c.filename }

// Views returns the manager the compiler belongs to
func (c *Compiler) Views() *Manager { return c.views }

// Depth returns how many includes deep this compiler is nested
func (c *Compiler) Depth() int { return c.depth }

// Source reads the view source
func (c *Compiler) Source() (string, error) {
	data, err := c.views.files.Read(c.filename)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Processors constructs the configured processors once per compiler
func (c *Compiler) Processors() ([]Processor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.processors != nil {
		return c.processors, nil
	}

	out := make([]Processor, 0, len(c.views.cfg.Processors))
	for _, pc := range c.views.cfg.Processors {
		p, err := c.newProcessor(pc)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	c.processors = out
	return out, nil
}

func (c *Compiler) newProcessor(pc ProcessorConfig) (Processor, error) {
	options := pc.Options
	if options == nil {
		options = map[string]any{}
	}
	value, err := c.views.container.Get(ProcessorAlias(pc.Name), container.Params{
		"views":    c.views,
		"compiler": c,
		"options":  options,
	})
	if err != nil {
		return nil, fmt.Errorf("view processor %q: %w", pc.Name, err)
	}
	p, ok := value.(Processor)
	if !ok {
		return nil, fmt.Errorf("view processor %q: %T does not implement Processor", pc.Name, value)
	}
	return p, nil
}

// Process runs the source through every processor
func (c *Compiler) Process(source string) (string, error) {
	processors, err := c.Processors()
	if err != nil {
		return "", err
	}

	for i, p := range processors {
		done := logger.Benchmark(c.views.logger, "views.process",
			zap.String("view", c.namespace+":"+c.view),
			zap.String("processor", c.views.cfg.Processors[i].Name),
		)
		source, err = p.Process(source)
		done()
		if err != nil {
			return "", fmt.Errorf("%s:%s: %s: %w", c.namespace, c.view, c.views.cfg.Processors[i].Name, err)
		}
	}
	return source, nil
}

// Compile processes the view source and writes the compiled file
func (c *Compiler) Compile() (string, error) {
	source, err := c.Source()
	if err != nil {
		return "", err
	}
	compiled, err := c.Process(source)
	if err != nil {
		return "", err
	}
	if err := c.views.files.Write(c.CompiledFilename(), []byte(compiled), files.Runtime, true); err != nil {
		return "", fmt.Errorf("write compiled view: %w", err)
	}
	c.views.logger.Debug("View compiled",
		zap.String("view", c.namespace+":"+c.view),
		zap.String("compiled", c.CompiledFilename()),
	)
	return compiled, nil
}

// CompiledFilename is unique per namespace, view and set of dependency values
func (c *Compiler) CompiledFilename() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.compiledFilename != "" {
		return c.compiledFilename
	}

	hash := crc32.ChecksumIEEE([]byte(strings.Join(c.views.Dependencies(), ",")))
	view := strings.Trim(strings.NewReplacer("\\", "-", "/", "-").Replace(c.view), "-")
	name := fmt.Sprintf("%s-%s-%08x.%s", c.namespace, view, hash, c.views.cfg.Extension)

	c.compiledFilename = path.Join(c.views.files.NormalizePath(c.views.cfg.Cache.Directory), name)
	return c.compiledFilename
}

// IsCompiled reports whether caching is enabled and the compiled file is at least as
// new as the source.
func (c *Compiler) IsCompiled() bool {
	if !c.views.cfg.Cache.Enabled {
		return false
	}
	compiled := c.CompiledFilename()
	if !c.views.files.Exists(compiled) {
		return false
	}

	compiledAt, err := c.views.files.Time(compiled)
	if err != nil {
		return false
	}
	sourceAt, err := c.views.files.Time(c.filename)
	if err != nil {
		return false
	}
	return !compiledAt.Before(sourceAt)
}

// Reconfigure returns a compiler for another view sharing this compiler's manager.
// The clone starts without a compiled filename or processors.
func (c *Compiler) Reconfigure(namespace, view string) (*Compiler, error) {
	filename, err := c.views.Filename(namespace, view)
	if err != nil {
		return nil, err
	}
	return &Compiler{
		views:     c.views,
		namespace: namespace,
		view:      view,
		filename:  filename,
		depth:     c.depth,
	}, nil
}
