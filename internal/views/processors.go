package views

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/helixframework/helix/internal/core/container"
)

// DefaultIncludeDepth limits nested includes when no "depth" option is set
const DefaultIncludeDepth = 10

var (
	includePattern    = regexp.MustCompile(`@include\(\s*"([^"]+)"\s*\)`)
	evaluatorPattern  = regexp.MustCompile(`(?s)@\{\{(.+?)\}\}`)
	translatorPattern = regexp.MustCompile(`(?s)\[\[(.+?)\]\]`)
	blankLines        = regexp.MustCompile(`\n{3,}`)
)

// RegisterProcessors binds the built-in processors in c
func RegisterProcessors(c *container.Container) {
	c.Bind(ProcessorAlias("prettify"), func(_ *container.Container, params container.Params) (any, error) {
		return ProcessorFunc(prettify), nil
	})
	c.Bind(ProcessorAlias("include"), func(_ *container.Container, params container.Params) (any, error) {
		compiler, err := compilerParam(params)
		if err != nil {
			return nil, err
		}
		return &IncludeProcessor{compiler: compiler, maxDepth: intOption(params, "depth", DefaultIncludeDepth)}, nil
	})
	c.Bind(ProcessorAlias("evaluator"), func(_ *container.Container, params container.Params) (any, error) {
		compiler, err := compilerParam(params)
		if err != nil {
			return nil, err
		}
		return &EvaluatorProcessor{views: compiler.views}, nil
	})
	c.Bind(ProcessorAlias("translator"), func(_ *container.Container, params container.Params) (any, error) {
		compiler, err := compilerParam(params)
		if err != nil {
			return nil, err
		}
		return &TranslatorProcessor{translator: compiler.views.translator}, nil
	})
}

func compilerParam(params container.Params) (*Compiler, error) {
	compiler, ok := params["compiler"].(*Compiler)
	if !ok || compiler == nil {
		return nil, fmt.Errorf("processor requires a compiler parameter")
	}
	return compiler, nil
}

func intOption(params container.Params, name string, fallback int) int {
	options, _ := params["options"].(map[string]any)
	switch v := options[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}

// prettify strips trailing whitespace and collapses runs of blank lines
func prettify(source string) (string, error) {
	lines := strings.Split(strings.ReplaceAll(source, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	out := blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.Trim(out, "\n") + "\n", nil
}

// IncludeProcessor inlines @include("namespace:view") directives
type IncludeProcessor struct {
	compiler *Compiler
	maxDepth int
}

// Process replaces every include with the included view's expanded source
func (p *IncludeProcessor) Process(source string) (string, error) {
	var firstErr error
	out := includePattern.ReplaceAllStringFunc(source, func(match string) string {
		if firstErr != nil {
			return match
		}
		name := includePattern.FindStringSubmatch(match)[1]
		expanded, err := p.include(name)
		if err != nil {
			firstErr = err
			return match
		}
		return expanded
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

func (p *IncludeProcessor) include(name string) (string, error) {
	if p.compiler.depth >= p.maxDepth {
		return "", fmt.Errorf("include depth of %d exceeded including %q", p.maxDepth, name)
	}

	namespace, view := ParseName(name)
	child, err := p.compiler.Reconfigure(namespace, view)
	if err != nil {
		return "", err
	}
	child.depth = p.compiler.depth + 1

	source, err := child.Source()
	if err != nil {
		return "", err
	}
	nested := &IncludeProcessor{compiler: child, maxDepth: p.maxDepth}
	return nested.Process(strings.TrimRight(source, "\n"))
}

// EvaluatorProcessor executes @{{ expression }} blocks at compile time against the
// view dependency values, e.g. @{{ .environment }}.
type EvaluatorProcessor struct {
	views *Manager
}

var evaluatorFuncs = template.FuncMap{
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
}

// Process evaluates every block
func (p *EvaluatorProcessor) Process(source string) (string, error) {
	data := p.views.DependencyMap()

	var firstErr error
	out := evaluatorPattern.ReplaceAllStringFunc(source, func(match string) string {
		if firstErr != nil {
			return match
		}
		expr := evaluatorPattern.FindStringSubmatch(match)[1]
		tmpl, err := template.New("evaluator").Funcs(evaluatorFuncs).Option("missingkey=zero").Parse("{{" + expr + "}}")
		if err != nil {
			firstErr = fmt.Errorf("evaluate %q: %w", strings.TrimSpace(expr), err)
			return match
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			firstErr = fmt.Errorf("evaluate %q: %w", strings.TrimSpace(expr), err)
			return match
		}
		return buf.String()
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// TranslatorProcessor replaces [[text]] with its translation for the active language
type TranslatorProcessor struct {
	translator Translator
}

// Process translates every marked string
func (p *TranslatorProcessor) Process(source string) (string, error) {
	return translatorPattern.ReplaceAllStringFunc(source, func(match string) string {
		text := translatorPattern.FindStringSubmatch(match)[1]
		if p.translator == nil {
			return text
		}
		return p.translator.Translate(text)
	}), nil
}
