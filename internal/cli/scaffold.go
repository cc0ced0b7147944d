package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"
)

const modulePath = "github.com/Additional-Code/menudesk"

var moduleName = regexp.MustCompile(`^[a-z][a-z0-9]*$`)

var scaffoldFiles = []struct {
	path string
	tmpl *template.Template
}{
	{"internal/service/{{.Name}}/module.go", template.Must(template.New("module").Parse(`package {{.Name}}

import "go.uber.org/fx"

// Module wires the {{.Name}} service.
var Module = fx.Provide(NewService)
`))},
	{"internal/service/{{.Name}}/service.go", template.Must(template.New("service").Parse(`package {{.Name}}

import (
	"go.opentelemetry.io/otel"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"{{.ModulePath}}/internal/config"
)

var serviceTracer = otel.Tracer("{{.ModulePath}}/service/{{.Name}}")

// Service holds the {{.Name}} business logic.
type Service struct {
	cfg    config.Config
	logger *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Config config.Config
	Logger *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{cfg: p.Config, logger: p.Logger.Named("{{.Name}}")}
}
`))},
}

// Scaffold creates a service package for name under root and returns the
// files it wrote. Existing files are never overwritten.
func Scaffold(root, name string) ([]string, error) {
	if !moduleName.MatchString(name) {
		return nil, fmt.Errorf("invalid module name %q: use lowercase letters and digits", name)
	}
	data := struct{ Name, ModulePath string }{name, modulePath}

	paths := make([]string, 0, len(scaffoldFiles))
	for _, f := range scaffoldFiles {
		rel, err := render(template.Must(template.New("path").Parse(f.path)), data)
		if err != nil {
			return nil, err
		}
		path := filepath.Join(root, filepath.FromSlash(rel))
		if _, err := os.Stat(path); err == nil {
			return nil, fmt.Errorf("%s already exists", path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		paths = append(paths, path)
	}

	for i, f := range scaffoldFiles {
		path := paths[i]
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return paths[:i], err
		}
		out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			return paths[:i], err
		}
		err = f.tmpl.Execute(out, data)
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return paths[:i], err
		}
	}
	return paths, nil
}

func render(t *template.Template, data any) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}
