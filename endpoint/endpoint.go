package endpoint

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"sync"

	"github.com/akhi28/dmzalloc/protocol"
	"github.com/akhi28/dmzalloc/resource"
	"github.com/akhi28/dmzalloc/tracing"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"github.com/viant/gosh"
	"github.com/viant/toolbox"
)

// Registrar exposes handlers under transport identities. Both the
// in-process relay and the file-exchange listener satisfy it.
type Registrar interface {
	Register(ctx context.Context, identity string, handler protocol.Handler) error
}

// Config holds endpoint capacity and sandbox settings.
type Config struct {
	// MaxServers bounds concurrent deployments.
	MaxServers int `json:"maxServers" yaml:"maxServers"`

	// CPUs is the advertised CPU capacity; requests above it are
	// unsupported.
	CPUs int `json:"cpus" yaml:"cpus"`

	// BaseURL roots all deployment sandboxes, in any scheme the file
	// service understands.
	BaseURL string `json:"baseURL" yaml:"baseURL"`

	// Host is where commands run: "localhost" uses the local runner,
	// anything else an SSH session.
	Host string `json:"host" yaml:"host"`

	// Credentials names the secrets resource holding SSH credentials for
	// a non-local Host.
	Credentials string `json:"credentials" yaml:"credentials"`
}

// DefaultConfig returns the standard endpoint configuration.
func DefaultConfig() Config {
	return Config{
		MaxServers: 4,
		CPUs:       runtime.NumCPU(),
		BaseURL:    "file:///tmp/dmzalloc",
		Host:       "localhost",
	}
}

// Service is the remote-side agent: it answers an allocator's feasibility
// queries, provisions per-deployment sandboxes and services the file and
// process operations of each deployed server.
type Service struct {
	name      string
	config    Config
	fs        afs.Service
	registrar Registrar

	mu          sync.Mutex
	deployments map[string]*deployment
	closed      bool

	execMu sync.Mutex
	exec   *gosh.Service
}

// Option customises the endpoint service.
type Option func(s *Service)

// WithConfig overrides the endpoint configuration.
func WithConfig(config Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithFileService overrides the sandbox file service.
func WithFileService(fs afs.Service) Option {
	return func(s *Service) {
		s.fs = fs
	}
}

// New creates an endpoint servicing the allocator identity name.
func New(name string, registrar Registrar, options ...Option) *Service {
	s := &Service{
		name:        name,
		config:      DefaultConfig(),
		registrar:   registrar,
		deployments: make(map[string]*deployment),
	}
	for _, option := range options {
		option(s)
	}
	if s.fs == nil {
		s.fs = afs.New()
	}
	return s
}

// Start registers the endpoint under its allocator identity.
func (s *Service) Start(ctx context.Context) error {
	return s.registrar.Register(ctx, s.name, s)
}

// Handle dispatches one allocator-level request.
func (s *Service) Handle(ctx context.Context, req *protocol.Request) (interface{}, error) {
	ctx, span := tracing.StartSpan(ctx, "endpoint."+req.Op, "SERVER")
	result, err := s.handle(ctx, req)
	span.SetStatus(err)
	span.OnDone()
	return result, err
}

func (s *Service) handle(ctx context.Context, req *protocol.Request) (interface{}, error) {
	switch req.Op {
	case "echo":
		return req.Args, nil
	case "max_servers":
		desc, err := descArg(req.Args, 0)
		if err != nil {
			return nil, err
		}
		return s.maxServers(desc), nil
	case "time_estimate":
		desc, err := descArg(req.Args, 0)
		if err != nil {
			return nil, err
		}
		return s.timeEstimate(desc), nil
	case "deploy":
		name, err := stringArg(req.Args, 0)
		if err != nil {
			return nil, err
		}
		desc, err := descArg(req.Args, 1)
		if err != nil {
			return nil, err
		}
		criteria, err := mapArg(req.Args, 2)
		if err != nil {
			return nil, err
		}
		path, err := stringArg(req.Args, 3)
		if err != nil {
			return nil, err
		}
		return s.deploy(ctx, name, desc, criteria, path)
	case "shutdown":
		return nil, s.Shutdown(ctx)
	}
	return nil, fmt.Errorf("unknown operation %q", req.Op)
}

// deploy provisions a sandbox for path and registers its server handler.
func (s *Service) deploy(ctx context.Context, name string, desc resource.Description, criteria map[string]interface{}, path string) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("endpoint %s is shut down", s.name)
	}
	if _, exists := s.deployments[path]; exists {
		return nil, fmt.Errorf("server %s already deployed", path)
	}
	if len(s.deployments) >= s.config.MaxServers {
		return nil, fmt.Errorf("endpoint %s has no capacity for %s", s.name, path)
	}
	sandboxURL := url.Join(s.config.BaseURL, path)
	if err := s.fs.Create(ctx, sandboxURL, file.DefaultDirOsMode, true); err != nil {
		return nil, fmt.Errorf("failed to create sandbox %s: %w", sandboxURL, err)
	}
	d := &deployment{
		service:    s,
		name:       name,
		path:       path,
		sandboxURL: sandboxURL,
	}
	if err := s.registrar.Register(ctx, path, d); err != nil {
		return nil, fmt.Errorf("failed to register server %s: %w", path, err)
	}
	s.deployments[path] = d
	log.Printf("endpoint %s: deployed %s", s.name, path)
	return map[string]interface{}{"path": path, "sandbox": sandboxURL}, nil
}

// release unregisters a deployment; its sandbox is left in place so job
// output survives the server.
func (s *Service) release(ctx context.Context, d *deployment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.deployments[d.path]; !exists {
		return
	}
	delete(s.deployments, d.path)
	_ = s.registrar.Register(ctx, d.path, nil)
	log.Printf("endpoint %s: released %s", s.name, d.path)
}

// Shutdown unregisters every deployment and the endpoint itself.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for path := range s.deployments {
		_ = s.registrar.Register(ctx, path, nil)
		delete(s.deployments, path)
	}
	_ = s.registrar.Register(ctx, s.name, nil)
	s.execMu.Lock()
	defer s.execMu.Unlock()
	if s.exec != nil {
		err := s.exec.Close()
		s.exec = nil
		return err
	}
	return nil
}

// active returns the number of live deployments.
func (s *Service) active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.deployments)
}

// Argument decoding. Envelopes that crossed a JSON transport carry
// generic maps and slices; in-process transports deliver typed values.

func descArg(args []interface{}, index int) (resource.Description, error) {
	if index >= len(args) {
		return nil, fmt.Errorf("missing resource description argument %d", index)
	}
	switch actual := args[index].(type) {
	case resource.Description:
		return actual, nil
	case map[string]interface{}:
		return resource.Description(actual), nil
	case nil:
		return resource.Description{}, nil
	}
	return nil, fmt.Errorf("unexpected resource description %T", args[index])
}

func mapArg(args []interface{}, index int) (map[string]interface{}, error) {
	if index >= len(args) {
		return nil, fmt.Errorf("missing map argument %d", index)
	}
	switch actual := args[index].(type) {
	case map[string]interface{}:
		return actual, nil
	case resource.Description:
		return actual, nil
	case nil:
		return nil, nil
	}
	return nil, fmt.Errorf("unexpected map argument %T", args[index])
}

func stringArg(args []interface{}, index int) (string, error) {
	if index >= len(args) || args[index] == nil {
		return "", fmt.Errorf("missing string argument %d", index)
	}
	return toolbox.AsString(args[index]), nil
}

func stringsArg(args []interface{}, index int) ([]string, error) {
	if index >= len(args) {
		return nil, fmt.Errorf("missing string list argument %d", index)
	}
	switch actual := args[index].(type) {
	case []string:
		return actual, nil
	case []interface{}:
		ret := make([]string, 0, len(actual))
		for _, item := range actual {
			ret = append(ret, toolbox.AsString(item))
		}
		return ret, nil
	case nil:
		return nil, nil
	}
	return nil, fmt.Errorf("unexpected string list argument %T", args[index])
}

var _ protocol.Handler = (*Service)(nil)
