package endpoint

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/akhi28/dmzalloc/resource"
	"github.com/viant/afs/url"
	"github.com/viant/gosh"
	"github.com/viant/gosh/runner"
	"github.com/viant/gosh/runner/local"
	rssh "github.com/viant/gosh/runner/ssh"
	"github.com/viant/scy/cred/secret"
	"golang.org/x/crypto/ssh"
)

// executeCommand runs the command described by desc inside the
// deployment's sandbox and returns the exit status and captured output.
func (s *Service) executeCommand(ctx context.Context, d *deployment, desc resource.Description) (interface{}, error) {
	command := desc.String(resource.KeyRemoteCommand, "")
	if command == "" {
		return nil, fmt.Errorf("%s is required", resource.KeyRemoteCommand)
	}
	if args := desc.Strings(resource.KeyArgs); len(args) > 0 {
		command = command + " " + strings.Join(args, " ")
	}
	if workDir := url.Path(d.sandboxURL); workDir != "" {
		command = fmt.Sprintf("cd %s && %s", workDir, command)
	}

	timeout := time.Duration(desc.Int("walltime", 0)) * time.Second
	if timeout == 0 {
		timeout = time.Minute
	}

	session, err := s.session(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	started := time.Now()
	stdout, status, err := session.Run(ctx, command, runner.WithTimeout(int(timeout.Milliseconds())))
	elapsed := time.Since(started)
	if elapsed > timeout && err == nil {
		err = fmt.Errorf("command %v timed out after %s", command, elapsed)
	}
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"job_name":    desc.String(resource.KeyJobName, ""),
		"return_code": status,
		"output":      stdout,
	}, nil
}

// session lazily opens the shell session commands run in: a local runner
// for localhost, an SSH runner otherwise.
func (s *Service) session(ctx context.Context) (*gosh.Service, error) {
	s.execMu.Lock()
	defer s.execMu.Unlock()
	if s.exec != nil {
		return s.exec, nil
	}

	var service *gosh.Service
	var err error
	if s.config.Host == "" || s.config.Host == "localhost" {
		service, err = gosh.New(ctx, local.New())
	} else {
		config, cerr := s.sshConfig(ctx)
		if cerr != nil {
			return nil, fmt.Errorf("failed to get SSH config: %w", cerr)
		}
		sshHost := s.config.Host
		if !strings.Contains(sshHost, ":") {
			sshHost += ":22"
		}
		service, err = gosh.New(ctx, rssh.New(sshHost, config))
	}
	if err != nil {
		return nil, err
	}
	s.exec = service
	return s.exec, nil
}

// sshConfig builds an SSH client config from the configured secrets
// resource.
func (s *Service) sshConfig(ctx context.Context) (*ssh.ClientConfig, error) {
	credentials := s.config.Credentials
	if credentials == "" {
		credentials = "localhost"
	}
	secrets := secret.New()
	generic, err := secrets.GetCredentials(ctx, credentials)
	if err != nil {
		return nil, err
	}
	return generic.SSH.Config(ctx)
}
