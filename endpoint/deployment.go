package endpoint

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/akhi28/dmzalloc/protocol"
	"github.com/akhi28/dmzalloc/tracing"
)

// deployment services the operations of one deployed server inside its
// sandbox.
type deployment struct {
	service    *Service
	name       string
	path       string
	sandboxURL string
}

// Handle dispatches one server-level request.
func (d *deployment) Handle(ctx context.Context, req *protocol.Request) (interface{}, error) {
	ctx, span := tracing.StartSpan(ctx, "endpoint.server."+req.Op, "SERVER")
	result, err := d.handle(ctx, req)
	span.SetStatus(err)
	span.OnDone()
	return result, err
}

func (d *deployment) handle(ctx context.Context, req *protocol.Request) (interface{}, error) {
	switch req.Op {
	case "echo":
		return req.Args, nil
	case "execute_command":
		desc, err := descArg(req.Args, 0)
		if err != nil {
			return nil, err
		}
		return d.service.executeCommand(ctx, d, desc)
	case "pack_zipfile":
		patterns, err := stringsArg(req.Args, 0)
		if err != nil {
			return nil, err
		}
		filename, err := stringArg(req.Args, 1)
		if err != nil {
			return nil, err
		}
		return d.packZipfile(ctx, patterns, filename)
	case "unpack_zipfile":
		filename, err := stringArg(req.Args, 0)
		if err != nil {
			return nil, err
		}
		return d.unpackZipfile(ctx, filename)
	case "chmod":
		target, err := stringArg(req.Args, 0)
		if err != nil {
			return nil, err
		}
		mode, err := modeArg(req.Args, 1)
		if err != nil {
			return nil, err
		}
		return nil, d.chmod(ctx, target, mode)
	case "isdir":
		target, err := stringArg(req.Args, 0)
		if err != nil {
			return nil, err
		}
		return d.isDir(ctx, target)
	case "listdir":
		target, err := stringArg(req.Args, 0)
		if err != nil {
			return nil, err
		}
		return d.listDir(ctx, target)
	case "remove":
		target, err := stringArg(req.Args, 0)
		if err != nil {
			return nil, err
		}
		return nil, d.remove(ctx, target)
	case "shutdown":
		d.service.release(ctx, d)
		return nil, nil
	}
	return nil, fmt.Errorf("unknown operation %q", req.Op)
}

// resolve maps a request-supplied relative path onto the sandbox,
// rejecting anything that would escape it.
func (d *deployment) resolve(rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("empty path")
	}
	if path.IsAbs(rel) {
		return "", fmt.Errorf("absolute path %q not allowed", rel)
	}
	cleaned := path.Clean(rel)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("path %q escapes the sandbox", rel)
	}
	if cleaned == "." {
		return d.sandboxURL, nil
	}
	return d.sandboxURL + "/" + cleaned, nil
}

var _ protocol.Handler = (*deployment)(nil)
