package dmzfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/akhi28/dmzalloc/protocol"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"
)

// Listener is the serving side of the file-exchange transport. It polls
// the requests mailbox of every registered identity, dispatches envelopes
// to the identity's handler and writes response envelopes back, oldest
// request first.
type Listener struct {
	fs         afs.Service
	config     Config
	baseURL    string
	serverHost string
	mu         sync.RWMutex
	handlers   map[string]protocol.Handler
}

// NewListener creates a listener for serverHost mailboxes under baseURL.
func NewListener(fs afs.Service, baseURL, serverHost string, config Config) *Listener {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}
	return &Listener{
		fs:         fs,
		config:     config,
		baseURL:    baseURL,
		serverHost: serverHost,
		handlers:   make(map[string]protocol.Handler),
	}
}

// Register exposes handler under identity and creates its mailboxes.
// Registering nil removes the identity.
func (l *Listener) Register(ctx context.Context, identity string, handler protocol.Handler) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if handler == nil {
		delete(l.handlers, identity)
		return nil
	}
	dirs := []string{
		requestsURL(l.baseURL, l.serverHost, identity),
		responsesURL(l.baseURL, l.serverHost, identity),
	}
	for _, dir := range dirs {
		exists, _ := l.fs.Exists(ctx, dir)
		if exists {
			continue
		}
		if err := l.fs.Create(ctx, dir, file.DefaultDirOsMode, true); err != nil {
			return fmt.Errorf("failed to create mailbox %s: %w", dir, err)
		}
	}
	l.handlers[identity] = handler
	return nil
}

// Serve polls registered mailboxes until ctx is cancelled.
func (l *Listener) Serve(ctx context.Context) error {
	ticker := time.NewTicker(l.config.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := l.Poll(ctx); err != nil {
				log.Printf("dmzfs: poll failed: %v", err)
			}
		}
	}
}

// Poll drains every registered identity's pending requests once. Exposed
// separately from Serve so embedders and tests can drive the listener
// without a background goroutine.
func (l *Listener) Poll(ctx context.Context) error {
	for _, identity := range l.identities() {
		if err := l.pollIdentity(ctx, identity); err != nil {
			return err
		}
	}
	return nil
}

func (l *Listener) identities() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ret := make([]string, 0, len(l.handlers))
	for identity := range l.handlers {
		ret = append(ret, identity)
	}
	sort.Strings(ret)
	return ret
}

func (l *Listener) pollIdentity(ctx context.Context, identity string) error {
	requestsDir := requestsURL(l.baseURL, l.serverHost, identity)
	objects, err := l.fs.List(ctx, requestsDir)
	if err != nil {
		return fmt.Errorf("failed to list requests for %s: %w", identity, err)
	}
	var pending []storage.Object
	for _, object := range objects {
		if !object.IsDir() && strings.HasSuffix(object.Name(), ".json") {
			pending = append(pending, object)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].ModTime().Before(pending[j].ModTime())
	})
	for _, object := range pending {
		if err := l.handleEnvelope(ctx, identity, object); err != nil {
			return err
		}
	}
	return nil
}

func (l *Listener) handleEnvelope(ctx context.Context, identity string, object storage.Object) error {
	data, err := l.fs.DownloadWithURL(ctx, object.URL())
	if err != nil {
		return fmt.Errorf("failed to read request %s: %w", object.URL(), err)
	}
	// Claim the envelope before dispatching so a crashed handler cannot
	// replay a side-effecting request.
	if err := l.fs.Delete(ctx, object.URL()); err != nil {
		return fmt.Errorf("failed to claim request %s: %w", object.URL(), err)
	}
	var req protocol.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("failed to unmarshal request %s: %w", object.URL(), err)
	}

	l.mu.RLock()
	handler := l.handlers[identity]
	l.mu.RUnlock()
	if handler == nil {
		// Identity unregistered between listing and dispatch.
		return nil
	}

	result, err := handler.Handle(ctx, &req)
	if req.OneWay {
		return nil
	}
	resp := &protocol.Response{ID: req.ID, Result: result}
	if err != nil {
		resp.Error = err.Error()
		resp.Result = nil
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		resp = &protocol.Response{ID: req.ID, Error: fmt.Sprintf("unserialisable result: %v", err)}
		payload, _ = json.Marshal(resp)
	}
	target := url.Join(responsesURL(l.baseURL, l.serverHost, identity), envelopeName(req.ID))
	if err := l.fs.Upload(ctx, target, file.DefaultFileOsMode, bytes.NewReader(payload)); err != nil {
		return fmt.Errorf("failed to post response %s: %w", target, err)
	}
	return nil
}
