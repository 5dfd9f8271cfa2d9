package nodes

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/model"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/technitium"
)

// session is a cached login for one node
type session struct {
	token   string
	version string
}

// ClientFactory builds API clients for nodes. Nodes configured with a
// static API token use it directly; password-configured nodes get a
// session token via login, cached until the server invalidates it.
type ClientFactory struct {
	mu       sync.Mutex
	sessions map[int]session

	timeout       time.Duration
	skipTLSVerify bool
}

// NewClientFactory creates a factory with the given per-request timeout
func NewClientFactory(timeout time.Duration, skipTLSVerify bool) *ClientFactory {
	return &ClientFactory{
		sessions:      make(map[int]session),
		timeout:       timeout,
		skipTLSVerify: skipTLSVerify,
	}
}

// ClientFor returns an authenticated client for node, logging in when no
// usable token is available.
func (f *ClientFactory) ClientFor(ctx context.Context, node *model.Node) (*technitium.Client, error) {
	if node.APIToken != "" {
		return technitium.NewClient(node.BaseURL, node.APIToken, f.timeout, f.skipTLSVerify), nil
	}

	f.mu.Lock()
	cached, ok := f.sessions[node.ID]
	f.mu.Unlock()
	if ok {
		return technitium.NewClient(node.BaseURL, cached.token, f.timeout, f.skipTLSVerify), nil
	}

	return f.login(ctx, node)
}

func (f *ClientFactory) login(ctx context.Context, node *model.Node) (*technitium.Client, error) {
	if node.Username == "" {
		return nil, fmt.Errorf("node %q has neither an API token nor login credentials", node.Name)
	}

	client := technitium.NewClient(node.BaseURL, "", f.timeout, f.skipTLSVerify)
	resp, err := client.Login(ctx, node.Username, node.Password)
	if err != nil {
		return nil, fmt.Errorf("login to node %q failed: %w", node.Name, err)
	}

	f.mu.Lock()
	f.sessions[node.ID] = session{token: resp.Token, version: resp.Version}
	f.mu.Unlock()
	return client, nil
}

// Invalidate drops the cached session for a node
func (f *ClientFactory) Invalidate(nodeID int) {
	f.mu.Lock()
	delete(f.sessions, nodeID)
	f.mu.Unlock()
}

// Version returns the server version observed at the last login, if any
func (f *ClientFactory) Version(nodeID int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[nodeID].version
}

// Do runs fn with a client for node, retrying once with a fresh login
// when the cached session token has been invalidated server-side.
func (f *ClientFactory) Do(ctx context.Context, node *model.Node, fn func(*technitium.Client) error) error {
	client, err := f.ClientFor(ctx, node)
	if err != nil {
		return err
	}

	err = fn(client)
	if !errors.Is(err, technitium.ErrInvalidToken) {
		return err
	}

	// Static tokens cannot be refreshed by us.
	if node.APIToken != "" {
		return err
	}

	f.Invalidate(node.ID)
	client, err = f.login(ctx, node)
	if err != nil {
		return err
	}
	return fn(client)
}
