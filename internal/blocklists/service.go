package blocklists

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/nodes"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/technitium"
)

// Scope selects the allowed or the blocked list
type Scope string

const (
	ScopeAllowed Scope = "allowed"
	ScopeBlocked Scope = "blocked"
)

// ParseScope validates a caller-supplied scope string
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(s)) {
	case ScopeAllowed:
		return ScopeAllowed, nil
	case ScopeBlocked:
		return ScopeBlocked, nil
	default:
		return "", fmt.Errorf("invalid scope %q: must be allowed or blocked", s)
	}
}

// Entry is one list entry with the nodes carrying it
type Entry struct {
	Domain string   `json:"domain"`
	Nodes  []string `json:"nodes"`
}

// ListResult is the merged allow/block list view
type ListResult struct {
	Scope    Scope    `json:"scope"`
	Entries  []Entry  `json:"entries"`
	Warnings []string `json:"warnings,omitempty"`
}

// NodeOutcome is one node's result for a mutation fan-out
type NodeOutcome struct {
	NodeID   int    `json:"nodeId"`
	NodeName string `json:"nodeName"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
}

// Service aggregates and mutates the allow/block lists cluster-wide
type Service struct {
	factory *nodes.ClientFactory
	logger  *logrus.Entry
	workers int
}

// NewService creates the blocklist service
func NewService(factory *nodes.ClientFactory, logger *logrus.Entry) *Service {
	return &Service{factory: factory, logger: logger, workers: 4}
}

// List merges one list across all enabled nodes. domain narrows the
// listing to a subtree; empty lists the root.
func (s *Service) List(ctx context.Context, scope Scope, domain string) (*ListResult, error) {
	enabled, err := nodes.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	byDomain := make(map[string][]string)
	var warnings []string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, node := range enabled {
		node := node
		g.Go(func() error {
			var zones []technitium.Zone
			err := s.factory.Do(gctx, &node, func(c *technitium.Client) error {
				var ferr error
				if scope == ScopeAllowed {
					zones, ferr = c.ListAllowedZones(gctx, domain)
				} else {
					zones, ferr = c.ListBlockedZones(gctx, domain)
				}
				return ferr
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("node %s: %v", node.Name, err))
				return nil
			}
			for _, z := range zones {
				byDomain[z.Name] = append(byDomain[z.Name], node.Name)
			}
			return nil
		})
	}
	g.Wait()

	result := &ListResult{Scope: scope, Entries: []Entry{}}
	for d, names := range byDomain {
		sort.Strings(names)
		result.Entries = append(result.Entries, Entry{Domain: d, Nodes: names})
	}
	sort.Slice(result.Entries, func(i, j int) bool { return result.Entries[i].Domain < result.Entries[j].Domain })
	sort.Strings(warnings)
	result.Warnings = warnings
	return result, nil
}

// Add puts domain on the chosen list of every enabled node
func (s *Service) Add(ctx context.Context, scope Scope, domain string) ([]NodeOutcome, error) {
	return s.mutate(ctx, domain, func(ctx context.Context, c *technitium.Client) error {
		if scope == ScopeAllowed {
			return c.AddAllowedZone(ctx, domain)
		}
		return c.AddBlockedZone(ctx, domain)
	})
}

// Remove takes domain off the chosen list of every enabled node
func (s *Service) Remove(ctx context.Context, scope Scope, domain string) ([]NodeOutcome, error) {
	return s.mutate(ctx, domain, func(ctx context.Context, c *technitium.Client) error {
		if scope == ScopeAllowed {
			return c.DeleteAllowedZone(ctx, domain)
		}
		return c.DeleteBlockedZone(ctx, domain)
	})
}

// mutate fans the mutation out to every enabled node and reports the
// per-node outcome; one node failing never stops the rest.
func (s *Service) mutate(ctx context.Context, domain string, fn func(context.Context, *technitium.Client) error) ([]NodeOutcome, error) {
	if strings.TrimSpace(domain) == "" {
		return nil, fmt.Errorf("domain is required")
	}
	enabled, err := nodes.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}

	outcomes := make([]NodeOutcome, len(enabled))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, node := range enabled {
		i, node := i, node
		g.Go(func() error {
			outcome := NodeOutcome{NodeID: node.ID, NodeName: node.Name, OK: true}
			err := s.factory.Do(gctx, &node, func(c *technitium.Client) error {
				return fn(gctx, c)
			})
			if err != nil {
				outcome.OK = false
				outcome.Error = err.Error()
			}
			outcomes[i] = outcome
			return nil
		})
	}
	g.Wait()
	return outcomes, nil
}
