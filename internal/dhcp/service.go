package dhcp

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/model"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/nodes"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/technitium"
)

// ScopeRow is one DHCP scope tagged with the node serving it
type ScopeRow struct {
	NodeID   int    `json:"nodeId"`
	NodeName string `json:"nodeName"`
	technitium.DHCPScope
}

// LeaseRow is one DHCP lease tagged with the node holding it
type LeaseRow struct {
	NodeID   int    `json:"nodeId"`
	NodeName string `json:"nodeName"`
	technitium.DHCPLease
}

// ScopesResult is the merged DHCP scope view
type ScopesResult struct {
	Scopes   []ScopeRow `json:"scopes"`
	Warnings []string   `json:"warnings,omitempty"`
}

// LeasesResult is the merged DHCP lease view
type LeasesResult struct {
	Leases   []LeaseRow `json:"leases"`
	Warnings []string   `json:"warnings,omitempty"`
}

// Service aggregates DHCP state across all enabled nodes
type Service struct {
	factory *nodes.ClientFactory
	logger  *logrus.Entry
	workers int
}

// NewService creates the DHCP aggregation service
func NewService(factory *nodes.ClientFactory, logger *logrus.Entry) *Service {
	return &Service{factory: factory, logger: logger, workers: 4}
}

// Scopes lists every enabled node's DHCP scopes. Unreachable nodes
// degrade to warnings.
func (s *Service) Scopes(ctx context.Context) (*ScopesResult, error) {
	result := &ScopesResult{Scopes: []ScopeRow{}}
	warnings, err := s.fanOut(ctx, func(ctx context.Context, node model.Node, c *technitium.Client, mu *sync.Mutex) error {
		scopes, err := c.ListDHCPScopes(ctx)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		for _, scope := range scopes {
			result.Scopes = append(result.Scopes, ScopeRow{NodeID: node.ID, NodeName: node.Name, DHCPScope: scope})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Warnings = warnings
	sort.Slice(result.Scopes, func(i, j int) bool {
		if result.Scopes[i].Name != result.Scopes[j].Name {
			return result.Scopes[i].Name < result.Scopes[j].Name
		}
		return result.Scopes[i].NodeID < result.Scopes[j].NodeID
	})
	return result, nil
}

// Leases lists every enabled node's DHCP leases
func (s *Service) Leases(ctx context.Context) (*LeasesResult, error) {
	result := &LeasesResult{Leases: []LeaseRow{}}
	warnings, err := s.fanOut(ctx, func(ctx context.Context, node model.Node, c *technitium.Client, mu *sync.Mutex) error {
		leases, err := c.ListDHCPLeases(ctx)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		for _, lease := range leases {
			result.Leases = append(result.Leases, LeaseRow{NodeID: node.ID, NodeName: node.Name, DHCPLease: lease})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Warnings = warnings
	sort.Slice(result.Leases, func(i, j int) bool {
		if result.Leases[i].Address != result.Leases[j].Address {
			return result.Leases[i].Address < result.Leases[j].Address
		}
		return result.Leases[i].NodeID < result.Leases[j].NodeID
	})
	return result, nil
}

// fanOut runs fn once per enabled node with bounded concurrency,
// collecting per-node failures as warnings.
func (s *Service) fanOut(ctx context.Context, fn func(context.Context, model.Node, *technitium.Client, *sync.Mutex) error) ([]string, error) {
	enabled, err := nodes.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	var warnings []string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, node := range enabled {
		node := node
		g.Go(func() error {
			err := s.factory.Do(gctx, &node, func(c *technitium.Client) error {
				return fn(gctx, node, c, &mu)
			})
			if err != nil {
				mu.Lock()
				warnings = append(warnings, fmt.Sprintf("node %s: %v", node.Name, err))
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()

	sort.Strings(warnings)
	return warnings, nil
}
