package zones

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/model"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/nodes"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/technitium"
)

// NodePresence is one node's copy of a zone
type NodePresence struct {
	NodeID    int    `json:"nodeId"`
	NodeName  string `json:"nodeName"`
	Type      string `json:"type"`
	Disabled  bool   `json:"disabled"`
	SOASerial uint32 `json:"soaSerial,omitempty"`
}

// OverviewRow is one zone merged across the cluster
type OverviewRow struct {
	ZoneName string         `json:"zoneName"`
	Nodes    []NodePresence `json:"nodes"`
	// Drift flags a zone that is missing on some reachable node or
	// whose SOA serials disagree.
	Drift bool `json:"drift"`
}

// Overview is the aggregated zone view
type Overview struct {
	Zones    []OverviewRow `json:"zones"`
	Warnings []string      `json:"warnings,omitempty"`
}

// Service merges zone lists across all enabled nodes
type Service struct {
	factory *nodes.ClientFactory
	logger  *logrus.Entry
	workers int
}

// NewService creates the aggregated zone view service
func NewService(factory *nodes.ClientFactory, logger *logrus.Entry) *Service {
	return &Service{factory: factory, logger: logger, workers: 4}
}

// nodeZoneList is one node's fetched zone list
type nodeZoneList struct {
	node  model.Node
	zones []technitium.Zone
}

// Overview fetches every enabled node's zone list concurrently and
// merges them by zone name. An unreachable node degrades to a warning
// row, not a failure.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	enabled, err := nodes.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	var fetched []nodeZoneList
	var warnings []string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, node := range enabled {
		node := node
		g.Go(func() error {
			var zones []technitium.Zone
			err := s.factory.Do(gctx, &node, func(c *technitium.Client) error {
				var ferr error
				zones, ferr = c.ListZones(gctx)
				return ferr
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("node %s: %v", node.Name, err))
				return nil
			}
			fetched = append(fetched, nodeZoneList{node: node, zones: zones})
			return nil
		})
	}
	g.Wait()

	sort.Strings(warnings)
	return &Overview{
		Zones:    mergeZones(fetched),
		Warnings: warnings,
	}, nil
}

// mergeZones folds per-node zone lists into one row per zone name.
// Internal zones are dropped; drift is judged only against nodes that
// actually answered.
func mergeZones(fetched []nodeZoneList) []OverviewRow {
	byName := make(map[string]*OverviewRow)
	for _, f := range fetched {
		for _, z := range f.zones {
			if z.Internal {
				continue
			}
			key := strings.ToLower(z.Name)
			row, ok := byName[key]
			if !ok {
				row = &OverviewRow{ZoneName: z.Name}
				byName[key] = row
			}
			row.Nodes = append(row.Nodes, NodePresence{
				NodeID:    f.node.ID,
				NodeName:  f.node.Name,
				Type:      z.Type,
				Disabled:  z.Disabled,
				SOASerial: z.SOASerial,
			})
		}
	}

	rows := make([]OverviewRow, 0, len(byName))
	for _, row := range byName {
		sort.Slice(row.Nodes, func(i, j int) bool { return row.Nodes[i].NodeID < row.Nodes[j].NodeID })
		row.Drift = len(row.Nodes) < len(fetched) || serialsDisagree(row.Nodes)
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ZoneName < rows[j].ZoneName })
	return rows
}

func serialsDisagree(presences []NodePresence) bool {
	var first uint32
	seen := false
	for _, p := range presences {
		if p.SOASerial == 0 {
			continue
		}
		if !seen {
			first = p.SOASerial
			seen = true
			continue
		}
		if p.SOASerial != first {
			return true
		}
	}
	return false
}
