package querylog

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/cache"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/model"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/nodes"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/technitium"
)

// Request selects a page of query logs from one node
type Request struct {
	PageNumber      int    `form:"page"`
	EntriesPerPage  int    `form:"pageSize"`
	Start           string `form:"start"`
	End             string `form:"end"`
	ClientIPAddress string `form:"clientIp"`
	QName           string `form:"qname"`
	QType           string `form:"qtype"`
	ResponseType    string `form:"responseType"`
	RCode           string `form:"rcode"`
}

// Count is one aggregated tally
type Count struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Stats aggregates a sample of recent queries
type Stats struct {
	Sampled       int     `json:"sampled"`
	TopDomains    []Count `json:"topDomains"`
	TopClients    []Count `json:"topClients"`
	ResponseTypes []Count `json:"responseTypes"`
	RCodes        []Count `json:"rcodes"`
}

// Service reads query logs from a node's query-logs app, with a short
// redis cache in front so dashboard refreshes do not hammer the node.
type Service struct {
	factory  *nodes.ClientFactory
	logger   *logrus.Entry
	cacheTTL time.Duration
	pageSize int
}

// NewService creates the query log service
func NewService(factory *nodes.ClientFactory, logger *logrus.Entry, cacheTTL time.Duration, pageSize int) *Service {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Service{factory: factory, logger: logger, cacheTTL: cacheTTL, pageSize: pageSize}
}

// Query returns one page of logs for a node
func (s *Service) Query(ctx context.Context, node *model.Node, req Request) (*technitium.QueryLogPage, error) {
	if req.PageNumber < 1 {
		req.PageNumber = 1
	}
	if req.EntriesPerPage <= 0 {
		req.EntriesPerPage = s.pageSize
	}

	key := cacheKey(node.ID, req)
	if page, ok := s.cachedPage(ctx, key); ok {
		return page, nil
	}

	page, err := s.fetch(ctx, node, req)
	if err != nil {
		return nil, err
	}
	s.storePage(ctx, key, page)
	return page, nil
}

// Stats samples the most recent queries of a node and aggregates them
func (s *Service) Stats(ctx context.Context, node *model.Node, sampleSize int) (*Stats, error) {
	if sampleSize <= 0 || sampleSize > 1000 {
		sampleSize = 500
	}
	page, err := s.Query(ctx, node, Request{PageNumber: 1, EntriesPerPage: sampleSize})
	if err != nil {
		return nil, err
	}
	return aggregateStats(page.Entries), nil
}

func (s *Service) fetch(ctx context.Context, node *model.Node, req Request) (*technitium.QueryLogPage, error) {
	var page *technitium.QueryLogPage
	err := s.factory.Do(ctx, node, func(c *technitium.Client) error {
		appName, classPath, err := findQueryLogsApp(ctx, c)
		if err != nil {
			return err
		}
		page, err = c.QueryLogs(ctx, technitium.QueryLogsRequest{
			AppName:         appName,
			ClassPath:       classPath,
			PageNumber:      req.PageNumber,
			EntriesPerPage:  req.EntriesPerPage,
			DescendingOrder: true,
			Start:           req.Start,
			End:             req.End,
			ClientIPAddress: req.ClientIPAddress,
			QName:           req.QName,
			QType:           req.QType,
			ResponseType:    req.ResponseType,
			RCode:           req.RCode,
		})
		return err
	})
	return page, err
}

// findQueryLogsApp locates the installed query-logs app. Technitium
// ships it as "Query Logs (Sqlite)" but any app exposing a QueryLogs
// class is accepted.
func findQueryLogsApp(ctx context.Context, c *technitium.Client) (string, string, error) {
	apps, err := c.ListApps(ctx)
	if err != nil {
		return "", "", err
	}
	for _, app := range apps {
		for _, dnsApp := range app.DNSApps {
			if strings.Contains(dnsApp.ClassPath, "QueryLogs") {
				return app.Name, dnsApp.ClassPath, nil
			}
		}
	}
	return "", "", fmt.Errorf("no query logs app installed on this node")
}

func cacheKey(nodeID int, req Request) string {
	return fmt.Sprintf("querylog:%d:%d:%d:%s:%s:%s:%s:%s:%s:%s",
		nodeID, req.PageNumber, req.EntriesPerPage,
		req.Start, req.End, req.ClientIPAddress,
		req.QName, req.QType, req.ResponseType, req.RCode)
}

// cachedPage reads a cached page; any redis trouble is a cache miss
func (s *Service) cachedPage(ctx context.Context, key string) (*technitium.QueryLogPage, bool) {
	if cache.Client == nil {
		return nil, false
	}
	data, err := cache.Client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var page technitium.QueryLogPage
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, false
	}
	return &page, true
}

func (s *Service) storePage(ctx context.Context, key string, page *technitium.QueryLogPage) {
	if cache.Client == nil || s.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(page)
	if err != nil {
		return
	}
	if err := cache.Client.Set(ctx, key, data, s.cacheTTL).Err(); err != nil {
		s.logger.WithError(err).Debug("Failed to cache query log page")
	}
}

// aggregateStats tallies a log sample into top-N views
func aggregateStats(entries []technitium.QueryLogEntry) *Stats {
	domains := make(map[string]int)
	clients := make(map[string]int)
	responseTypes := make(map[string]int)
	rcodes := make(map[string]int)
	for _, e := range entries {
		domains[strings.ToLower(e.QName)]++
		clients[e.ClientIPAddress]++
		responseTypes[e.ResponseType]++
		rcodes[e.RCode]++
	}
	return &Stats{
		Sampled:       len(entries),
		TopDomains:    topCounts(domains, 10),
		TopClients:    topCounts(clients, 10),
		ResponseTypes: topCounts(responseTypes, 0),
		RCodes:        topCounts(rcodes, 0),
	}
}

// topCounts orders a tally map by count descending, value ascending on
// ties; limit 0 keeps everything.
func topCounts(m map[string]int, limit int) []Count {
	out := make([]Count, 0, len(m))
	for v, n := range m {
		out = append(out, Count{Value: v, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
