package acme

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-acme/lego/v4/challenge/dns01"
	"github.com/sirupsen/logrus"

	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/technitium"
)

const challengeTTL = 60

// nodeDNSProvider satisfies the DNS-01 challenge by writing the
// validation TXT record into a zone hosted on a managed DNS node.
type nodeDNSProvider struct {
	ctx    context.Context
	client *technitium.Client
	logger *logrus.Entry
}

// Present writes the challenge TXT record
func (p *nodeDNSProvider) Present(domain, token, keyAuth string) error {
	info := dns01.GetChallengeInfo(domain, keyAuth)
	owner := strings.TrimSuffix(info.EffectiveFQDN, ".")

	zone, err := p.findZone(owner)
	if err != nil {
		return err
	}
	p.logger.WithFields(logrus.Fields{"owner": owner, "zone": zone}).Info("Publishing DNS-01 challenge record")
	return p.client.AddRecord(p.ctx, technitium.RecordValues{
		Domain: owner,
		Zone:   zone,
		Type:   "TXT",
		TTL:    challengeTTL,
		Text:   info.Value,
	})
}

// CleanUp removes the challenge TXT record; a failed cleanup only logs
func (p *nodeDNSProvider) CleanUp(domain, token, keyAuth string) error {
	info := dns01.GetChallengeInfo(domain, keyAuth)
	owner := strings.TrimSuffix(info.EffectiveFQDN, ".")

	zone, err := p.findZone(owner)
	if err != nil {
		return err
	}
	err = p.client.DeleteRecord(p.ctx, technitium.RecordValues{
		Domain: owner,
		Zone:   zone,
		Type:   "TXT",
		Text:   info.Value,
	})
	if err != nil {
		p.logger.WithError(err).Warn("Failed to clean up challenge record")
	}
	return nil
}

// findZone picks the longest hosted zone enclosing the owner name
func (p *nodeDNSProvider) findZone(owner string) (string, error) {
	zones, err := p.client.ListZones(p.ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list zones: %w", err)
	}

	best := ""
	lowered := strings.ToLower(owner)
	for _, z := range zones {
		if z.Internal || (z.Type != "Primary" && z.Type != "Forwarder") {
			continue
		}
		name := strings.ToLower(z.Name)
		if lowered != name && !strings.HasSuffix(lowered, "."+name) {
			continue
		}
		if len(name) > len(best) {
			best = z.Name
		}
	}
	if best == "" {
		return "", fmt.Errorf("no hosted zone on this node encloses %s", owner)
	}
	return best, nil
}
