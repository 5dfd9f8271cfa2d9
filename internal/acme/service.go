package acme

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/go-acme/lego/v4/certcrypto"
	"github.com/go-acme/lego/v4/certificate"
	"github.com/go-acme/lego/v4/challenge/dns01"
	"github.com/go-acme/lego/v4/lego"
	"github.com/go-acme/lego/v4/registration"
	"github.com/sirupsen/logrus"

	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/technitium"
)

// Result carries the PEMs of an obtained certificate. Nothing is
// persisted server-side; the caller stores the material.
type Result struct {
	Domains  []string `json:"domains"`
	CertPEM  string   `json:"certPem"`
	KeyPEM   string   `json:"keyPem"`
	ChainPEM string   `json:"chainPem,omitempty"`
}

// Service obtains certificates over ACME, answering DNS-01 challenges
// through a managed DNS node.
type Service struct {
	directoryURL string
	email        string
	logger       *logrus.Entry
}

// NewService creates the ACME service
func NewService(directoryURL, email string, logger *logrus.Entry) *Service {
	return &Service{directoryURL: directoryURL, email: email, logger: logger}
}

// user is the single-use ACME account for one obtain run
type user struct {
	email        string
	registration *registration.Resource
	key          *ecdsa.PrivateKey
}

func (u *user) GetEmail() string                        { return u.email }
func (u *user) GetRegistration() *registration.Resource { return u.registration }
func (u *user) GetPrivateKey() crypto.PrivateKey        { return u.key }

// Obtain requests a certificate for domains, publishing the DNS-01
// challenge records on the given node. The account is ephemeral; ACME
// CAs allow this and it keeps the companion stateless.
func (s *Service) Obtain(ctx context.Context, client *technitium.Client, domains []string) (*Result, error) {
	if s.email == "" {
		return nil, fmt.Errorf("ACME contact email is not configured")
	}
	if len(domains) == 0 {
		return nil, fmt.Errorf("at least one domain is required")
	}

	accountKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate account key: %w", err)
	}
	acct := &user{email: s.email, key: accountKey}

	config := lego.NewConfig(acct)
	config.CADirURL = s.directoryURL
	config.Certificate.KeyType = certcrypto.EC256

	legoClient, err := lego.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create ACME client: %w", err)
	}

	provider := &nodeDNSProvider{ctx: ctx, client: client, logger: s.logger}
	err = legoClient.Challenge.SetDNS01Provider(provider,
		dns01.AddRecursiveNameservers([]string{"8.8.8.8:53", "1.1.1.1:53"}),
		dns01.WrapPreCheck(func(domain, fqdn, value string, check dns01.PreCheckFunc) (bool, error) {
			// Give the node's zone a moment to serve the new record.
			time.Sleep(10 * time.Second)
			return check(fqdn, value)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set DNS provider: %w", err)
	}

	reg, err := legoClient.Registration.Register(registration.RegisterOptions{TermsOfServiceAgreed: true})
	if err != nil {
		return nil, fmt.Errorf("failed to register ACME account: %w", err)
	}
	acct.registration = reg

	certs, err := legoClient.Certificate.Obtain(certificate.ObtainRequest{
		Domains: domains,
		Bundle:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to obtain certificate: %w", err)
	}

	s.logger.WithField("domains", domains).Info("Obtained certificate")
	return &Result{
		Domains:  domains,
		CertPEM:  string(certs.Certificate),
		KeyPEM:   string(certs.PrivateKey),
		ChainPEM: string(certs.IssuerCertificate),
	}, nil
}
