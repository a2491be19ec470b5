package config

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/netbirdio/codepush/client/internal/codepush"
)

const (
	defaultFetchTimeout = 10 * time.Second
	flightKey           = "configuration"
)

// Provider memoizes the host configuration for the lifetime of the process
type Provider struct {
	source       codepush.ConfigurationSource
	fetchTimeout time.Duration

	group singleflight.Group

	mu     sync.RWMutex
	cached *codepush.Configuration
	err    error
}

// NewProvider creates a Provider for source
func NewProvider(source codepush.ConfigurationSource) *Provider {
	return &Provider{
		source:       source,
		fetchTimeout: defaultFetchTimeout,
	}
}

// Get returns the configuration, querying the host only on the first successful call.
// Concurrent first callers share one host query. A host failure is remembered and
// returned to every later caller, except failures caused by the caller's context.
func (p *Provider) Get(ctx context.Context) (codepush.Configuration, error) {
	if cfg, ok, err := p.load(); ok {
		return cfg, err
	}

	ch := p.group.DoChan(flightKey, func() (interface{}, error) {
		if cfg, ok, err := p.load(); ok {
			return cfg, err
		}
		// the shared query must not die with the first caller
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.fetchTimeout)
		defer cancel()
		return p.fetch(fetchCtx)
	})

	select {
	case <-ctx.Done():
		return codepush.Configuration{}, fmt.Errorf("%w: %w", codepush.ErrConfigurationUnavailable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return codepush.Configuration{}, res.Err
		}
		return res.Val.(codepush.Configuration), nil
	}
}

func (p *Provider) load() (codepush.Configuration, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.err != nil {
		return codepush.Configuration{}, true, p.err
	}
	if p.cached != nil {
		return *p.cached, true, nil
	}
	return codepush.Configuration{}, false, nil
}

func (p *Provider) fetch(ctx context.Context) (codepush.Configuration, error) {
	cfg, err := p.source.GetConfiguration(ctx)
	if err == nil {
		err = validate(cfg)
	}

	if err != nil {
		wrapped := fmt.Errorf("%w: %w", codepush.ErrConfigurationUnavailable, err)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			log.Debugf("configuration query interrupted: %v", err)
			return codepush.Configuration{}, wrapped
		}

		log.Errorf("failed to get configuration from host: %v", err)
		p.mu.Lock()
		p.err = wrapped
		p.mu.Unlock()
		return codepush.Configuration{}, wrapped
	}

	p.mu.Lock()
	p.cached = &cfg
	p.mu.Unlock()

	log.Debugf("configuration loaded: app version %s, platform %s", cfg.AppVersion, cfg.Platform)
	return cfg, nil
}

func validate(cfg codepush.Configuration) error {
	if cfg.AppVersion == "" {
		return errors.New("missing app version")
	}
	if cfg.ServerURL == "" {
		return errors.New("missing server url")
	}
	return nil
}
