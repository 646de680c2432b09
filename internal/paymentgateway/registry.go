package paymentgateway

import (
	"log/slog"
	"sort"

	"github.com/frahmantamala/payment-gateway/internal"
	"github.com/frahmantamala/payment-gateway/internal/storage"
)

// Registry resolves gateway adapters by name. Adapters are constructed once
// at startup from configuration; an adapter whose config is absent or
// disabled is not registered, so resolution failure is the single signal
// for "no such gateway".
type Registry struct {
	gateways map[string]Gateway
	logger   *slog.Logger
}

func NewRegistry(cfg internal.PaymentConfig, baseURL string, repo Repository, store storage.ProofStorage, logger *slog.Logger) *Registry {
	urls := URLBuilder{
		BaseURL:     baseURL,
		SuccessPath: cfg.SuccessPath,
		FailedPath:  cfg.FailedPath,
	}

	r := &Registry{
		gateways: make(map[string]Gateway),
		logger:   logger,
	}

	register := func(name string, build func(internal.GatewayConfig) Gateway) {
		gc := cfg.GatewayFor(name)
		if !gc.Enabled {
			return
		}
		r.gateways[name] = build(gc)
		logger.Info("payment gateway registered", "gateway", name, "sandbox", gc.Sandbox)
	}

	register("toyyibpay", func(gc internal.GatewayConfig) Gateway {
		return NewToyyibpayGateway(gc, repo, urls, cfg.Currency, cfg.ProviderTimeout, logger)
	})
	register("chipin", func(gc internal.GatewayConfig) Gateway {
		return NewChipInGateway(gc, repo, urls, cfg.Currency, cfg.ProviderTimeout, logger)
	})
	register("manual", func(gc internal.GatewayConfig) Gateway {
		return NewManualGateway(gc, repo, urls, cfg.Currency, store, logger)
	})
	register("paypal", func(gc internal.GatewayConfig) Gateway {
		return NewPayPalGateway(gc, repo, urls, cfg.Currency, cfg.ProviderTimeout, logger)
	})
	register("stripe", func(gc internal.GatewayConfig) Gateway {
		return NewStripeGateway(gc, repo, urls, cfg.Currency, cfg.ProviderTimeout, logger)
	})

	return r
}

// Get returns the adapter registered under name. Unknown and disabled
// gateways are indistinguishable to callers.
func (r *Registry) Get(name string) (Gateway, error) {
	g, ok := r.gateways[name]
	if !ok {
		return nil, internal.NewGatewayNotFoundError(name)
	}
	return g, nil
}

func (r *Registry) Has(name string) bool {
	_, ok := r.gateways[name]
	return ok
}

// Available lists registered gateway names in stable order.
func (r *Registry) Available() []string {
	names := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
