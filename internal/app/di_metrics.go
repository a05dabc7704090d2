package app

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/allisson/handoff/internal/metrics"
)

// MetricsProvider returns the OpenTelemetry metrics provider.
// Returns nil when metrics collection is disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	var err error
	c.metricsProviderInit.Do(func() {
		c.metricsProvider, err = c.initMetricsProvider()
		if err != nil {
			c.initErrors["metricsProvider"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the business metrics recorder. Falls back to a
// no-op recorder when metrics collection is disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	var err error
	c.businessMetricsInit.Do(func() {
		c.businessMetrics, err = c.initBusinessMetrics()
		if err != nil {
			c.initErrors["businessMetrics"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["businessMetrics"]; exists {
		return nil, storedErr
	}
	return c.businessMetrics, nil
}

// HTTPMetricsMiddleware returns the Gin middleware recording HTTP metrics.
// Returns nil when metrics collection is disabled.
func (c *Container) HTTPMetricsMiddleware() (gin.HandlerFunc, error) {
	var err error
	c.httpMetricsMiddlewareInit.Do(func() {
		c.httpMetricsMiddleware, err = c.initHTTPMetricsMiddleware()
		if err != nil {
			c.initErrors["httpMetricsMiddleware"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["httpMetricsMiddleware"]; exists {
		return nil, storedErr
	}
	return c.httpMetricsMiddleware, nil
}

// initMetricsProvider creates the metrics provider when metrics are enabled.
func (c *Container) initMetricsProvider() (*metrics.Provider, error) {
	if !c.config.MetricsEnabled {
		return nil, nil
	}

	provider, err := metrics.NewProvider(c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics provider: %w", err)
	}
	return provider, nil
}

// initBusinessMetrics creates the business metrics recorder.
func (c *Container) initBusinessMetrics() (metrics.BusinessMetrics, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for business metrics: %w", err)
	}
	if provider == nil {
		return metrics.NewNoOpBusinessMetrics(), nil
	}

	businessMetrics, err := metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}
	return businessMetrics, nil
}

// initHTTPMetricsMiddleware creates the HTTP metrics middleware.
func (c *Container) initHTTPMetricsMiddleware() (gin.HandlerFunc, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for http middleware: %w", err)
	}
	if provider == nil {
		return nil, nil
	}

	return metrics.HTTPMetricsMiddleware(provider.MeterProvider(), c.config.MetricsNamespace), nil
}
