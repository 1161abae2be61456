package tls

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/spiffe/go-spiffe/v2/spiffetls/tlsconfig"
	"github.com/spiffe/go-spiffe/v2/workloadapi"
	"go.uber.org/zap"
)

// Source holds the SPIRE X509 source backing a server's mTLS config.
type Source struct {
	x509   *workloadapi.X509Source
	logger *zap.Logger
}

// Load returns a nil config and a nil Source when mTLS is disabled.
func Load(ctx context.Context, enabled bool, socketPath string, logger *zap.Logger) (*tls.Config, *Source, error) {
	if !enabled {
		logger.Info("TLS is disabled")
		return nil, nil, nil
	}

	// SPIRE Workload API를 통해 X509 소스 생성
	x509, err := workloadapi.NewX509Source(
		ctx,
		workloadapi.WithClientOptions(
			workloadapi.WithAddr(socketPath),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to create X509Source: %w", err)
	}

	cfg := tlsconfig.MTLSServerConfig(x509, x509, tlsconfig.AuthorizeAny())
	cfg.MinVersion = tls.VersionTLS12

	logger.Info("SPIRE TLS configuration loaded",
		zap.String("socket_path", socketPath),
		zap.Bool("mtls_enabled", true))

	return cfg, &Source{x509: x509, logger: logger}, nil
}

// Watch logs SVID expiry until ctx is done. SPIRE rotates certificates itself.
func (s *Source) Watch(ctx context.Context, every time.Duration) {
	if s == nil {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svid, err := s.x509.GetX509SVID()
			if err != nil {
				s.logger.Error("Failed to get X509 SVID", zap.Error(err))
				continue
			}
			s.logger.Debug("Certificate status",
				zap.String("spiffe_id", svid.ID.String()),
				zap.Time("expiry", svid.Certificates[0].NotAfter),
				zap.Duration("ttl", time.Until(svid.Certificates[0].NotAfter)))
		}
	}
}

func (s *Source) Close() {
	if s != nil && s.x509 != nil {
		_ = s.x509.Close()
	}
}
