package storage

import (
	"fmt"

	mediaapp "github.com/backoffice/saas/internal/application/media"
	infraconfig "github.com/backoffice/saas/internal/infrastructure/config"
	"go.uber.org/zap"
)

// New builds the backend selected by cfg.Driver. The signer is returned
// for the local driver only, so the file handler can verify tokens.
func New(cfg infraconfig.StorageConfig, logger *zap.Logger) (mediaapp.ObjectStorage, *URLSigner, error) {
	switch cfg.Driver {
	case "", "local":
		signer, err := NewURLSigner(cfg.SigningSecret, cfg.PublicBaseURL)
		if err != nil {
			return nil, nil, err
		}
		s, err := NewLocalObjectStorage(cfg.LocalRoot, signer, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, signer, nil
	case "s3":
		s, err := NewS3ObjectStorage(&cfg.S3, WithLogger(logger), WithPresignExpiration(cfg.URLTTL))
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}
