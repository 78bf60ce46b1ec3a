package downloads

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/assetdeck/assetdeck-backend/pkg/config"
	"github.com/assetdeck/assetdeck-backend/pkg/db/models"
	pkgerrors "github.com/assetdeck/assetdeck-backend/pkg/errors"
	"github.com/assetdeck/assetdeck-backend/pkg/redis"
)

type downloadConsumer interface {
	ConsumeDownload(ctx context.Context, licenseID uuid.UUID) error
}

type productLoader interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// Grant is a short-lived, single-use download authorization.
type Grant struct {
	URL       string
	Token     string
	ExpiresIn time.Duration
}

// Redemption is the outcome of cashing a grant in: the file the client
// should fetch next.
type Redemption struct {
	FileURL   string
	ProductID uuid.UUID
	UserID    uuid.UUID
}

// Service mints and redeems download tokens. Issue burns a download slot for
// paid products before signing; Redeem enforces single use via Redis. The
// issuer trusts that entitlement was checked by the caller.
type Service interface {
	Issue(ctx context.Context, userID uuid.UUID, product *models.Product, license *models.License) (*Grant, error)
	Redeem(ctx context.Context, token string) (*Redemption, error)
}

type service struct {
	consumer downloadConsumer
	catalog  productLoader
	tokens   redis.TokenStore
	secret   string
	ttl      time.Duration
	baseURL  string
	now      func() time.Time
}

// NewService builds the download issuer.
func NewService(consumer downloadConsumer, catalog productLoader, tokens redis.TokenStore, cfg config.DownloadsConfig, baseURL string) (Service, error) {
	if consumer == nil {
		return nil, fmt.Errorf("download consumer required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog loader required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token store required")
	}
	if cfg.TokenSecret == "" {
		return nil, fmt.Errorf("download token secret required")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &service{
		consumer: consumer,
		catalog:  catalog,
		tokens:   tokens,
		secret:   cfg.TokenSecret,
		ttl:      ttl,
		baseURL:  strings.TrimRight(baseURL, "/"),
		now:      time.Now,
	}, nil
}

// Issue mints a signed grant for one download. For paid products a download
// slot is consumed first, so a failed mint never leaks quota and a spent
// quota never mints.
func (s *service) Issue(ctx context.Context, userID uuid.UUID, product *models.Product, license *models.License) (*Grant, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is required")
	}
	if len(product.FileManifest) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product has no downloadable files")
	}

	claims := TokenClaims{
		UserID:    userID,
		ProductID: product.ID,
	}

	if !product.Freebie {
		if license == nil {
			return nil, pkgerrors.New(pkgerrors.CodePaymentRequired, "license required")
		}
		if err := s.consumer.ConsumeDownload(ctx, license.ID); err != nil {
			return nil, err
		}
		licenseID := license.ID
		claims.LicenseID = &licenseID
	}

	token, err := mintToken(s.secret, s.now(), s.ttl, claims)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint download token")
	}

	return &Grant{
		URL:       fmt.Sprintf("%s/api/v1/download/file?token=%s", s.baseURL, url.QueryEscape(token)),
		Token:     token,
		ExpiresIn: s.ttl,
	}, nil
}

// Redeem validates the token and marks its jti used. The SetNX mark means a
// replayed token loses even when two redeems race.
func (s *service) Redeem(ctx context.Context, token string) (*Redemption, error) {
	if strings.TrimSpace(token) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "download token is required")
	}

	claims, err := parseToken(s.secret, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "invalid download token")
	}

	ttl := s.ttl
	if claims.ExpiresAt != nil {
		if remaining := time.Until(claims.ExpiresAt.Time); remaining > 0 {
			ttl = remaining
		}
	}

	fresh, err := s.tokens.SetNX(ctx, s.tokens.DownloadTokenKey(claims.ID), "used", ttl)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark download token")
	}
	if !fresh {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "download token already used")
	}

	product, err := s.catalog.GetProduct(ctx, claims.ProductID)
	if err != nil {
		return nil, err
	}
	if len(product.FileManifest) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product has no downloadable files")
	}

	return &Redemption{
		FileURL:   product.FileManifest[0],
		ProductID: claims.ProductID,
		UserID:    claims.UserID,
	}, nil
}
