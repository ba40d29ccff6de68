package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/greenbasket/backoffice/internal/catalog/domain"
	"github.com/greenbasket/backoffice/internal/clock"
	stockdomain "github.com/greenbasket/backoffice/internal/stock/domain"
	pkgdb "github.com/greenbasket/backoffice/pkg/db"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
	Stock stockdomain.Service
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
	stock stockdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("catalog.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
		stock: p.Stock,
	}
}

// Create inserts the product and opens its stock record so checkout can
// reserve against it immediately. Both writes share one transaction; a
// rejected stock record never leaves an orphan product behind.
func (s *Service) Create(ctx context.Context, req domain.CreateProductRequest) (*domain.ProductResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if req.Price.IsNegative() {
		return nil, domain.ErrInvalidPrice
	}
	if req.InitialQuantity < 0 {
		return nil, stockdomain.ErrInvalidQuantity
	}

	now := s.clock.Now()
	product := &domain.Product{
		ID:          s.genID.Generate(),
		Code:        slug.Make(name),
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Price:       req.Price.Round(2),
		Active:      true,
		Metadata:    datatypes.JSONMap(req.Metadata),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Create(ctx, tx, product); err != nil {
			return err
		}
		_, err := s.stock.CreateRecordTx(ctx, tx, stockdomain.CreateRecordRequest{
			ProductID:       product.ID,
			InitialQuantity: req.InitialQuantity,
			MaxCapacity:     req.MaxCapacity,
			Location:        req.Location,
			Actor:           req.Actor,
		})
		return err
	})
	if err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return nil, domain.ErrProductExists
		}
		return nil, err
	}

	s.log.Info("product created",
		zap.String("product_id", product.ID.String()),
		zap.String("code", product.Code),
	)

	resp := toProductResponse(product)
	return &resp, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.ProductResponse, error) {
	product, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrProductNotFound
	}
	resp := toProductResponse(product)
	return &resp, nil
}

func (s *Service) Lookup(ctx context.Context, code string) (*domain.ProductResponse, error) {
	product, err := s.repo.FindByCode(ctx, s.db, strings.TrimSpace(code))
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrProductNotFound
	}
	resp := toProductResponse(product)
	return &resp, nil
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]domain.ProductResponse, error) {
	products, err := s.repo.List(ctx, s.db, activeOnly)
	if err != nil {
		return nil, err
	}
	resp := make([]domain.ProductResponse, 0, len(products))
	for i := range products {
		resp = append(resp, toProductResponse(&products[i]))
	}
	return resp, nil
}

func toProductResponse(p *domain.Product) domain.ProductResponse {
	resp := domain.ProductResponse{
		ID:          p.ID.String(),
		Code:        p.Code,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Active:      p.Active,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if len(p.Metadata) > 0 {
		resp.Metadata = map[string]any(p.Metadata)
	}
	return resp
}
