package product

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// Input holds the editable fields of a product.
type Input struct {
	Category      string
	Name          string
	Storage       string
	OriginalPrice string
	OfferPrice    string
	Rating        string
	RatingCount   string
	Description   string
	Bestseller    bool
	ImageURL      string
}

// Patch holds a partial update. Nil fields keep their stored value.
type Patch struct {
	Category      *string
	Name          *string
	Storage       *string
	OriginalPrice *string
	OfferPrice    *string
	Rating        *string
	RatingCount   *string
	Description   *string
	Bestseller    *bool
	ImageURL      *string
}

// Input returns the patch as a full input, zero-filling absent fields.
func (pt Patch) Input() Input {
	str := func(v *string) string {
		if v == nil {
			return ""
		}
		return *v
	}
	in := Input{
		Category:      str(pt.Category),
		Name:          str(pt.Name),
		Storage:       str(pt.Storage),
		OriginalPrice: str(pt.OriginalPrice),
		OfferPrice:    str(pt.OfferPrice),
		Rating:        str(pt.Rating),
		RatingCount:   str(pt.RatingCount),
		Description:   str(pt.Description),
		ImageURL:      str(pt.ImageURL),
	}
	if pt.Bestseller != nil {
		in.Bestseller = *pt.Bestseller
	}
	return in
}

// Service implements catalog management on top of a Repository.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a catalog Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// List returns the whole catalog.
func (s *Service) List(ctx context.Context) ([]Product, error) {
	products, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return products, nil
}

// Get returns a single product by ID.
func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	return s.repo.GetByID(ctx, id)
}

// Create validates in and stores it as a new product.
func (s *Service) Create(ctx context.Context, in Input) (*Product, error) {
	now := s.now().UTC()
	p := &Product{
		ID:        uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := apply(p, in); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create product")
	}
	return p, nil
}

// Update applies the fields present in patch to the product identified by id.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (*Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyPatch(p, patch); err != nil {
		return nil, err
	}
	p.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, errors.Wrap(err, "update product")
	}
	return p, nil
}

// Delete removes a product. Carts and orders keep their denormalized copies.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func apply(p *Product, in Input) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return ErrNameRequired
	}
	original, err := ParsePrice(in.OriginalPrice)
	if err != nil {
		return err
	}
	offer, err := ParsePrice(in.OfferPrice)
	if err != nil {
		return err
	}

	p.Category = in.Category
	p.Name = name
	p.Storage = in.Storage
	p.OriginalPrice = original
	p.OfferPrice = offer
	p.Rating = in.Rating
	p.RatingCount = in.RatingCount
	p.Description = in.Description
	p.Bestseller = in.Bestseller
	p.ImageURL = in.ImageURL
	return nil
}

func applyPatch(p *Product, pt Patch) error {
	if pt.Name != nil {
		name := strings.TrimSpace(*pt.Name)
		if name == "" {
			return ErrNameRequired
		}
		p.Name = name
	}
	if pt.OriginalPrice != nil {
		v, err := ParsePrice(*pt.OriginalPrice)
		if err != nil {
			return err
		}
		p.OriginalPrice = v
	}
	if pt.OfferPrice != nil {
		v, err := ParsePrice(*pt.OfferPrice)
		if err != nil {
			return err
		}
		p.OfferPrice = v
	}
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&p.Category, pt.Category)
	set(&p.Storage, pt.Storage)
	set(&p.Rating, pt.Rating)
	set(&p.RatingCount, pt.RatingCount)
	set(&p.Description, pt.Description)
	set(&p.ImageURL, pt.ImageURL)
	if pt.Bestseller != nil {
		p.Bestseller = *pt.Bestseller
	}
	return nil
}
