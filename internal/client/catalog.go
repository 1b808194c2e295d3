package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sandeepkv93/product-catalog/internal/domain"
)

// SuccessDisplayDuration is how long the success indicator stays up after a create.
const SuccessDisplayDuration = 2 * time.Second

// BannerMessage is the single user-facing text for any failed catalog call.
const BannerMessage = "Could not reach the product catalog. Please try again."

var ErrSubmitInFlight = errors.New("a submission is already in progress")

// CatalogAPI is the subset of Client the catalog view needs.
type CatalogAPI interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	CreateProduct(ctx context.Context, draft ProductDraft, image *ImageFile) (*domain.Product, error)
}

type ViewKind int

const (
	ViewLoading ViewKind = iota
	ViewError
	ViewGrid
)

// View is one render of the catalog. Banner may be set alongside ViewGrid
// when a later call failed after products were loaded.
type View struct {
	Kind       ViewKind
	Products   []domain.Product
	Banner     string
	Submitting bool
	Success    bool
}

// Catalog is the client-side state for the product list and add form.
// It is safe for use from multiple goroutines.
type Catalog struct {
	api        CatalogAPI
	successTTL time.Duration
	afterFunc  func(time.Duration, func()) *time.Timer
	onChange   func()

	mu         sync.Mutex
	products   []domain.Product
	loaded     bool
	started    bool
	err        error
	submitting bool
	success    bool
	successSeq uint64
}

type CatalogOption func(*Catalog)

// WithOnChange registers fn to run after state changes that happen off the
// caller's goroutine, such as the success indicator clearing.
func WithOnChange(fn func()) CatalogOption {
	return func(c *Catalog) { c.onChange = fn }
}

func WithTimer(afterFunc func(time.Duration, func()) *time.Timer) CatalogOption {
	return func(c *Catalog) {
		if afterFunc != nil {
			c.afterFunc = afterFunc
		}
	}
}

func NewCatalog(api CatalogAPI, opts ...CatalogOption) *Catalog {
	c := &Catalog{
		api:        api,
		successTTL: SuccessDisplayDuration,
		afterFunc:  time.AfterFunc,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load fetches the product list the first time it is called. Later calls are
// no-ops; use Refresh to fetch again.
func (c *Catalog) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.mu.Unlock()
	return c.fetch(ctx)
}

// Refresh replaces the local list with the server's. On failure the previous
// list is kept and the banner is raised.
func (c *Catalog) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.started = true
	c.mu.Unlock()
	return c.fetch(ctx)
}

func (c *Catalog) fetch(ctx context.Context) error {
	products, err := c.api.ListProducts(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.err = err
		return err
	}
	c.products = products
	c.loaded = true
	c.err = nil
	return nil
}

// Submit creates a product from form. The returned product is prepended to the
// list, the form is reset and the success indicator is raised for
// SuccessDisplayDuration. When no list has been fetched yet the list is fetched
// instead of prepending. Only one submission may be in flight.
func (c *Catalog) Submit(ctx context.Context, form *Form) (*domain.Product, error) {
	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return nil, ErrSubmitInFlight
	}
	if err := form.Validate(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.submitting = true
	c.success = false
	draft := form.Draft()
	image := form.Image
	c.mu.Unlock()

	created, err := c.api.CreateProduct(ctx, draft, image)

	c.mu.Lock()
	c.submitting = false
	if err != nil {
		c.err = err
		c.mu.Unlock()
		return nil, err
	}
	form.Reset()
	c.success = true
	c.successSeq++
	seq := c.successSeq
	c.afterFunc(c.successTTL, func() { c.clearSuccess(seq) })

	// Without a successful list there is nothing to prepend to; the grid is
	// only shown once the server list has been fetched.
	listed := c.loaded
	if listed {
		c.err = nil
		c.products = append([]domain.Product{*created}, c.products...)
	} else {
		c.started = true
	}
	c.mu.Unlock()

	if !listed {
		_ = c.fetch(ctx)
	}
	return created, nil
}

func (c *Catalog) clearSuccess(seq uint64) {
	c.mu.Lock()
	if c.successSeq != seq || !c.success {
		c.mu.Unlock()
		return
	}
	c.success = false
	onChange := c.onChange
	c.mu.Unlock()
	if onChange != nil {
		onChange()
	}
}

func (c *Catalog) Submitting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitting
}

// CanSubmit reports whether form is valid and no submission is in flight.
func (c *Catalog) CanSubmit(form *Form) bool {
	return form.CanSubmit(c.Submitting())
}

func (c *Catalog) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{Submitting: c.submitting, Success: c.success}
	if c.err != nil {
		v.Banner = BannerMessage
	}
	switch {
	case c.loaded:
		v.Kind = ViewGrid
		v.Products = append([]domain.Product(nil), c.products...)
	case c.err != nil:
		v.Kind = ViewError
	default:
		v.Kind = ViewLoading
	}
	return v
}
