package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sandeepkv93/product-catalog/internal/domain"
)

// ErrTransport matches every failed catalog call, whatever the status code.
var ErrTransport = errors.New("catalog request failed")

const maxErrorBodyBytes = 64 << 10

// TransportError describes a non-2xx response or a network failure.
// StatusCode is zero when no response was received.
type TransportError struct {
	Op         string
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Op + ": " + ErrTransport.Error()
	}
}

func (e *TransportError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTransport}
	}
	return []error{ErrTransport, e.Err}
}

// ProductDraft is the sanitised payload for a create call.
type ProductDraft struct {
	Name        string
	Description *string
	Price       string
	ImageRef    *string
}

// ImageFile is a raw local image handed to CreateProduct for upload.
type ImageFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// ProductPatch replaces only its non-nil fields. An empty Image clears the image.
type ProductPatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Price       *string `json:"price,omitempty"`
	Image       *string `json:"image,omitempty"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	newKey     func() string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithIdempotencyKeys overrides how per-submission Idempotency-Key values are generated.
func WithIdempotencyKeys(fn func() string) Option {
	return func(c *Client) {
		if fn != nil {
			c.newKey = fn
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		newKey:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	if err := c.do(ctx, "list products", http.MethodGet, "/products", nil, "", nil, &products); err != nil {
		return nil, err
	}
	if products == nil {
		products = []domain.Product{}
	}
	return products, nil
}

func (c *Client) GetProduct(ctx context.Context, id uint) (*domain.Product, error) {
	var product domain.Product
	if err := c.do(ctx, "get product", http.MethodGet, productPath(id), nil, "", nil, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// CreateProduct sends a multipart form when image is non-nil and JSON otherwise.
// Each call carries a fresh Idempotency-Key.
func (c *Client) CreateProduct(ctx context.Context, draft ProductDraft, image *ImageFile) (*domain.Product, error) {
	var (
		body        []byte
		contentType string
		err         error
	)
	if image != nil {
		body, contentType, err = encodeMultipartDraft(draft, image)
	} else {
		body, err = json.Marshal(createRequest{
			Name:        draft.Name,
			Description: draft.Description,
			Price:       draft.Price,
			Image:       draft.ImageRef,
		})
		contentType = "application/json"
	}
	if err != nil {
		return nil, &TransportError{Op: "create product", Err: err}
	}

	headers := http.Header{}
	headers.Set("Idempotency-Key", c.newKey())
	var product domain.Product
	if err := c.do(ctx, "create product", http.MethodPost, "/products", body, contentType, headers, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (c *Client) UpdateProduct(ctx context.Context, id uint, patch ProductPatch) (*domain.Product, error) {
	body, err := json.Marshal(patch)
	if err != nil {
		return nil, &TransportError{Op: "update product", Err: err}
	}
	var product domain.Product
	if err := c.do(ctx, "update product", http.MethodPatch, productPath(id), body, "application/json", nil, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (c *Client) DeleteProduct(ctx context.Context, id uint) error {
	return c.do(ctx, "delete product", http.MethodDelete, productPath(id), nil, "", nil, nil)
}

func (c *Client) SeedProducts(ctx context.Context) error {
	return c.do(ctx, "seed products", http.MethodPost, "/products/seed", nil, "", nil, nil)
}

// ImageURL is the API address that redirects to the product image.
func (c *Client) ImageURL(id uint) string {
	return c.baseURL + productPath(id) + "/image"
}

type createRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Price       string  `json:"price"`
	Image       *string `json:"image,omitempty"`
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, op, method, path string, body []byte, contentType string, headers http.Header, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		te := &TransportError{Op: op, StatusCode: resp.StatusCode}
		var env errorEnvelope
		if raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes)); readErr == nil && json.Unmarshal(raw, &env) == nil {
			te.Code = env.Error.Code
			te.Message = env.Error.Message
		}
		return te
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func encodeMultipartDraft(draft ProductDraft, image *ImageFile) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("name", draft.Name); err != nil {
		return nil, "", err
	}
	if draft.Description != nil {
		if err := w.WriteField("description", *draft.Description); err != nil {
			return nil, "", err
		}
	}
	if err := w.WriteField("price", draft.Price); err != nil {
		return nil, "", err
	}

	name := image.Name
	if name == "" {
		name = "image"
	}
	ct := image.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, name))
	h.Set("Content-Type", ct)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(image.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func productPath(id uint) string {
	return "/products/" + strconv.FormatUint(uint64(id), 10)
}
