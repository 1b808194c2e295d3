package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sandeepkv93/product-catalog/internal/domain"
)

func TestListProductsDecodesArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/products" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"id":2,"name":"Keyboard","description":null,"price":"$129","image":null,"createdAt":"2026-01-01T00:00:00Z"}]`)
	}))
	t.Cleanup(srv.Close)

	products, err := New(srv.URL + "/").ListProducts(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(products) != 1 || products[0].ID != 2 || products[0].Description != nil {
		t.Fatalf("unexpected products: %+v", products)
	}
	if !products[0].CreatedAt.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected createdAt: %v", products[0].CreatedAt)
	}
}

func TestNon2xxBecomesTransportError(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusInternalServerError} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `{"success":false,"error":{"code":"NOT_FOUND","message":"product not found"}}`)
		}))

		_, err := New(srv.URL).GetProduct(context.Background(), 9)
		srv.Close()
		if !errors.Is(err, ErrTransport) {
			t.Fatalf("status %d: expected ErrTransport, got %v", status, err)
		}
		var te *TransportError
		if !errors.As(err, &te) || te.StatusCode != status || te.Code != "NOT_FOUND" {
			t.Fatalf("status %d: unexpected transport error %+v", status, te)
		}
	}
}

func TestNetworkFailureBecomesTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := New(url).SeedProducts(context.Background())
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	var te *TransportError
	if !errors.As(err, &te) || te.StatusCode != 0 || te.Err == nil {
		t.Fatalf("expected wrapped network error, got %+v", te)
	}
}

func TestCreateProductSendsJSONWithoutFile(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Fatalf("unexpected content type %q", ct)
		}
		gotKey = r.Header.Get("Idempotency-Key")
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["name"] != "Lamp" || body["price"] != "$0" || body["image"] != "lamp.png" {
			t.Fatalf("unexpected body: %v", body)
		}
		if _, ok := body["description"]; ok {
			t.Fatalf("expected description omitted, got %v", body)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(domain.Product{ID: 4, Name: "Lamp", Price: "$0"})
	}))
	t.Cleanup(srv.Close)

	ref := "lamp.png"
	c := New(srv.URL, WithIdempotencyKeys(func() string { return "key-1" }))
	p, err := c.CreateProduct(context.Background(), ProductDraft{Name: "Lamp", Price: "$0", ImageRef: &ref}, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.ID != 4 || gotKey != "key-1" {
		t.Fatalf("unexpected result id=%d key=%q", p.ID, gotKey)
	}
}

func TestCreateProductSendsMultipartWithFile(t *testing.T) {
	keys := map[string]bool{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys[r.Header.Get("Idempotency-Key")] = true
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if r.FormValue("name") != "Camera" || r.FormValue("price") != "$10" || r.FormValue("description") != "compact" {
			t.Fatalf("unexpected fields: %v", r.MultipartForm.Value)
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if header.Filename != "cam.png" || header.Header.Get("Content-Type") != "image/png" || string(data) != "PNGDATA" {
			t.Fatalf("unexpected file part %q %q %q", header.Filename, header.Header.Get("Content-Type"), data)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(domain.Product{ID: 5, Name: "Camera", Price: "$10"})
	}))
	t.Cleanup(srv.Close)

	desc := "compact"
	c := New(srv.URL)
	for i := 0; i < 2; i++ {
		_, err := c.CreateProduct(context.Background(),
			ProductDraft{Name: "Camera", Description: &desc, Price: "$10"},
			&ImageFile{Name: "cam.png", ContentType: "image/png", Data: []byte("PNGDATA")})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if len(keys) != 2 {
		t.Fatalf("expected a distinct idempotency key per submission, got %v", keys)
	}
}

func TestUpdateDeleteAndSeedRoutes(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.Path)
		switch r.Method {
		case http.MethodPatch:
			raw, _ := io.ReadAll(r.Body)
			if strings.TrimSpace(string(raw)) != `{"price":"$5"}` {
				t.Fatalf("unexpected patch body %s", raw)
			}
			_ = json.NewEncoder(w).Encode(domain.Product{ID: 3, Price: "$5"})
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL)
	price := "$5"
	p, err := c.UpdateProduct(context.Background(), 3, ProductPatch{Price: &price})
	if err != nil || p.Price != "$5" {
		t.Fatalf("update: %v %+v", err, p)
	}
	if err := c.DeleteProduct(context.Background(), 3); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := c.SeedProducts(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	want := []string{"PATCH /products/3", "DELETE /products/3", "POST /products/seed"}
	if strings.Join(seen, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected routes %v", seen)
	}
	if got := c.ImageURL(3); got != srv.URL+"/products/3/image" {
		t.Fatalf("unexpected image url %s", got)
	}
}
