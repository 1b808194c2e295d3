package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/product-catalog/internal/client"
	"github.com/sandeepkv93/product-catalog/internal/domain"
)

type fakeServer struct {
	mu       sync.Mutex
	products []domain.Product
	nextID   uint
	fail     bool
}

func (s *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/products":
		_ = json.NewEncoder(w).Encode(s.products)
	case r.Method == http.MethodPost && r.URL.Path == "/products":
		var body struct {
			Name  string `json:"name"`
			Price string `json:"price"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.nextID++
		p := domain.Product{ID: s.nextID, Name: body.Name, Price: body.Price}
		s.products = append(s.products, p)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(p)
	case r.Method == http.MethodPost && r.URL.Path == "/products/seed":
		if len(s.products) == 0 {
			for _, name := range []string{"Smartwatch Pro X", "Headphones", "Keyboard"} {
				s.nextID++
				s.products = append(s.products, domain.Product{ID: s.nextID, Name: name, Price: "$1"})
			}
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestModel(t *testing.T, srv *fakeServer) model {
	t.Helper()
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	api := client.New(ts.URL)
	return newModel(context.Background(), client.NewCatalog(api), api, 1<<20)
}

func step(t *testing.T, m model, msg tea.Msg) model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(model)
	for cmd != nil {
		out := cmd()
		if out == nil {
			break
		}
		next, cmd = m.Update(out)
		m = next.(model)
		// the follow-up redraw tick would sleep past the success window
		if _, ok := out.(submittedMsg); ok {
			break
		}
	}
	return m
}

func typeText(t *testing.T, m model, s string) model {
	t.Helper()
	return step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func TestModelLoadsAndSeeds(t *testing.T) {
	m := newTestModel(t, &fakeServer{})
	if !strings.Contains(m.View(), "Loading products...") {
		t.Fatalf("expected loading view, got %q", m.View())
	}
	m = step(t, m, m.Init()())
	if !strings.Contains(m.View(), "No products yet.") {
		t.Fatalf("expected empty grid, got %q", m.View())
	}

	m = step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	if !strings.Contains(m.View(), "Smartwatch Pro X") {
		t.Fatalf("expected seeded products, got %q", m.View())
	}
}

func TestModelAddProductFlow(t *testing.T) {
	srv := &fakeServer{products: []domain.Product{{ID: 1, Name: "Old", Price: "$2"}}, nextID: 1}
	m := newTestModel(t, srv)
	m = step(t, m, m.Init()())

	m = typeText(t, m, "a")
	if m.mode != modeForm {
		t.Fatal("expected form mode")
	}
	m = typeText(t, m, "Lamp")
	m = step(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m = step(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m = typeText(t, m, "abc")
	if !strings.Contains(m.View(), "disabled") {
		t.Fatalf("expected disabled submit hint for invalid price, got %q", m.View())
	}
	m = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if !strings.Contains(m.formErr, "price") {
		t.Fatalf("expected price error, got %q", m.formErr)
	}

	for i := 0; i < 3; i++ {
		m = step(t, m, tea.KeyMsg{Type: tea.KeyBackspace})
	}
	m = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.mode != modeList {
		t.Fatalf("expected list mode after submit, formErr=%q", m.formErr)
	}
	view := m.View()
	if !strings.Contains(view, "Product added!") {
		t.Fatalf("expected success indicator, got %q", view)
	}
	if strings.Index(view, "Lamp") > strings.Index(view, "Old") {
		t.Fatalf("expected new product first, got %q", view)
	}
	if !strings.Contains(view, "$0") {
		t.Fatalf("expected defaulted price, got %q", view)
	}
}

func TestModelFailedRefreshKeepsGridWithBanner(t *testing.T) {
	srv := &fakeServer{products: []domain.Product{{ID: 1, Name: "Old", Price: "$2"}}}
	m := newTestModel(t, srv)
	m = step(t, m, m.Init()())

	srv.mu.Lock()
	srv.fail = true
	srv.mu.Unlock()
	m = typeText(t, m, "r")
	view := m.View()
	if !strings.Contains(view, client.BannerMessage) || !strings.Contains(view, "Old") {
		t.Fatalf("expected banner alongside grid, got %q", view)
	}
}

func TestModelSubmitFailureRestoresForm(t *testing.T) {
	srv := &fakeServer{}
	m := newTestModel(t, srv)
	m = step(t, m, m.Init()())
	m = typeText(t, m, "a")
	m = typeText(t, m, "Lamp")

	srv.mu.Lock()
	srv.fail = true
	srv.mu.Unlock()
	m = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.mode != modeForm || m.form.Name != "Lamp" {
		t.Fatalf("expected form restored, got mode=%d form=%+v", m.mode, m.form)
	}
	if !strings.Contains(m.View(), client.BannerMessage) {
		t.Fatalf("expected banner, got %q", m.View())
	}
}

func TestModelRemoteImageRef(t *testing.T) {
	m := newTestModel(t, &fakeServer{})
	m = step(t, m, m.Init()())
	m = typeText(t, m, "a")
	m.field = fieldImage
	m = typeText(t, m, "https://cdn.example.com/lamp.png")
	m = step(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.form.ImageRef != "https://cdn.example.com/lamp.png" || m.form.Image != nil {
		t.Fatalf("expected remote ref, got %+v", m.form)
	}

	m.field = fieldImage
	m.imageText = "/does/not/exist.png"
	m = step(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if !strings.HasPrefix(m.imageErr, "image:") {
		t.Fatalf("expected image error, got %q", m.imageErr)
	}
	m = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.mode != modeForm {
		t.Fatal("expected submit blocked by image error")
	}
}
