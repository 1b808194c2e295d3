package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/product-catalog/internal/client"
	"github.com/sandeepkv93/product-catalog/internal/domain"
	"github.com/sandeepkv93/product-catalog/internal/tools/ui"
)

type mode int

const (
	modeList mode = iota
	modeForm
)

const (
	fieldName = iota
	fieldDescription
	fieldPrice
	fieldImage
	fieldCount
)

var fieldLabels = [fieldCount]string{"Name", "Description", "Price", "Image file or URL"}

// Seeder triggers server-side seeding of the initial products.
type Seeder interface {
	SeedProducts(ctx context.Context) error
}

type loadedMsg struct{ err error }

type submittedMsg struct {
	product *domain.Product
}

type restoreMsg struct {
	form client.Form
	err  error
}

type seededMsg struct{ err error }

type redrawMsg struct{}

type model struct {
	ctx           context.Context
	catalog       *client.Catalog
	seeder        Seeder
	maxImageBytes int64

	mode      mode
	form      client.Form
	imageText string
	field     int
	formErr   string
	imageErr  string
	cursor    int
	quitting  bool
}

func newModel(ctx context.Context, catalog *client.Catalog, seeder Seeder, maxImageBytes int64) model {
	return model{ctx: ctx, catalog: catalog, seeder: seeder, maxImageBytes: maxImageBytes}
}

func (m model) Init() tea.Cmd {
	return m.load
}

func (m model) load() tea.Msg {
	return loadedMsg{err: m.catalog.Load(m.ctx)}
}

func (m model) refresh() tea.Msg {
	return loadedMsg{err: m.catalog.Refresh(m.ctx)}
}

func (m model) seed() tea.Msg {
	if err := m.seeder.SeedProducts(m.ctx); err != nil {
		return seededMsg{err: err}
	}
	return seededMsg{err: m.catalog.Refresh(m.ctx)}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg, seededMsg, redrawMsg:
		m.clampCursor()
		return m, nil
	case restoreMsg:
		m.form = msg.form
		if !errors.Is(msg.err, client.ErrTransport) {
			m.formErr = msg.err.Error()
		}
		return m, nil
	case submittedMsg:
		m.imageText = ""
		m.formErr = ""
		m.imageErr = ""
		m.field = fieldName
		m.mode = modeList
		m.cursor = 0
		return m, tea.Tick(client.SuccessDisplayDuration+50*time.Millisecond, func(time.Time) tea.Msg { return redrawMsg{} })
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.quitting = true
			return m, tea.Quit
		}
		if m.mode == modeForm {
			return m.updateForm(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "a":
		m.mode = modeForm
		m.formErr = ""
		return m, nil
	case "r":
		return m, m.refresh
	case "s":
		if m.seeder != nil {
			return m, m.seed
		}
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.catalog.View().Products)-1 {
			m.cursor++
		}
	}
	return m, nil
}

func (m model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.catalog.Submitting() {
		return m, nil
	}
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeList
		return m, nil
	case tea.KeyTab, tea.KeyDown:
		m.leaveField()
		m.field = (m.field + 1) % fieldCount
		return m, nil
	case tea.KeyShiftTab, tea.KeyUp:
		m.leaveField()
		m.field = (m.field + fieldCount - 1) % fieldCount
		return m, nil
	case tea.KeyEnter:
		m.formErr = ""
		m.leaveField()
		if m.imageErr != "" {
			return m, nil
		}
		if !m.catalog.CanSubmit(&m.form) {
			if err := m.form.Validate(); err != nil {
				m.formErr = err.Error()
			}
			return m, nil
		}
		form := m.form
		m.form = client.Form{}
		return m, m.submitWithRestore(&form)
	case tea.KeyBackspace:
		m.setField(trimLastRune(m.fieldValue()))
		return m, nil
	case tea.KeySpace:
		m.setField(m.fieldValue() + " ")
		return m, nil
	case tea.KeyRunes:
		m.setField(m.fieldValue() + string(msg.Runes))
		return m, nil
	}
	return m, nil
}

// submitWithRestore submits a copy of the form. On failure the typed values
// come back in restoreMsg so nothing the user entered is lost.
func (m model) submitWithRestore(form *client.Form) tea.Cmd {
	return func() tea.Msg {
		p, err := m.catalog.Submit(m.ctx, form)
		if err != nil {
			return restoreMsg{form: *form, err: err}
		}
		return submittedMsg{product: p}
	}
}

func (m *model) leaveField() {
	if m.field != fieldImage {
		return
	}
	m.imageErr = ""
	text := strings.TrimSpace(m.imageText)
	m.form.ClearImage()
	m.form.ImageRef = ""
	switch {
	case text == "":
	case isRemoteRef(text):
		m.form.ImageRef = text
	default:
		if err := m.form.AttachImage(text, m.maxImageBytes); err != nil {
			m.imageErr = "image: " + err.Error()
		}
	}
}

func isRemoteRef(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func (m *model) fieldValue() string {
	switch m.field {
	case fieldName:
		return m.form.Name
	case fieldDescription:
		return m.form.Description
	case fieldPrice:
		return m.form.Price
	default:
		return m.imageText
	}
}

func (m *model) setField(v string) {
	switch m.field {
	case fieldName:
		m.form.Name = v
	case fieldDescription:
		m.form.Description = v
	case fieldPrice:
		m.form.Price = v
	default:
		m.imageText = v
	}
}

func (m *model) clampCursor() {
	n := len(m.catalog.View().Products)
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func trimLastRune(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	return string(r[:len(r)-1])
}

func (m model) View() string {
	if m.quitting {
		return ""
	}
	v := m.catalog.View()
	var b strings.Builder
	b.WriteString(ui.TitleStyle.Render("Product Catalog") + "\n\n")
	if v.Banner != "" {
		b.WriteString(ui.FailStyle.Render(v.Banner) + "\n\n")
	}
	if v.Success {
		b.WriteString(ui.OKStyle.Render("Product added!") + "\n\n")
	}
	if m.mode == modeForm {
		b.WriteString(m.formView(v))
		return b.String()
	}

	switch v.Kind {
	case client.ViewLoading:
		b.WriteString("Loading products...\n")
	case client.ViewError:
		// banner only
	case client.ViewGrid:
		b.WriteString(productGrid(v.Products, m.cursor))
	}
	b.WriteString("\n" + ui.MutedStyle.Render("a add  r refresh  s seed  j/k move  q quit") + "\n")
	return b.String()
}

func productGrid(products []domain.Product, cursor int) string {
	if len(products) == 0 {
		return ui.MutedStyle.Render("No products yet.") + "\n"
	}
	var b strings.Builder
	for i, p := range products {
		line := fmt.Sprintf("#%-4d %-40s %10s", p.ID, truncate(p.Name, 40), p.Price)
		if i == cursor {
			b.WriteString(ui.SelectStyle.Render("> "+line) + "\n")
			if p.Description != nil && *p.Description != "" {
				b.WriteString("    " + ui.MutedStyle.Render(truncate(*p.Description, 72)) + "\n")
			}
			if ref := p.ImageRef(); ref != "" {
				b.WriteString("    " + ui.MutedStyle.Render("image: "+truncate(ref, 64)) + "\n")
			}
			continue
		}
		b.WriteString("  " + line + "\n")
	}
	return b.String()
}

func (m model) formView(v client.View) string {
	values := [fieldCount]string{m.form.Name, m.form.Description, m.form.Price, m.imageText}
	var b strings.Builder
	for i := 0; i < fieldCount; i++ {
		label := fmt.Sprintf("%-18s", fieldLabels[i]+":")
		value := values[i]
		if i == m.field {
			b.WriteString(ui.SelectStyle.Render("> "+label) + " " + value + "_\n")
			continue
		}
		b.WriteString("  " + label + " " + value + "\n")
	}
	if m.form.Preview != nil {
		b.WriteString("\n" + ui.BorderStyle.Render("preview: "+m.form.Preview.String()) + "\n")
	}
	for _, msg := range []string{m.imageErr, m.formErr} {
		if msg != "" {
			b.WriteString("\n" + ui.FailStyle.Render(msg) + "\n")
		}
	}
	hint := "enter submit  tab next field  esc back"
	switch {
	case v.Submitting:
		hint = "submitting..."
	case !m.catalog.CanSubmit(&m.form):
		hint = "enter submit (disabled: fix the form)  tab next field  esc back"
	}
	b.WriteString("\n" + ui.MutedStyle.Render(hint) + "\n")
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
