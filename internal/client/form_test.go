package client

import (
	"errors"
	"testing"
)

func TestFormPriceValidation(t *testing.T) {
	tests := []struct {
		price string
		ok    bool
	}{
		{"199", true},
		{"$199.50", true},
		{"$199.5", true},
		{"", true},
		{"  $20  ", true},
		{"$199.5.0", false},
		{"abc", false},
		{"$199.505", false},
		{"$", false},
		{"-5", false},
	}
	for _, tt := range tests {
		f := Form{Name: "Widget", Price: tt.price}
		err := f.Validate()
		if tt.ok && err != nil {
			t.Fatalf("price %q: unexpected error %v", tt.price, err)
		}
		if !tt.ok && !errors.Is(err, ErrInvalidPrice) {
			t.Fatalf("price %q: expected ErrInvalidPrice, got %v", tt.price, err)
		}
	}
}

func TestFormNameRequired(t *testing.T) {
	for _, name := range []string{"", "   ", "\t"} {
		f := Form{Name: name, Price: "$1"}
		if !errors.Is(f.Validate(), ErrNameRequired) {
			t.Fatalf("name %q: expected ErrNameRequired", name)
		}
		if f.CanSubmit(false) {
			t.Fatalf("name %q: expected submit disabled", name)
		}
	}
}

func TestFormCanSubmitBlocksWhileInFlight(t *testing.T) {
	f := Form{Name: "Widget"}
	if !f.CanSubmit(false) {
		t.Fatal("expected valid form to be submittable")
	}
	if f.CanSubmit(true) {
		t.Fatal("expected submit disabled while in flight")
	}
}

func TestFormDraftTrimsAndDefaultsPrice(t *testing.T) {
	f := Form{Name: "  Lamp ", Description: "  ", Price: "", ImageRef: " lamp.png "}
	d := f.Draft()
	if d.Name != "Lamp" || d.Price != "$0" {
		t.Fatalf("unexpected draft %+v", d)
	}
	if d.Description != nil {
		t.Fatalf("expected blank description dropped, got %q", *d.Description)
	}
	if d.ImageRef == nil || *d.ImageRef != "lamp.png" {
		t.Fatalf("unexpected image ref %v", d.ImageRef)
	}

	f.Image = &ImageFile{Name: "x.png"}
	if f.Draft().ImageRef != nil {
		t.Fatal("expected file to take precedence over image ref")
	}
}

func TestFormReset(t *testing.T) {
	f := Form{Name: "a", Price: "1", Image: &ImageFile{}}
	f.Reset()
	if f.Name != "" || f.Price != "" || f.Image != nil {
		t.Fatalf("expected cleared form, got %+v", f)
	}
}
