package client

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrNameRequired = errors.New("name is required")
	ErrInvalidPrice = errors.New("price must look like 199, $199 or $199.50")
)

const defaultPrice = "$0"

var pricePattern = regexp.MustCompile(`^\$?\d+(\.\d{1,2})?$`)

// Form holds the add-product input. Image and ImageRef are alternative inputs;
// when both are set the file wins.
type Form struct {
	Name        string
	Description string
	Price       string
	ImageRef    string
	Image       *ImageFile
	Preview     *ImagePreview
}

// Validate reports every rule the current input breaks.
func (f *Form) Validate() error {
	var errs []error
	if strings.TrimSpace(f.Name) == "" {
		errs = append(errs, ErrNameRequired)
	}
	if price := strings.TrimSpace(f.Price); price != "" && !pricePattern.MatchString(price) {
		errs = append(errs, ErrInvalidPrice)
	}
	return errors.Join(errs...)
}

func (f *Form) CanSubmit(inFlight bool) bool {
	return !inFlight && f.Validate() == nil
}

// Draft returns the trimmed payload. An empty price becomes "$0".
func (f *Form) Draft() ProductDraft {
	d := ProductDraft{
		Name:  strings.TrimSpace(f.Name),
		Price: strings.TrimSpace(f.Price),
	}
	if d.Price == "" {
		d.Price = defaultPrice
	}
	if desc := strings.TrimSpace(f.Description); desc != "" {
		d.Description = &desc
	}
	if f.Image == nil {
		if ref := strings.TrimSpace(f.ImageRef); ref != "" {
			d.ImageRef = &ref
		}
	}
	return d
}

// AttachImage reads a local file and keeps it with its preview until submit.
func (f *Form) AttachImage(path string, maxBytes int64) error {
	file, preview, err := LoadImage(path, maxBytes)
	if err != nil {
		return err
	}
	f.Image = file
	f.Preview = &preview
	return nil
}

func (f *Form) ClearImage() {
	f.Image = nil
	f.Preview = nil
}

func (f *Form) Reset() {
	*f = Form{}
}
