package handler

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sandeepkv93/product-catalog/internal/http/middleware"
	"github.com/sandeepkv93/product-catalog/internal/http/response"
	"github.com/sandeepkv93/product-catalog/internal/observability"
	"github.com/sandeepkv93/product-catalog/internal/repository"
	"github.com/sandeepkv93/product-catalog/internal/service"
)

const (
	imageFormField          = "image"
	defaultMultipartMemory  = 8 << 20
	multipartFormMediaType  = "multipart/form-data"
	productImageCacheMaxAge = "private, max-age=60"
)

type ProductHandler struct {
	svc             service.ProductService
	multipartMemory int64
}

func NewProductHandler(svc service.ProductService) *ProductHandler {
	return &ProductHandler{svc: svc, multipartMemory: defaultMultipartMemory}
}

type createProductRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Price       string  `json:"price"`
	Image       *string `json:"image"`
}

type updateProductRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Price       *string `json:"price"`
	Image       *string `json:"image"`
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "failed to list products")
		return
	}
	response.JSON(w, r, http.StatusOK, products)
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var (
		input service.CreateProductInput
		err   error
	)
	if isMultipart(r) {
		input, err = h.createInputFromMultipart(r)
	} else {
		input, err = createInputFromJSON(r)
	}
	if err != nil {
		writeDecodeError(w, r, err)
		return
	}

	created, err := h.svc.Create(r.Context(), input)
	if err != nil {
		writeServiceError(w, r, err, "failed to create product")
		return
	}

	observability.EmitAudit(r, observability.AuditInput{
		EventName:  "product.create",
		TargetType: "product",
		TargetID:   productIDString(created.ID),
		Action:     "create",
		Outcome:    "success",
		Reason:     "product_created",
	}, "name", created.Name, "image_upload", input.ImageUpload != nil)
	w.Header().Set("Location", "/products/"+productIDString(created.ID))
	response.JSON(w, r, http.StatusCreated, created)
}

func (h *ProductHandler) Seed(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.SeedInitialProducts(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "failed to seed products")
		return
	}
	observability.EmitAudit(r, observability.AuditInput{
		EventName:  "product.seed",
		TargetType: "product",
		Action:     "seed",
		Outcome:    "success",
		Reason:     seedReason(report),
	}, "inserted", report.Inserted)
	response.NoContent(w)
}

func (h *ProductHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	productID, err := parsePathID(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}

	product, err := h.svc.GetByID(r.Context(), productID)
	if err != nil {
		writeServiceError(w, r, err, "failed to load product")
		return
	}
	response.JSON(w, r, http.StatusOK, product)
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	productID, err := parsePathID(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}

	var input service.UpdateProductInput
	if isMultipart(r) {
		input, err = h.updateInputFromMultipart(r)
	} else {
		input, err = updateInputFromJSON(r)
	}
	if err != nil {
		writeDecodeError(w, r, err)
		return
	}

	updated, err := h.svc.Update(r.Context(), productID, input)
	if err != nil {
		writeServiceError(w, r, err, "failed to update product")
		return
	}

	observability.EmitAudit(r, observability.AuditInput{
		EventName:  "product.update",
		TargetType: "product",
		TargetID:   productIDString(productID),
		Action:     "update",
		Outcome:    "success",
		Reason:     "product_updated",
	}, "fields", updatedFields(input))
	response.JSON(w, r, http.StatusOK, updated)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	productID, err := parsePathID(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}

	if err := h.svc.DeleteByID(r.Context(), productID); err != nil {
		writeServiceError(w, r, err, "failed to delete product")
		return
	}

	observability.EmitAudit(r, observability.AuditInput{
		EventName:  "product.delete",
		TargetType: "product",
		TargetID:   productIDString(productID),
		Action:     "delete",
		Outcome:    "success",
		Reason:     "product_deleted",
	})
	response.NoContent(w)
}

// Image redirects to a fetchable URL for the product's image.
func (h *ProductHandler) Image(w http.ResponseWriter, r *http.Request) {
	productID, err := parsePathID(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}

	url, err := h.svc.ProductImageURL(r.Context(), productID)
	if err != nil {
		writeServiceError(w, r, err, "failed to resolve product image")
		return
	}
	w.Header().Set("Cache-Control", productImageCacheMaxAge)
	http.Redirect(w, r, url, http.StatusFound)
}

var errInvalidPayload = errors.New("invalid payload")

func createInputFromJSON(r *http.Request) (service.CreateProductInput, error) {
	var body createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return service.CreateProductInput{}, errors.Join(errInvalidPayload, err)
	}
	input := service.CreateProductInput{
		Name:  body.Name,
		Price: body.Price,
	}
	if body.Description != nil {
		input.Description = *body.Description
	}
	if body.Image != nil {
		upload, isDataURI, err := service.DecodeImageDataURI(*body.Image)
		if err != nil {
			return service.CreateProductInput{}, err
		}
		if isDataURI {
			input.ImageUpload = upload
		} else {
			input.ImageRef = *body.Image
		}
	}
	return input, nil
}

func updateInputFromJSON(r *http.Request) (service.UpdateProductInput, error) {
	var body updateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return service.UpdateProductInput{}, errors.Join(errInvalidPayload, err)
	}
	input := service.UpdateProductInput{
		Name:        body.Name,
		Description: body.Description,
		Price:       body.Price,
	}
	if body.Image != nil {
		upload, isDataURI, err := service.DecodeImageDataURI(*body.Image)
		if err != nil {
			return service.UpdateProductInput{}, err
		}
		if isDataURI {
			input.ImageUpload = upload
		} else {
			input.Image = body.Image
		}
	}
	return input, nil
}

func (h *ProductHandler) createInputFromMultipart(r *http.Request) (service.CreateProductInput, error) {
	if err := r.ParseMultipartForm(h.multipartMemory); err != nil {
		return service.CreateProductInput{}, errors.Join(errInvalidPayload, err)
	}
	input := service.CreateProductInput{
		Name:        r.PostFormValue("name"),
		Description: r.PostFormValue("description"),
		Price:       r.PostFormValue("price"),
		ImageRef:    r.PostFormValue(imageFormField),
	}
	upload, err := imageUploadFromForm(r)
	if err != nil {
		return service.CreateProductInput{}, err
	}
	input.ImageUpload = upload
	return input, nil
}

func (h *ProductHandler) updateInputFromMultipart(r *http.Request) (service.UpdateProductInput, error) {
	if err := r.ParseMultipartForm(h.multipartMemory); err != nil {
		return service.UpdateProductInput{}, errors.Join(errInvalidPayload, err)
	}
	input := service.UpdateProductInput{
		Name:        formValuePtr(r, "name"),
		Description: formValuePtr(r, "description"),
		Price:       formValuePtr(r, "price"),
		Image:       formValuePtr(r, imageFormField),
	}
	upload, err := imageUploadFromForm(r)
	if err != nil {
		return service.UpdateProductInput{}, err
	}
	input.ImageUpload = upload
	return input, nil
}

// imageUploadFromForm returns nil when the form carries no image file part.
func imageUploadFromForm(r *http.Request) (*service.ImageUpload, error) {
	file, header, err := r.FormFile(imageFormField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Join(errInvalidPayload, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.Join(errInvalidPayload, err)
	}
	return &service.ImageUpload{Filename: header.Filename, Data: data}, nil
}

func formValuePtr(r *http.Request, key string) *string {
	if r.MultipartForm == nil {
		return nil
	}
	values, ok := r.MultipartForm.Value[key]
	if !ok || len(values) == 0 {
		return nil
	}
	v := values[0]
	return &v
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == multipartFormMediaType
}

func writeDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case middleware.IsBodyTooLarge(err):
		response.Error(w, r, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body too large", nil)
	case errors.Is(err, service.ErrInvalidImage):
		response.Error(w, r, http.StatusBadRequest, "INVALID_IMAGE", err.Error(), nil)
	default:
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, service.ErrInvalidImage):
		response.Error(w, r, http.StatusBadRequest, "INVALID_IMAGE", err.Error(), nil)
	case errors.Is(err, repository.ErrProductNotFound):
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
	case errors.Is(err, service.ErrProductImageNotFound):
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "product image not found", nil)
	case errors.Is(err, service.ErrImageStorage):
		response.Error(w, r, http.StatusBadGateway, "STORAGE_ERROR", "image storage unavailable", nil)
	default:
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", fallback, nil)
	}
}

func parsePathID(input string) (uint, error) {
	id, err := strconv.ParseUint(input, 10, 64)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, errors.New("product id must be positive")
	}
	return uint(id), nil
}

func productIDString(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func seedReason(report service.SeedReport) string {
	if report.Skipped() {
		return "catalog_not_empty"
	}
	return "products_seeded"
}

func updatedFields(input service.UpdateProductInput) string {
	fields := make([]string, 0, 4)
	if input.Name != nil {
		fields = append(fields, "name")
	}
	if input.Description != nil {
		fields = append(fields, "description")
	}
	if input.Price != nil {
		fields = append(fields, "price")
	}
	if input.Image != nil || input.ImageUpload != nil {
		fields = append(fields, "image")
	}
	return strings.Join(fields, ",")
}
