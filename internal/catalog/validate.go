package catalog

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ProductInput is the admin payload for a new product.
type ProductInput struct {
	Name        string          `json:"name" validate:"required,max=200"`
	Price       decimal.Decimal `json:"price" validate:"gte=0"`
	Category    string          `json:"category" validate:"required,max=100"`
	Image       string          `json:"image" validate:"omitempty,url"`
	Description string          `json:"description" validate:"max=2000"`
	Stock       int             `json:"stock" validate:"gte=0"`
}

// ProductPatch carries the fields of a merge update; nil fields are kept.
type ProductPatch struct {
	Name        *string          `json:"name"`
	Price       *decimal.Decimal `json:"price"`
	Category    *string          `json:"category"`
	Image       *string          `json:"image"`
	Description *string          `json:"description"`
	Stock       *int             `json:"stock"`
}

func (p ProductPatch) apply(to domain.Product) ProductInput {
	in := inputOf(to)
	if p.Name != nil {
		in.Name = *p.Name
	}
	if p.Price != nil {
		in.Price = *p.Price
	}
	if p.Category != nil {
		in.Category = *p.Category
	}
	if p.Image != nil {
		in.Image = *p.Image
	}
	if p.Description != nil {
		in.Description = *p.Description
	}
	if p.Stock != nil {
		in.Stock = *p.Stock
	}
	return in
}

func inputOf(p domain.Product) ProductInput {
	return ProductInput{
		Name:        p.Name,
		Price:       p.Price,
		Category:    p.Category,
		Image:       p.Image,
		Description: p.Description,
		Stock:       p.Stock,
	}
}

// InvalidProductError lists the rejected fields by their json name.
type InvalidProductError struct {
	Fields map[string]string
}

func (e *InvalidProductError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return fmt.Sprintf("%s: %s", ErrInvalidProduct, strings.Join(names, ", "))
}

func (e *InvalidProductError) Unwrap() error {
	return ErrInvalidProduct
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Normalize trims the free-text fields.
func (in ProductInput) Normalize() ProductInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	in.Image = strings.TrimSpace(in.Image)
	in.Description = strings.TrimSpace(in.Description)
	return in
}

func (in ProductInput) Validate() error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return &InvalidProductError{Fields: fields}
}
