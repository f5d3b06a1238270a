package helper

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type Pagination[T any] struct {
	Page  int  `json:"page"`
	Size  int  `json:"size"`
	Total *int `json:"total"`
	Items []T  `json:"items"`
}

func GetPagination[T any](c fiber.Ctx, defaultSize int) Pagination[T] {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}

	size, _ := strconv.Atoi(c.Query("size", strconv.Itoa(defaultSize)))
	if size < 1 {
		size = 1
	} else if size > 100 {
		size = 100
	}

	return Pagination[T]{
		Page:  page,
		Size:  size,
		Total: nil,
		Items: []T{},
	}
}

// Fill slices items into the requested page and records the total.
func (p *Pagination[T]) Fill(items []T) {
	total := len(items)
	p.Total = &total
	if p.Size < 1 {
		p.Size = 1
	}
	if p.Page < 1 {
		p.Page = 1
	}

	// Compare page counts first, (Page-1)*Size overflows for huge pages
	pages := total / p.Size
	if total%p.Size != 0 {
		pages++
	}
	if p.Page > pages {
		p.Items = []T{}
		return
	}
	start := (p.Page - 1) * p.Size
	end := total
	if total-start > p.Size {
		end = start + p.Size
	}
	p.Items = items[start:end]
}

var validate = validator.New()

func ValidateInput(input interface{}) error {
	return validate.Struct(input)
}
