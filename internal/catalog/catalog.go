// Package catalog хранит прайс категорий встреч
package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Category категория встречи и её стоимость
type Category struct {
	Name            string `yaml:"-"`
	Title           string `yaml:"title"`
	Price           int64  `yaml:"price"` // в копейках
	RequiresPayment bool   `yaml:"requires_payment"`
}

// Catalog неизменяемая таблица категорий
type Catalog struct {
	categories map[string]Category
}

type file struct {
	Categories map[string]Category `yaml:"categories"`
}

// New собирает каталог из готовых категорий
func New(categories ...Category) *Catalog {
	c := &Catalog{categories: make(map[string]Category, len(categories))}
	for _, cat := range categories {
		c.categories[cat.Name] = cat
	}
	return c
}

// Load читает каталог из YAML файла
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse разбирает YAML каталога
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	if len(f.Categories) == 0 {
		return nil, fmt.Errorf("catalog has no categories")
	}

	c := &Catalog{categories: make(map[string]Category, len(f.Categories))}
	for name, cat := range f.Categories {
		if cat.RequiresPayment && cat.Price <= 0 {
			return nil, fmt.Errorf("category %q requires payment but has no price", name)
		}
		cat.Name = name
		c.categories[name] = cat
	}

	return c, nil
}

// Lookup возвращает категорию по имени
func (c *Catalog) Lookup(name string) (Category, bool) {
	cat, ok := c.categories[name]
	return cat, ok
}
