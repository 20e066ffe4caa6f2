package models

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed categories.yaml
var categoriesYAML []byte

var (
	categoriesOnce sync.Once
	categoryList   []string
	categoryIndex  map[string]string
)

func loadCategories() {
	var doc struct {
		Categories []string `yaml:"categories"`
	}
	if err := yaml.Unmarshal(categoriesYAML, &doc); err != nil {
		panic(fmt.Sprintf("models: invalid categories.yaml: %v", err))
	}
	categoryList = doc.Categories
	categoryIndex = make(map[string]string, len(doc.Categories))
	for _, c := range doc.Categories {
		categoryIndex[strings.ToLower(c)] = c
	}
}

// SkillCategories returns the catalog of skill categories in display order.
func SkillCategories() []string {
	categoriesOnce.Do(loadCategories)
	out := make([]string, len(categoryList))
	copy(out, categoryList)
	return out
}

// CanonicalCategory resolves a case-insensitive category name to its catalog spelling.
func CanonicalCategory(name string) (string, bool) {
	categoriesOnce.Do(loadCategories)
	c, ok := categoryIndex[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}
