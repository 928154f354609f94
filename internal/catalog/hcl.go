package catalog

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

type catalogFile struct {
	Variants []variantBlock `hcl:"variant,block"`
}

type variantBlock struct {
	Name       string          `hcl:"name,label"`
	Categories []categoryBlock `hcl:"category,block"`
}

type categoryBlock struct {
	Name  string   `hcl:"name,label"`
	Limit int      `hcl:"limit,optional"`
	Slots []string `hcl:"slots"`
}

// Load reads a catalog from an HCL file. A missing file yields the built-in
// default catalog so the server can come up without one.
func Load(filename string) (*Catalog, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return Default(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse catalog file: %s", diags.Error())
	}

	var cf catalogFile
	diags = gohcl.DecodeBody(file.Body, nil, &cf)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode catalog file: %s", diags.Error())
	}

	variants := make(map[string][]Category, len(cf.Variants))
	for _, vb := range cf.Variants {
		cats := make([]Category, 0, len(vb.Categories))
		for _, cb := range vb.Categories {
			cats = append(cats, Category{Name: cb.Name, Limit: cb.Limit, Slots: cb.Slots})
		}
		variants[vb.Name] = cats
	}
	return New(variants)
}

// Default returns a small built-in catalog suitable for demos and tests.
func Default() *Catalog {
	c, err := New(map[string][]Category{
		DefaultVariant: {
			{Name: "numbers", Slots: []string{
				"B-1", "B-2", "B-3", "B-4", "B-5", "I-16", "I-17", "I-18", "I-19", "I-20",
				"N-31", "N-32", "N-33", "N-34", "N-35", "G-46", "G-47", "G-48", "G-49", "G-50",
				"O-61", "O-62", "O-63", "O-64", "O-65", "O-66", "O-67", "O-68", "O-69", "O-70",
			}},
		},
	})
	if err != nil {
		// The built-in catalog is static; failing to build it is a bug.
		panic(err)
	}
	return c
}
