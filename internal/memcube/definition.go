package memcube

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Definition is the YAML form of a cube.
//
//	name: Sales
//	dimensions:
//	  - name: Time
//	    levels: [Year, Quarter]
//	    members:
//	      - name: "2024"
//	        children: [{name: Q1}, {name: Q2}]
//	measures: [Amount]
//	cells:
//	  - at: ["[Time].[2024].[Q1]", "[Measures].[Amount]"]
//	    value: 10
type Definition struct {
	Name       string         `yaml:"name"`
	Dimensions []DimensionDef `yaml:"dimensions"`
	Measures   []string       `yaml:"measures"`
	Cells      []CellDef      `yaml:"cells"`
}

// DimensionDef describes one dimension and its single hierarchy.
type DimensionDef struct {
	Name    string      `yaml:"name"`
	Levels  []string    `yaml:"levels"`
	All     bool        `yaml:"all"`
	Default string      `yaml:"default,omitempty"`
	Members []MemberDef `yaml:"members"`
}

// MemberDef is a member and its children, one level deeper.
type MemberDef struct {
	Name     string      `yaml:"name"`
	Children []MemberDef `yaml:"children,omitempty"`
}

// CellDef is a fact at a leaf coordinate: one member of every dimension,
// measures included.
type CellDef struct {
	At    []string `yaml:"at"`
	Value float64  `yaml:"value"`
}

// Decode reads a definition. Unknown fields are rejected.
func Decode(r io.Reader) (Definition, error) {
	var def Definition
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return Definition{}, fmt.Errorf("decode cube definition: %w", err)
	}
	return def, nil
}

// LoadFile reads and builds the cube defined in path.
func LoadFile(path string) (*Cube, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cube definition: %w", err)
	}
	defer f.Close()

	def, err := Decode(f)
	if err != nil {
		return nil, err
	}
	return Build(def)
}
