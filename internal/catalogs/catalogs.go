// Package catalogs loads the immutable item and cooking-method catalogs that
// stations and the recipe prompt are built from.
package catalogs

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"kitchencraft.ai/internal/cooking"
)

//go:embed defaults/*.json
var defaultsFS embed.FS

type Catalogs struct {
	Items   ItemCatalog
	Methods MethodCatalog
}

type ItemCatalog struct {
	IDs    []string
	Defs   map[string]ItemDef
	Digest string
}

type ItemDef struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Kind          string  `json:"kind"` // "INGREDIENT","TOOL","CONTAINER"
	Edible        bool    `json:"edible,omitempty"`
	Nutrition     float64 `json:"nutrition,omitempty"`
	Saturation    float64 `json:"saturation,omitempty"`
	Tool          string  `json:"tool,omitempty"`
	CapacityGrams int     `json:"capacity_grams,omitempty"`
}

const (
	KindIngredient = "INGREDIENT"
	KindTool       = "TOOL"
	KindContainer  = "CONTAINER"
)

// Source is the namespace part of the id ("minecraft" for "minecraft:egg").
func (d ItemDef) Source() string {
	if i := strings.IndexByte(d.ID, ':'); i > 0 {
		return d.ID[:i]
	}
	return "minecraft"
}

type MethodCatalog struct {
	Defs   []MethodDef
	ByID   map[string]MethodDef
	Digest string
}

type MethodDef struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Equipment []string `json:"equipment"`
	Action    string   `json:"action"`
}

// Default returns the built-in catalogs.
func Default() (*Catalogs, error) {
	sub, err := fs.Sub(defaultsFS, "defaults")
	if err != nil {
		return nil, err
	}
	return LoadFS(sub)
}

// Load reads items.json and methods.json from configDir.
func Load(configDir string) (*Catalogs, error) {
	return LoadFS(os.DirFS(configDir))
}

func LoadFS(fsys fs.FS) (*Catalogs, error) {
	var c Catalogs
	if err := loadItems(fsys, "items.json", &c.Items); err != nil {
		return nil, err
	}
	if err := loadMethods(fsys, "methods.json", &c.Methods); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadItems(fsys fs.FS, name string, out *ItemCatalog) error {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []ItemDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	out.Defs = make(map[string]ItemDef, len(defs))
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("%s: empty id", name)
		}
		if _, dup := out.Defs[d.ID]; dup {
			return fmt.Errorf("%s: duplicate id %s", name, d.ID)
		}
		switch d.Kind {
		case KindIngredient, KindContainer:
		case KindTool:
			if d.Tool != "" && cooking.ParseToolRole(d.Tool) == cooking.ToolNone {
				return fmt.Errorf("%s: %s: unknown tool role %q", name, d.ID, d.Tool)
			}
		default:
			return fmt.Errorf("%s: %s: bad kind %q", name, d.ID, d.Kind)
		}
		out.Defs[d.ID] = d
	}

	out.IDs = make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		out.IDs = append(out.IDs, id)
	}
	sort.Strings(out.IDs)
	return nil
}

func loadMethods(fsys fs.FS, name string, out *MethodCatalog) error {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []MethodDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	out.ByID = make(map[string]MethodDef, len(defs))
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("%s: empty id", name)
		}
		if _, dup := out.ByID[d.ID]; dup {
			return fmt.Errorf("%s: duplicate id %s", name, d.ID)
		}
		out.ByID[d.ID] = d
	}
	// Keep file order; the prompt numbers methods in this order.
	out.Defs = defs
	return nil
}

// Item builds a host item stack from a catalog entry. Containers are not
// items a station accepts and are reported as missing.
func (c *Catalogs) Item(id string, count int) (cooking.Item, bool) {
	d, ok := c.Items.Defs[id]
	if !ok || d.Kind == KindContainer {
		return cooking.Item{}, false
	}
	it := cooking.Item{
		ID:         d.ID,
		Name:       d.Name,
		Count:      count,
		Edible:     d.Edible,
		Nutrition:  d.Nutrition,
		Saturation: d.Saturation,
	}
	if d.Kind == KindTool {
		it.Tool = cooking.ParseToolRole(d.Tool)
		it.Utensil = it.Tool == cooking.ToolNone
	}
	return it, true
}

// ToolRole resolves the role of a held item. Unknown ids and non-tools are
// an empty hand.
func (c *Catalogs) ToolRole(id string) cooking.ToolRole {
	d, ok := c.Items.Defs[id]
	if !ok || d.Kind != KindTool {
		return cooking.ToolNone
	}
	return cooking.ParseToolRole(d.Tool)
}

// Ingredients returns ingredient defs grouped by source, both keys and
// entries in sorted order.
func (c *Catalogs) Ingredients() (sources []string, bySource map[string][]ItemDef) {
	bySource = map[string][]ItemDef{}
	for _, id := range c.Items.IDs {
		d := c.Items.Defs[id]
		if d.Kind != KindIngredient {
			continue
		}
		src := d.Source()
		if _, ok := bySource[src]; !ok {
			sources = append(sources, src)
		}
		bySource[src] = append(bySource[src], d)
	}
	sort.Strings(sources)
	return sources, bySource
}

// Tools returns tool defs in id order.
func (c *Catalogs) Tools() []ItemDef {
	var out []ItemDef
	for _, id := range c.Items.IDs {
		if d := c.Items.Defs[id]; d.Kind == KindTool {
			out = append(out, d)
		}
	}
	return out
}

// Container returns the container kind for a catalog id.
func (c *Catalogs) Container(id string) (cooking.ContainerKind, bool) {
	d, ok := c.Items.Defs[id]
	if !ok || d.Kind != KindContainer {
		return "", false
	}
	k, err := cooking.ParseContainerKind(strings.TrimPrefix(id, d.Source()+":"))
	if err != nil {
		return "", false
	}
	return k, true
}

// Digest covers both catalogs; it is stored with snapshots and indexed cooks.
func (c *Catalogs) Digest() string {
	return sha256Hex([]byte(c.Items.Digest + ":" + c.Methods.Digest))
}
