// Package sidecar stores per-folder JSON documents next to the extracted
// archive: costs, quotation name, grand total and the parts table.
package sidecar

import (
	"encoding/json"
	"errors"
	"io/fs"
	"path/filepath"
	"strconv"
	"time"

	"quotedesk/internal/folders"
	"quotedesk/internal/fsutil"
)

const (
	PartsFile      = "parts.json"
	CostsFile      = "costs.json"
	QuotationFile  = "quotation.json"
	GrandTotalFile = "grand_total.json"
)

// Doc is a decoded JSON object. Numbers are json.Number.
type Doc = map[string]any

// Stores bundles every sidecar kind over one registry and one set of locks.
type Stores struct {
	Costs      *KeyedStore
	Quotation  *SingleStore
	GrandTotal *SingleStore
	Parts      *Parts
}

func NewStores(reg *folders.Registry) *Stores {
	b := &base{reg: reg, locks: NewLocker(), now: time.Now}
	return &Stores{
		Costs: &KeyedStore{
			base:       b,
			filename:   CostsFile,
			keyField:   "filename",
			stampField: "_saved_at",
			label:      "cost data",
		},
		Quotation: &SingleStore{
			base:     b,
			filename: QuotationFile,
			field:    "quotationName",
			label:    "quotation",
			present:  truthy,
		},
		GrandTotal: &SingleStore{
			base:     b,
			filename: GrandTotalFile,
			field:    "grand_total",
			label:    "grand total",
			present:  notNull,
		},
		Parts: &Parts{base: b},
	}
}

type base struct {
	reg   *folders.Registry
	locks *Locker
	now   func() time.Time
}

func (b *base) stamp() string {
	return b.now().UTC().Format(time.RFC3339Nano)
}

// load reads a document; missing reports whether the file was absent.
func load(p string) (doc Doc, missing bool, err error) {
	doc = Doc{}
	if err := fsutil.ReadJSON(p, &doc); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Doc{}, true, nil
		}
		return nil, false, err
	}
	if doc == nil {
		doc = Doc{}
	}
	return doc, false, nil
}

// truthy follows the usual JSON client notion of "set": not null, not
// false, not an empty string, array or object, not zero.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case json.Number:
		f, err := x.Float64()
		return err != nil || f != 0
	case float64:
		return x != 0
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	default:
		return true
	}
}

func notNull(v any) bool { return v != nil }

// keyString turns a payload key into a document key. Strings are used as is;
// numbers use their JSON text.
func keyString(v any) (string, bool) {
	if !truthy(v) {
		return "", false
	}
	switch x := v.(type) {
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	default:
		return "", false
	}
}

func (b *base) file(folder, name string) (string, error) {
	dir, err := b.reg.Dir(folder)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}
