package costing

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/solefab/rndtrack/internal/rnd/entity"
)

type seedLine struct {
	id    string
	label string
}

// 每个项目都有的固定行项
var seeds = map[entity.CostCategory][]seedLine{
	entity.CostUpper: {
		{"upper_leather", "Upper Leather"},
		{"lining", "Lining"},
		{"reinforcement", "Reinforcement"},
		{"thread", "Thread"},
		{"print_embroidery", "Print / Embroidery"},
	},
	entity.CostComponent: {
		{"outsole", "Outsole"},
		{"midsole", "Midsole"},
		{"insole", "Insole"},
		{"heel_counter", "Heel Counter"},
		{"toe_puff", "Toe Puff"},
		{"shank", "Shank"},
	},
	entity.CostMaterial: {
		{"adhesive", "Adhesive"},
		{"foam", "Foam"},
		{"laces", "Laces"},
		{"eyelets", "Eyelets"},
		{"labels", "Labels"},
	},
	entity.CostPackaging: {
		{"shoe_box", "Shoe Box"},
		{"tissue", "Tissue Paper"},
		{"carton", "Export Carton"},
		{"hang_tag", "Hang Tag"},
	},
	entity.CostLabourOverhead: {
		{"cutting", "Cutting"},
		{"stitching", "Stitching"},
		{"lasting", "Lasting"},
		{"finishing", "Finishing"},
		{"overhead", "Factory Overhead"},
	},
	entity.CostMiscellaneous: {
		{"testing", "Lab Testing"},
		{"sampling", "Sampling"},
		{"freight", "Inbound Freight"},
	},
}

// NewBreakdown returns an empty breakdown holding every seed line at zero.
func NewBreakdown() entity.CostBreakdown {
	b := entity.CostBreakdown{
		Sections:            make([]entity.CostSection, 0, len(entity.CostCategories)),
		LabourOverheadTotal: decimal.Zero,
	}
	for _, cat := range entity.CostCategories {
		sec := entity.CostSection{Category: cat}
		for _, s := range seeds[cat] {
			sec.Lines = append(sec.Lines, entity.CostLine{ID: s.id, Label: s.label, Amount: decimal.Zero})
		}
		b.Sections = append(b.Sections, sec)
	}
	return b
}

// IsSeed reports whether id names a fixed line of cat.
func IsSeed(cat entity.CostCategory, id string) bool {
	for _, s := range seeds[cat] {
		if s.id == id {
			return true
		}
	}
	return false
}

func knownCategory(cat entity.CostCategory) bool {
	_, ok := seeds[cat]
	return ok
}

// Normalize orders sections by category, fills in missing categories and
// seed lines, and validates every line. Custom lines sent without an id get
// a fresh one. The input is not modified.
func Normalize(b entity.CostBreakdown) (entity.CostBreakdown, error) {
	byCat := make(map[entity.CostCategory][]entity.CostLine, len(b.Sections))
	for _, sec := range b.Sections {
		if !knownCategory(sec.Category) {
			return b, fmt.Errorf("%w: %q", ErrUnknownCategory, sec.Category)
		}
		byCat[sec.Category] = append(byCat[sec.Category], sec.Lines...)
	}
	if b.LabourOverheadTotal.IsNegative() {
		return b, fmt.Errorf("%w: labour_overhead_total", ErrNegativeAmount)
	}

	out := entity.CostBreakdown{LabourOverheadTotal: b.LabourOverheadTotal}
	for _, cat := range entity.CostCategories {
		given := byCat[cat]
		seen := make(map[string]bool, len(given))
		sec := entity.CostSection{Category: cat}

		for _, s := range seeds[cat] {
			line := entity.CostLine{ID: s.id, Label: s.label, Amount: decimal.Zero}
			n := 0
			for _, g := range given {
				if g.ID == s.id {
					line.Amount = g.Amount
					n++
				}
			}
			if n > 1 {
				return b, fmt.Errorf("%w: duplicate id %s/%s", ErrInvalidLineItem, cat, s.id)
			}
			if line.Amount.IsNegative() {
				return b, fmt.Errorf("%w: %s/%s", ErrNegativeAmount, cat, s.id)
			}
			seen[s.id] = true
			sec.Lines = append(sec.Lines, line)
		}

		for _, g := range given {
			if IsSeed(cat, g.ID) {
				continue
			}
			if seen[g.ID] {
				return b, fmt.Errorf("%w: duplicate id %s/%s", ErrInvalidLineItem, cat, g.ID)
			}
			label := strings.TrimSpace(g.Label)
			if label == "" {
				return b, fmt.Errorf("%w: %s line needs a label", ErrInvalidLineItem, cat)
			}
			id := g.ID
			if id == "" {
				id = newCustomID(sec)
			}
			if g.Amount.IsNegative() {
				return b, fmt.Errorf("%w: %s/%s", ErrNegativeAmount, cat, id)
			}
			seen[id] = true
			sec.Lines = append(sec.Lines, entity.CostLine{ID: id, Label: label, Amount: g.Amount, Custom: true})
		}
		out.Sections = append(out.Sections, sec)
	}
	return out, nil
}

// Validate checks b the way Normalize does without building a copy.
func Validate(b entity.CostBreakdown) error {
	_, err := Normalize(b)
	return err
}

func sectionIndex(b entity.CostBreakdown, cat entity.CostCategory) int {
	for i, sec := range b.Sections {
		if sec.Category == cat {
			return i
		}
	}
	return -1
}

// clone copies the sections so edits never alias the caller's slices.
func clone(b entity.CostBreakdown) entity.CostBreakdown {
	out := entity.CostBreakdown{LabourOverheadTotal: b.LabourOverheadTotal}
	out.Sections = make([]entity.CostSection, len(b.Sections))
	for i, sec := range b.Sections {
		lines := make([]entity.CostLine, len(sec.Lines))
		copy(lines, sec.Lines)
		out.Sections[i] = entity.CostSection{Category: sec.Category, Lines: lines}
	}
	return out
}

// AddItem appends a custom line to cat. A nil amount means 0.
func AddItem(b entity.CostBreakdown, cat entity.CostCategory, label string, amount *decimal.Decimal) (entity.CostBreakdown, string, error) {
	if !knownCategory(cat) {
		return b, "", fmt.Errorf("%w: %q", ErrUnknownCategory, cat)
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return b, "", fmt.Errorf("%w: item name is required", ErrInvalidLineItem)
	}
	amt := decimal.Zero
	if amount != nil {
		amt = *amount
	}
	if amt.IsNegative() {
		return b, "", fmt.Errorf("%w: %s", ErrNegativeAmount, label)
	}

	out := clone(b)
	idx := sectionIndex(out, cat)
	if idx < 0 {
		out.Sections = append(out.Sections, entity.CostSection{Category: cat})
		idx = len(out.Sections) - 1
	}

	id := newCustomID(out.Sections[idx])
	out.Sections[idx].Lines = append(out.Sections[idx].Lines, entity.CostLine{
		ID:     id,
		Label:  label,
		Amount: amt,
		Custom: true,
	})
	return out, id, nil
}

func newCustomID(sec entity.CostSection) string {
	for {
		id := "custom-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
		taken := false
		for _, l := range sec.Lines {
			if l.ID == id {
				taken = true
				break
			}
		}
		if !taken {
			return id
		}
	}
}

// RemoveItem deletes a custom line from cat only.
func RemoveItem(b entity.CostBreakdown, cat entity.CostCategory, id string) (entity.CostBreakdown, error) {
	if IsSeed(cat, id) {
		return b, fmt.Errorf("%w: %s/%s", ErrSeedLine, cat, id)
	}
	idx := sectionIndex(b, cat)
	if idx < 0 {
		return b, fmt.Errorf("%w: %s/%s", ErrLineNotFound, cat, id)
	}
	out := clone(b)
	lines := out.Sections[idx].Lines
	for i, l := range lines {
		if l.ID == id {
			out.Sections[idx].Lines = append(lines[:i], lines[i+1:]...)
			return out, nil
		}
	}
	return b, fmt.Errorf("%w: %s/%s", ErrLineNotFound, cat, id)
}

// SetAmount updates one line's amount.
func SetAmount(b entity.CostBreakdown, cat entity.CostCategory, id string, amount decimal.Decimal) (entity.CostBreakdown, error) {
	if amount.IsNegative() {
		return b, fmt.Errorf("%w: %s/%s", ErrNegativeAmount, cat, id)
	}
	idx := sectionIndex(b, cat)
	if idx < 0 {
		return b, fmt.Errorf("%w: %s/%s", ErrLineNotFound, cat, id)
	}
	out := clone(b)
	for i, l := range out.Sections[idx].Lines {
		if l.ID == id {
			out.Sections[idx].Lines[i].Amount = amount
			return out, nil
		}
	}
	return b, fmt.Errorf("%w: %s/%s", ErrLineNotFound, cat, id)
}

// SetLabourOverheadTotal sets the directly entered Labour+Overhead figure.
func SetLabourOverheadTotal(b entity.CostBreakdown, amount decimal.Decimal) (entity.CostBreakdown, error) {
	if amount.IsNegative() {
		return b, fmt.Errorf("%w: labour_overhead_total", ErrNegativeAmount)
	}
	out := clone(b)
	out.LabourOverheadTotal = amount
	return out, nil
}
