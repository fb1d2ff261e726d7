package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Vertical is a marketplace category sharing the codebase with its own rules.
type Vertical struct {
	Name             string
	DisplayName      string
	VendorFeePercent decimal.Decimal
}

// Verticals resolves per-vertical rules, falling back to a default fee.
type Verticals struct {
	byName     map[string]Vertical
	defaultFee decimal.Decimal
}

type verticalsFile struct {
	Verticals map[string]struct {
		DisplayName      string `yaml:"display_name"`
		VendorFeePercent string `yaml:"vendor_fee_percent"`
	} `yaml:"verticals"`
}

// LoadVerticals reads the vertical rules file. A missing file is not an error:
// every vertical then uses defaultFeePercent.
func LoadVerticals(path, defaultFeePercent string) (*Verticals, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return ParseVerticals(nil, defaultFeePercent)
	}
	if err != nil {
		return nil, fmt.Errorf("open verticals file: %w", err)
	}
	defer f.Close()

	return ParseVerticals(f, defaultFeePercent)
}

func ParseVerticals(r io.Reader, defaultFeePercent string) (*Verticals, error) {
	def, err := parsePercent(defaultFeePercent)
	if err != nil {
		return nil, fmt.Errorf("default fee percent: %w", err)
	}
	v := &Verticals{byName: map[string]Vertical{}, defaultFee: def}
	if r == nil {
		return v, nil
	}

	var file verticalsFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode verticals: %w", err)
	}
	for name, raw := range file.Verticals {
		fee := def
		if raw.VendorFeePercent != "" {
			fee, err = parsePercent(raw.VendorFeePercent)
			if err != nil {
				return nil, fmt.Errorf("vertical %s: %w", name, err)
			}
		}
		v.byName[name] = Vertical{Name: name, DisplayName: raw.DisplayName, VendorFeePercent: fee}
	}
	return v, nil
}

func (v *Verticals) Get(name string) Vertical {
	if vt, ok := v.byName[name]; ok {
		return vt
	}
	return Vertical{Name: name, DisplayName: name, VendorFeePercent: v.defaultFee}
}

func parsePercent(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse percent %q: %w", s, err)
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, fmt.Errorf("percent %q out of range", s)
	}
	return d, nil
}
