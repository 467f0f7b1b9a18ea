package seeds

import (
	_ "embed"
	"fmt"

	"github.com/EmpoweredVote/lots-backend/internal/dbctx"
	"github.com/EmpoweredVote/lots-backend/internal/logger"
	"github.com/EmpoweredVote/lots-backend/internal/lots"
	"github.com/goccy/go-yaml"
)

//go:embed uses.yaml
var defaultUses []byte

type useFile struct {
	Uses []struct {
		Name    string `yaml:"name"`
		Slug    string `yaml:"slug"`
		Visible bool   `yaml:"visible"`
	} `yaml:"uses"`
}

// ParseUses reads a uses YAML document.
func ParseUses(raw []byte) ([]lots.Use, error) {
	var f useFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse uses: %w", err)
	}
	out := make([]lots.Use, 0, len(f.Uses))
	for i, u := range f.Uses {
		if u.Name == "" {
			return nil, fmt.Errorf("use %d has no name", i)
		}
		out = append(out, lots.Use{Name: u.Name, Slug: u.Slug, Visible: u.Visible})
	}
	return out, nil
}

// SeedUses upserts the uses in raw, or the built-in list when raw is empty.
func SeedUses(dbc dbctx.Context, repo lots.UseRepository, raw []byte, log *logger.Logger) (int, error) {
	if len(raw) == 0 {
		raw = defaultUses
	}
	uses, err := ParseUses(raw)
	if err != nil {
		return 0, err
	}
	for i := range uses {
		if err := repo.Upsert(dbc, &uses[i]); err != nil {
			return 0, fmt.Errorf("seed use %q: %w", uses[i].Name, err)
		}
	}
	log.Info("seeded uses", "count", len(uses))
	return len(uses), nil
}
