package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"time"

	"github.com/h4ks-com/fieldops/internal/models"
	"github.com/h4ks-com/fieldops/internal/server"
	"github.com/h4ks-com/fieldops/internal/services"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

type SeedFile struct {
	Users     []SeedUser     `json:"users"`
	Plots     []SeedPlot     `json:"plots"`
	Campaigns []SeedCampaign `json:"campaigns"`
	Items     []SeedItem     `json:"items"`
}

type SeedUser struct {
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	Active   *bool  `json:"active"`
}

type SeedPlot struct {
	Code   string  `json:"code"`
	Name   string  `json:"name"`
	AreaHa float64 `json:"area_ha"`
}

type SeedCampaign struct {
	Name      string   `json:"name"`
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
	Open      *bool    `json:"open"`
	Periods   []string `json:"periods"`
}

type SeedItem struct {
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	BaseUnit     string          `json:"base_unit"`
	MinimumStock decimal.Decimal `json:"minimum_stock"`
	InitialStock decimal.Decimal `json:"initial_stock"`
	Metadata     map[string]any  `json:"metadata"`
}

var (
	importFile    string
	strictMode    bool
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]{1,50}$`)
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Seed users, plots, campaigns and inventory items from JSON",
	Long: `Seed reference data from a JSON file.

Expected JSON format:
{
  "users": [{"username": "ana", "full_name": "Ana", "role": "supervisor"}],
  "plots": [{"code": "L01", "name": "Lote 1", "area_ha": 2.5}],
  "campaigns": [{"name": "2025", "start_date": "2025-01-01", "periods": ["S01"]}],
  "items": [{"code": "UREA", "name": "Urea", "category": "consumable",
             "base_unit": "kg", "initial_stock": "10", "minimum_stock": "1"}]
}

Users and plots are upserted. Items whose code already exists are skipped.
Items are created on behalf of the first active supervisor in the file.
Use --strict to fail on any error instead of skipping the entry.`,
	Example: `  fieldops import -f seed.json
  fieldops import -f seed.json --strict`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd.Context())
	},
}

func init() {
	importCmd.Flags().StringVarP(&importFile, "file", "f", "", "JSON file to import (required)")
	importCmd.Flags().BoolVar(&strictMode, "strict", false, "Fail on any validation error")
	importCmd.MarkFlagRequired("file")
}

type importStats struct {
	imported int
	skipped  int
}

// skip records a failed entry, or aborts when running in strict mode.
func (s *importStats) skip(kind, key string, err error) error {
	if strictMode {
		return fmt.Errorf("import failed for %s %s: %w", kind, key, err)
	}
	slog.Warn("skipped entry", "kind", kind, "key", key, "error", err)
	s.skipped++
	return nil
}

func runImport(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if importFile == "" {
		return fmt.Errorf("file path is required")
	}

	data, err := os.ReadFile(importFile)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var seed SeedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}

	cfg, db, err := bootstrap()
	if err != nil {
		return err
	}
	svc := server.NewServices(db, cfg.JWT.Secret)

	slog.Info("starting import", "file", importFile,
		"users", len(seed.Users), "plots", len(seed.Plots),
		"campaigns", len(seed.Campaigns), "items", len(seed.Items))

	stats := &importStats{}
	var importer *models.User

	for _, u := range seed.Users {
		if !usernameRegex.MatchString(u.Username) {
			if err := stats.skip("user", u.Username, errors.New("invalid username format")); err != nil {
				return err
			}
			continue
		}
		role := u.Role
		if role == "" {
			role = models.RoleWorker
		}
		active := u.Active == nil || *u.Active
		user, err := svc.Catalog.EnsureUser(u.Username, u.FullName, role, active)
		if err != nil {
			if err := stats.skip("user", u.Username, err); err != nil {
				return err
			}
			continue
		}
		if importer == nil && user.Active && user.Role == models.RoleSupervisor {
			importer = user
		}
		stats.imported++
	}

	for _, p := range seed.Plots {
		if _, err := svc.Catalog.EnsurePlot(p.Code, p.Name, p.AreaHa); err != nil {
			if err := stats.skip("plot", p.Code, err); err != nil {
				return err
			}
			continue
		}
		stats.imported++
	}

	for _, c := range seed.Campaigns {
		if err := importCampaign(svc, c); err != nil {
			if err := stats.skip("campaign", c.Name, err); err != nil {
				return err
			}
			continue
		}
		stats.imported++
	}

	if len(seed.Items) > 0 && importer == nil {
		return fmt.Errorf("items need an active supervisor in the users section")
	}
	actor := services.Actor{}
	if importer != nil {
		actor = services.ActorFromUser(importer)
	}
	for _, it := range seed.Items {
		_, err := svc.Inventory.CreateItem(ctx, actor, services.CreateItemInput{
			Code:         it.Code,
			Name:         it.Name,
			Category:     it.Category,
			BaseUnit:     it.BaseUnit,
			MinimumStock: it.MinimumStock,
			InitialStock: it.InitialStock,
			Metadata:     it.Metadata,
		})
		if err != nil {
			if err := stats.skip("item", it.Code, err); err != nil {
				return err
			}
			continue
		}
		stats.imported++
	}

	slog.Info("import complete", "imported", stats.imported, "skipped", stats.skipped)
	return nil
}

func importCampaign(svc *server.Services, c SeedCampaign) error {
	start, err := time.Parse(time.DateOnly, c.StartDate)
	if err != nil {
		return fmt.Errorf("start_date: %w", err)
	}
	var end *time.Time
	if c.EndDate != "" {
		parsed, err := time.Parse(time.DateOnly, c.EndDate)
		if err != nil {
			return fmt.Errorf("end_date: %w", err)
		}
		end = &parsed
	}
	open := c.Open == nil || *c.Open
	_, _, err = svc.Catalog.CreateCampaign(c.Name, start, end, open, c.Periods)
	return err
}
