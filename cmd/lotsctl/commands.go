package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/EmpoweredVote/lots-backend/internal/dbctx"
	"github.com/EmpoweredVote/lots-backend/internal/lots"
	"github.com/EmpoweredVote/lots-backend/internal/seeds"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newSeedUsesCmd(e *env) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed-uses",
		Short: "Insert or update the known uses",
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw []byte
			if file != "" {
				b, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("read %s: %w", file, err)
				}
				raw = b
			}
			if err := e.connect(); err != nil {
				return err
			}
			n, err := seeds.SeedUses(dbctx.Context{Ctx: cmd.Context()}, e.svc.Uses, raw, e.log)
			if err != nil {
				return err
			}
			e.invalidateExports(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d uses\n", n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file of uses (defaults to the built-in list)")
	return cmd
}

func newImportParcelsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "import-parcels <file.geojson>",
		Short: "Upsert parcels from a county GeoJSON export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			if err := e.connect(); err != nil {
				return err
			}
			res, err := e.parcels.Import(cmd.Context(), raw)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d parcels, skipped %d\n", res.Imported, res.Skipped)
			return nil
		},
	}
}

func newCreateLotsCmd(e *env) *cobra.Command {
	var (
		parcelNumbers []string
		geojsonFile   string
		allowOverlap  bool
	)
	cmd := &cobra.Command{
		Use:   "create-lots",
		Short: "Create lots from parcel numbers or a GeoJSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(parcelNumbers) == 0) == (geojsonFile == "") {
				return fmt.Errorf("pass either --parcel or --geojson")
			}
			if err := e.connect(); err != nil {
				return err
			}
			ctx := cmd.Context()

			var (
				res lots.CreateResult
				err error
			)
			if geojsonFile != "" {
				raw, rerr := os.ReadFile(geojsonFile)
				if rerr != nil {
					return fmt.Errorf("read %s: %w", geojsonFile, rerr)
				}
				res, err = e.svc.Creator.CreateForGeoms(ctx, raw, lots.DefaultCreateOptions(lots.ReasonDrawn))
			} else {
				byNumber, lerr := e.parcels.BySourceID(ctx, parcelNumbers)
				if lerr != nil {
					return lerr
				}
				ids := make([]uuid.UUID, 0, len(parcelNumbers))
				for _, n := range parcelNumbers {
					id, ok := byNumber[n]
					if !ok {
						return fmt.Errorf("parcel %s: %w", n, lots.ErrNotFound)
					}
					ids = append(ids, id)
				}
				res, err = e.svc.Creator.CreateForParcels(ctx, ids, allowOverlap, lots.DefaultCreateOptions(lots.ReasonParcels))
			}
			if err != nil {
				return err
			}
			e.invalidateExports(ctx)
			p := res.Place()
			fmt.Fprintf(cmd.OutOrStdout(), "created %s %s (%d lots)\n", p.Kind(), p.ID(), p.NumberOfLots())
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&parcelNumbers, "parcel", "p", nil, "county parcel number, repeatable")
	cmd.Flags().StringVar(&geojsonFile, "geojson", "", "GeoJSON file of polygons")
	cmd.Flags().BoolVar(&allowOverlap, "allow-overlap", false, "create lots even when they overlap existing ones")
	return cmd
}

func newGroupCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "group <lot-id> <lot-id>...",
		Short: "Merge lots into one group",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			if err := e.connect(); err != nil {
				return err
			}
			g, err := e.svc.Creator.GroupWith(cmd.Context(), ids[0], ids[1:]...)
			if err != nil {
				return err
			}
			e.invalidateExports(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "group %s: %s\n", g.ID, g.DisplayName())
			return nil
		},
	}
}

func newRecomputeCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "recompute-group <group-id>...",
		Short: "Rebuild group polygons and centroids from their members",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			if err := e.connect(); err != nil {
				return err
			}
			defer e.invalidateExports(cmd.Context())
			for _, id := range ids {
				if err := e.svc.Groups.Recompute(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "recomputed %s\n", id)
			}
			return nil
		},
	}
}

func newAddressesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "addresses <address>...",
		Short: "Expand ranged street addresses such as \"1-9 Main St\"",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seen := map[string]bool{}
			var out []string
			for _, a := range args {
				for _, addr := range lots.AddressesInRange(a) {
					if !seen[addr] {
						seen[addr] = true
						out = append(out, addr)
					}
				}
			}
			sort.Strings(out)
			for _, addr := range out {
				fmt.Fprintln(cmd.OutOrStdout(), addr)
			}
			return nil
		},
	}
}

func parseIDs(args []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(args))
	for _, a := range args {
		id, err := uuid.Parse(a)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", a, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
