package cli

import (
	"fmt"
	"io"
	"os"

	"shopify-order-sync/internal/apperror"
	"shopify-order-sync/internal/model"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// storeFile is the YAML layout read by "store import".
type storeFile struct {
	Stores []*model.Store `yaml:"stores"`
}

// itemFile is the YAML layout read by "item import".
type itemFile struct {
	Items []struct {
		Code     string   `yaml:"code"`
		Name     string   `yaml:"name"`
		SKU      string   `yaml:"sku"`
		Disabled bool     `yaml:"disabled"`
		Barcodes []string `yaml:"barcodes"`
		Links    []struct {
			Store     string `yaml:"store"`
			ProductID string `yaml:"product_id"`
			VariantID string `yaml:"variant_id"`
		} `yaml:"links"`
	} `yaml:"items"`
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func newStoreCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Manage store settings",
	}

	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Create or replace stores and their mappings from a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := requireFlag(cmd, "file")
			if err != nil {
				return err
			}

			var file storeFile
			if err := readYAML(path, &file); err != nil {
				return err
			}
			if len(file.Stores) == 0 {
				return fmt.Errorf("%s lists no stores", path)
			}
			for _, s := range file.Stores {
				if s.ID == "" || s.ShopDomain == "" {
					return fmt.Errorf("every store needs an id and a shop_domain")
				}
			}

			a, err := o.open()
			if err != nil {
				return err
			}

			saved := make([]string, 0, len(file.Stores))
			for _, s := range file.Stores {
				if err := a.Repos.Stores.Save(cmd.Context(), s); err != nil {
					return err
				}
				saved = append(saved, s.ID)
			}
			return o.render(cmd, map[string][]string{"saved": saved}, func(w io.Writer) {
				for _, id := range saved {
					fmt.Fprintf(w, "saved store %s\n", id)
				}
			})
		},
	}
	importCmd.Flags().StringP("file", "f", "", "YAML file (required)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List configured stores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.open()
			if err != nil {
				return err
			}

			stores, err := a.Repos.Stores.List(cmd.Context())
			if err != nil {
				return err
			}
			return o.render(cmd, stores, func(w io.Writer) {
				for _, s := range stores {
					fmt.Fprintf(w, "%s\t%s\t%s\n", s.ID, s.ShopDomain, s.Company)
				}
			})
		},
	}

	cmd.AddCommand(importCmd, listCmd)
	return cmd
}

func newItemCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Manage the item catalog",
	}

	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Upsert catalog items, barcodes and store links from a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := requireFlag(cmd, "file")
			if err != nil {
				return err
			}

			var file itemFile
			if err := readYAML(path, &file); err != nil {
				return err
			}

			a, err := o.open()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			links := 0
			for _, it := range file.Items {
				if it.Code == "" {
					return fmt.Errorf("every item needs a code")
				}
				item := &model.Item{ItemCode: it.Code, ItemName: it.Name, SKU: it.SKU, Disabled: it.Disabled}
				for _, b := range it.Barcodes {
					item.Barcodes = append(item.Barcodes, model.ItemBarcode{Barcode: b})
				}
				if err := a.Repos.Items.Upsert(ctx, item); err != nil {
					return err
				}

				for _, l := range it.Links {
					existing, err := a.Repos.Items.FindByStoreLink(ctx, l.Store, l.VariantID, l.ProductID)
					if err == nil && existing.ItemCode == it.Code {
						continue
					}
					if err != nil && !apperror.IsNotFound(err) {
						return err
					}
					link := &model.ItemStoreLink{
						ItemCode:         it.Code,
						StoreID:          l.Store,
						ShopifyProductID: l.ProductID,
						ShopifyVariantID: l.VariantID,
					}
					if err := a.Repos.Items.LinkStore(ctx, link); err != nil {
						return err
					}
					links++
				}
			}

			result := map[string]int{"items": len(file.Items), "links": links}
			return o.render(cmd, result, func(w io.Writer) {
				fmt.Fprintf(w, "upserted %d items, created %d store links\n", result["items"], result["links"])
			})
		},
	}
	importCmd.Flags().StringP("file", "f", "", "YAML file (required)")

	cmd.AddCommand(importCmd)
	return cmd
}
