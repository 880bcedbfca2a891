// ciscoiot onboards Cisco IOT and Connected Car customers onto nG1.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/johngiles12345/cisco-iot-giles/internal/catalog"
	"github.com/johngiles12345/cisco-iot-giles/internal/config"
	"github.com/johngiles12345/cisco-iot-giles/internal/models"
	"github.com/johngiles12345/cisco-iot-giles/internal/ng1"
	"github.com/johngiles12345/cisco-iot-giles/internal/provision"
	"github.com/johngiles12345/cisco-iot-giles/internal/registry"
	"github.com/johngiles12345/cisco-iot-giles/internal/server"
	"github.com/spf13/cobra"
)

const asciiLogo = `
   ____ _                  ___ ___ _____
  / ___(_)___  ___ ___    |_ _/ _ \_   _|
 | |   | / __|/ __/ _ \    | | | | || |
 | |___| \__ \ (_| (_) |   | | |_| || |
  \____|_|___/\___\___/   |___\___/ |_|
`

const version = "v0.3.0"

func printBanner(mode string) {
	fmt.Print(asciiLogo + "\n")
	fmt.Printf("  ► Cisco IOT onboarding %s  |  nG1  |  Mode: %s\n\n", version, mode)
}

func main() {
	root := &cobra.Command{
		Use:   "ciscoiot",
		Short: "Cisco IOT customer onboarding for nG1",
		Long: `ciscoiot provisions network services, application services and dashboard
domains on nG1 for a new APN-based customer, then records the customer in
the local registry. Reruns reuse whatever already exists.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "Config file (default ./ciscoiot.yaml or $HOME/.ciscoiot/ciscoiot.yaml)")

	root.AddCommand(onboardCmd(), customersCmd(), emulatorCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// openClient builds an nG1 client and opens its session.
func openClient(ctx context.Context, cfg *config.Config) (*ng1.Client, error) {
	client, err := ng1.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := client.Open(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

// ── onboard ───────────────────────────────────────────────────────────────────

func onboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "onboard",
		Short: "Provision a new customer on nG1 and record it in the registry",
		Example: `  ciscoiot onboard --name Acme --type iot --apn Onstar01 --apn Onstar02 --dc Atlanta --dc Phoenix
  ciscoiot onboard --name Acme --type connectedcar --apn Onstar01=ATL-GGSN1,PHX-GGSN1 --dc Atlanta,Phoenix
  ciscoiot onboard --profile acme.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			printBanner("ONBOARD")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			profile, err := profileFromFlags(cmd)
			if err != nil {
				return err
			}
			dcs, err := catalog.Datacenters(cfg.DatacenterCatalog)
			if err != nil {
				return err
			}
			apps, err := catalog.Applications(cfg.ApplicationCatalog)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			client, err := openClient(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := client.Close(context.Background()); err != nil {
					fmt.Fprintf(os.Stderr, "  ! %v\n", err)
				}
			}()

			rc := config.NewRunContext(cfg)
			reg := registry.New(cfg.RegistryDir, cfg.RegistryPrefix)
			res, err := provision.NewOnboarder(rc, client, reg, dcs, apps).Run(ctx, *profile)
			if err != nil {
				return err
			}

			fmt.Printf("  ✓ Customer %s (%s) onboarded, run %s\n", profile.Name, profile.Type.Label(), rc.RunID())
			fmt.Printf("  ✓ Network services:     %d (%d created)\n", res.Network.Len(), res.Network.Created())
			fmt.Printf("  ✓ Application services: %d (%d created)\n", res.Applications.Len(), res.Applications.Created())
			fmt.Printf("  ✓ Domains:              %d\n", len(res.Tree))
			for _, d := range res.Domains {
				fmt.Printf("      %-8s %5d  %s\n", d.State, d.ID, d.Path)
			}
			fmt.Printf("  ✓ Registry:             %s\n", res.RegistryPath)
			return nil
		},
	}
	cmd.Flags().String("profile", "", "Customer profile JSON file (overrides the other flags)")
	cmd.Flags().String("name", "", "Customer name")
	cmd.Flags().String("type", "iot", "Customer type: iot or connectedcar")
	cmd.Flags().StringArray("apn", nil, "APN, optionally with gateways: NAME or NAME=GW1,GW2 (repeatable)")
	cmd.Flags().StringSlice("dc", nil, "Datacenter name (repeatable or comma separated)")
	return cmd
}

func profileFromFlags(cmd *cobra.Command) (*models.CustomerProfile, error) {
	if path, _ := cmd.Flags().GetString("profile"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var p models.CustomerProfile
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("parsing profile %s: %w", path, err)
		}
		return &p, p.Normalize()
	}

	name, _ := cmd.Flags().GetString("name")
	rawType, _ := cmd.Flags().GetString("type")
	apnFlags, _ := cmd.Flags().GetStringArray("apn")
	dcs, _ := cmd.Flags().GetStringSlice("dc")

	typ, err := models.ParseCustomerType(rawType)
	if err != nil {
		return nil, err
	}
	p := &models.CustomerProfile{Name: strings.TrimSpace(name), Type: typ, DatacenterList: dcs}
	for _, f := range apnFlags {
		sel, err := parseAPNFlag(f)
		if err != nil {
			return nil, err
		}
		p.APNList = append(p.APNList, sel)
	}
	return p, p.Normalize()
}

// parseAPNFlag reads "NAME" or "NAME=GW1,GW2".
func parseAPNFlag(s string) (models.APNSelection, error) {
	name, gws, _ := strings.Cut(s, "=")
	sel := models.APNSelection{Name: strings.TrimSpace(name)}
	if sel.Name == "" {
		return sel, fmt.Errorf("--apn %q: empty APN name", s)
	}
	for _, g := range strings.Split(gws, ",") {
		if g = strings.TrimSpace(g); g != "" {
			sel.Gateways = append(sel.Gateways, g)
		}
	}
	return sel, nil
}

// ── customers ─────────────────────────────────────────────────────────────────

func customersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "customers",
		Short: "Inspect the customer registry",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List registered customers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			profiles, _, err := registry.New(cfg.RegistryDir, cfg.RegistryPrefix).LoadAll()
			if err != nil {
				return err
			}
			for _, p := range profiles {
				when := "-"
				if p.ProvisionedAt != nil {
					when = p.ProvisionedAt.Format(time.RFC3339)
				}
				fmt.Printf("%-24s %-14s apns=%v dcs=%v  %s\n", p.Name, p.Type.Label(), p.APNNames(), p.DatacenterList, when)
			}
			fmt.Printf("%d customers\n", len(profiles))
			return nil
		},
	}

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Report registered customers that have no domain on nG1",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			profiles, _, err := registry.New(cfg.RegistryDir, cfg.RegistryPrefix).LoadAll()
			if err != nil {
				return err
			}
			ctx := context.Background()
			client, err := openClient(ctx, cfg)
			if err != nil {
				return err
			}
			defer client.Close(ctx)

			domains, err := client.ListDomains(ctx)
			if err != nil {
				return err
			}
			missing := registry.ValidateAgainstDomainTree(profiles, domains)
			fmt.Printf("%d customers, %d without a domain\n", len(profiles), len(missing))
			for _, name := range missing {
				fmt.Printf("  ! %s\n", name)
			}
			return nil
		},
	}

	cmd.AddCommand(list, validate)
	return cmd
}

// ── emulator ──────────────────────────────────────────────────────────────────

func emulatorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "emulator",
		Short: "Run a local nG1 emulator for dry runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			printBanner("EMULATOR")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := server.InitDB(cfg.EmulatorDBPath)
			if err != nil {
				return fmt.Errorf("initializing database: %w", err)
			}
			if seed, _ := cmd.Flags().GetString("seed"); seed != "" {
				fixture, err := server.LoadFixture(seed)
				if err != nil {
					return err
				}
				if err := store.Seed(fixture); err != nil {
					return err
				}
			}

			emu := server.New(store, cfg.EmulatorJWTSecret)
			if err := emu.SetCredentials(cfg.EmulatorUser, cfg.EmulatorPass); err != nil {
				return err
			}
			token, err := emu.IssueToken(cfg.EmulatorUser)
			if err != nil {
				return err
			}

			gin.SetMode(gin.ReleaseMode)
			addr := fmt.Sprintf("%s:%d", cfg.EmulatorHost, cfg.EmulatorPort)
			srv := &http.Server{Addr: addr, Handler: emu.Handler()}

			fmt.Printf("  ✓ nG1 emulator → http://%s/ng1api\n", addr)
			fmt.Printf("  ✓ Login:         %s / %s\n", cfg.EmulatorUser, cfg.EmulatorPass)
			fmt.Printf("  ✓ ng1_token:     %s\n\n", token)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, os.Interrupt)

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-quit:
				fmt.Println("\n  → Shutting down gracefully…")
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(ctx)
			}
		},
	}
	cmd.Flags().String("seed", "", "JSON fixture with APNs, devices and interfaces to load at start")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ciscoiot %s\n", version)
		},
	}
}
