package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sshcollectorpro/rosconnector/internal/routeros"
)

func newIdentityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "identity",
		Short: "Print the system identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDevice(func(ctx context.Context, d *routeros.Device) error {
				name, err := d.Identity(ctx)
				if err != nil {
					return err
				}
				fmt.Println(name)
				return nil
			})
		},
	}
}

var queries = map[string]func(ctx context.Context, d *routeros.Device) (interface{}, error){
	"interfaces":    func(ctx context.Context, d *routeros.Device) (interface{}, error) { return d.Interfaces(ctx) },
	"ip-addresses":  func(ctx context.Context, d *routeros.Device) (interface{}, error) { return d.IPAddresses(ctx) },
	"routes":        func(ctx context.Context, d *routeros.Device) (interface{}, error) { return d.Routes(ctx) },
	"routes-large":  func(ctx context.Context, d *routeros.Device) (interface{}, error) { return d.RoutesLarge(ctx) },
	"services":      func(ctx context.Context, d *routeros.Device) (interface{}, error) { return d.Services(ctx) },
	"users":         func(ctx context.Context, d *routeros.Device) (interface{}, error) { return d.Users(ctx) },
	"resources":     func(ctx context.Context, d *routeros.Device) (interface{}, error) { return d.Resources(ctx) },
	"dhcp-networks": func(ctx context.Context, d *routeros.Device) (interface{}, error) { return d.DHCPNetworks(ctx) },
}

func queryNames() []string {
	names := make([]string, 0, len(queries))
	for k := range queries {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func newQueryCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "query <resource>",
		Short:     "Query a resource table as JSON",
		Long:      "Resources: " + strings.Join(queryNames(), ", "),
		Args:      cobra.ExactArgs(1),
		ValidArgs: queryNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			fn, ok := queries[args[0]]
			if !ok {
				return fmt.Errorf("unknown resource %q, expected one of: %s", args[0], strings.Join(queryNames(), ", "))
			}
			return withDevice(func(ctx context.Context, d *routeros.Device) error {
				v, err := fn(ctx, d)
				if err != nil {
					return err
				}
				return printJSON(v)
			})
		},
	}
}

func newSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <command>",
		Short: "Send a raw command and print its output",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDevice(func(ctx context.Context, d *routeros.Device) error {
				out, err := d.SendCommand(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				fmt.Println(out)
				return nil
			})
		},
	}
}

var applyKinds = map[string]func() routeros.Builder{
	"identity-update":   func() routeros.Builder { return &routeros.IdentityUpdate{} },
	"ip-address-create": func() routeros.Builder { return &routeros.IPAddressCreate{} },
	"route-create":      func() routeros.Builder { return &routeros.RouteCreate{} },
	"service-update":    func() routeros.Builder { return &routeros.ServiceUpdate{} },
	"user-create":       func() routeros.Builder { return &routeros.UserCreate{} },
	"user-update":       func() routeros.Builder { return &routeros.UserUpdate{} },
}

func newApplyCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "apply <kind> <json-params>",
		Short: "Build and send a single configuration command",
		Long: `Build a configuration command from JSON parameters and send it.

  rosctl -H 10.0.0.1 apply identity-update '{"name":"core-1"}'
  rosctl -H 10.0.0.1 apply route-create '{"dst_address":"0.0.0.0/0","gateway":"10.0.0.254"}' --dry-run`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			newBuilder, ok := applyKinds[args[0]]
			if !ok {
				return fmt.Errorf("unknown kind %q", args[0])
			}
			b := newBuilder()
			if err := json.Unmarshal([]byte(args[1]), b); err != nil {
				return fmt.Errorf("params: %w", err)
			}
			if dryRun {
				fmt.Println(b.Command())
				return nil
			}
			return withDevice(func(ctx context.Context, d *routeros.Device) error {
				res, err := d.Apply(ctx, b)
				if err != nil {
					return err
				}
				if err := res.Err(); err != nil {
					return err
				}
				fmt.Println("ok")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the command without connecting")
	return cmd
}

func newBackupCmd() *cobra.Command {
	var (
		outDir string
		name   string
	)
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create a binary backup and download it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDevice(func(ctx context.Context, d *routeros.Device) error {
				h, err := d.DownloadBackup(ctx, outDir, name)
				if err != nil {
					return err
				}
				fmt.Println(h.LocalPath)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "local directory")
	cmd.Flags().StringVar(&name, "name", "", "existing backup name on the device")
	return cmd
}

func newExportCmd() *cobra.Command {
	var (
		outDir string
		name   string
		inline bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Create a configuration export and download it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDevice(func(ctx context.Context, d *routeros.Device) error {
				var (
					h   routeros.FileHandle
					err error
				)
				if inline {
					h, err = d.WriteExportConfiguration(ctx, outDir)
				} else {
					h, err = d.DownloadExport(ctx, outDir, name)
				}
				if err != nil {
					return err
				}
				fmt.Println(h.LocalPath)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "local directory")
	cmd.Flags().StringVar(&name, "name", "", "existing export name on the device")
	cmd.Flags().BoolVar(&inline, "inline", false, "read /export terse from the terminal instead of a device file")
	return cmd
}

func newRebootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reboot",
		Short: "Upload the reboot script",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDevice(func(ctx context.Context, d *routeros.Device) error {
				return d.Reboot(ctx)
			})
		},
	}
}

func newFirmwareCmd() *cobra.Command {
	var p routeros.FirmwareParams
	cmd := &cobra.Command{
		Use:   "firmware",
		Short: "Check for package updates and optionally install",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDevice(func(ctx context.Context, d *routeros.Device) error {
				res, err := d.CheckFirmware(ctx, p)
				if err != nil {
					return err
				}
				return printJSON(res)
			})
		},
	}
	cmd.Flags().StringVar(&p.Channel, "channel", "stable", "update channel")
	cmd.Flags().BoolVar(&p.Install, "install", false, "install when a newer version is available")
	return cmd
}

func newCloudDNSCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cloud-dns",
		Short: "Enable IP Cloud DDNS and print the assigned name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDevice(func(ctx context.Context, d *routeros.Device) error {
				name, err := d.EnableCloudDNS(ctx)
				if err != nil {
					return err
				}
				fmt.Println(name)
				return nil
			})
		},
	}
}
