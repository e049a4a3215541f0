// rosctl 对单台 RouterOS 设备执行查询、配置与备份
//
// Usage:
//
//	rosctl -H 192.168.88.1 -u admin identity
//	rosctl -H 192.168.88.1 -u admin query routes
//	rosctl -H 192.168.88.1 -u admin send "/ip address print"
//	rosctl -H 192.168.88.1 -u admin backup -o ./backups
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sshcollectorpro/rosconnector/internal/config"
	"github.com/sshcollectorpro/rosconnector/internal/model"
	"github.com/sshcollectorpro/rosconnector/internal/routeros"
	"github.com/sshcollectorpro/rosconnector/internal/service"
	"github.com/sshcollectorpro/rosconnector/pkg/logger"
)

var (
	configPath string
	host       string
	port       int
	username   string
	password   string
	keyFile    string
	timeout    time.Duration
	verbose    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "rosctl",
	Short:             "RouterOS SSH automation client",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			logger.SetLevel("debug")
		} else {
			logger.SetLevel("warn")
		}
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "config file (default: ./configs/config.yaml if present)")
	flags.StringVarP(&host, "host", "H", "", "device address")
	flags.IntVarP(&port, "port", "p", 22, "ssh port")
	flags.StringVarP(&username, "user", "u", "admin", "login user")
	flags.StringVarP(&password, "password", "P", "", "login password (prompted when empty)")
	flags.StringVarP(&keyFile, "key", "i", "", "private key file")
	flags.DurationVarP(&timeout, "timeout", "t", 2*time.Minute, "overall timeout")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	_ = rootCmd.MarkPersistentFlagRequired("host")

	rootCmd.AddCommand(
		newIdentityCmd(),
		newQueryCmd(),
		newSendCmd(),
		newApplyCmd(),
		newBackupCmd(),
		newExportCmd(),
		newRebootCmd(),
		newFirmwareCmd(),
		newCloudDNSCmd(),
	)
}

// withDevice 打开会话并在其中执行 fn
func withDevice(fn func(ctx context.Context, d *routeros.Device) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if password == "" && keyFile == "" && term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintf(os.Stderr, "%s@%s password: ", username, host)
		pw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		password = string(pw)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	sessions := service.NewSessionManager(cfg)
	defer sessions.Close()
	dev := &model.Device{Host: host, Port: port, Username: username, Password: password, KeyFile: keyFile}
	return sessions.WithDevice(ctx, dev, func(d *routeros.Device) error {
		return fn(ctx, d)
	})
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
