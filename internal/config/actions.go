// Package config implements the config commands.
package config

import (
	"fmt"
	"os"

	"github.com/agileteam/vpbadge/internal/common"
	"github.com/agileteam/vpbadge/models"
	"github.com/agileteam/vpbadge/pkg/badge"
	"github.com/urfave/cli/v2"
)

// StarterConfig is DefaultConfig with the built-in badge policy spelled out,
// so the written file documents every key.
func StarterConfig() *models.Config {
	cfg := models.DefaultConfig()
	policy := badge.DefaultPolicy()

	days := policy.DefaultExpireDays
	logs := policy.EnableLogs
	cfg.Badges = models.PolicyOverrides{
		DefaultExpireDays: &days,
		BadgeTypes:        policy.BadgeTypes,
		EnableLogs:        &logs,
	}
	return cfg
}

// InitAction writes a starter config file. An existing file is kept unless --force is given.
func InitAction(c *cli.Context) error {
	path := c.String("path")
	if path == "" {
		path = models.DefaultConfigFile
	}

	if _, err := os.Stat(path); err == nil && !c.Bool("force") {
		return cli.Exit(fmt.Sprintf("%s already exists (use --force to overwrite)", path), 1)
	}

	if err := StarterConfig().SaveConfig(path); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(c.App.Writer, "Wrote %s\n", path)
	return nil
}

// ShowAction prints the effective configuration after file and flag overrides.
func ShowAction(c *cli.Context) error {
	cfg, err := common.LoadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	policy := badge.MergePolicy(&cfg.Badges)
	w := c.App.Writer
	_, _ = fmt.Fprintln(w, cfg.String())
	_, _ = fmt.Fprintf(w, "default expiry: %d days\n", policy.DefaultExpireDays)
	for _, name := range policy.TypeNames() {
		_, _ = fmt.Fprintf(w, "  %-8s %d days\n", name, policy.Days(name))
	}
	_, _ = fmt.Fprintf(w, "logs: %t\n", policy.EnableLogs)
	return nil
}
