package cmd

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yangatekane/bh-ea-dashboard/internal/ai"
	cfgpkg "github.com/yangatekane/bh-ea-dashboard/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set BH-EA configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "server.addr: %s\n", c.Server.Addr)
		fmt.Fprintf(out, "server.upload_dir: %s\n", c.Server.UploadDir)
		fmt.Fprintf(out, "server.max_upload_mb: %d\n", c.Server.MaxUploadMB)
		if c.Server.PublicBaseURL != "" {
			fmt.Fprintf(out, "server.public_base_url: %s\n", c.Server.PublicBaseURL)
		}
		fmt.Fprintf(out, "log.mode: %s\n", c.Log.Mode)
		fmt.Fprintf(out, "thresholds: fav_cost_max=%g fav_yield_min=%g prob_yield_max=%g prob_cost_min=%g\n",
			c.Thresholds.FavorableCostCeiling, c.Thresholds.FavorableYieldFloor,
			c.Thresholds.ProblematicYieldCeiling, c.Thresholds.ProblematicCostFloor)
		fmt.Fprintf(out, "session.backend: %s\n", c.Session.Backend)
		fmt.Fprintf(out, "session.ttl_hours: %d\n", c.Session.TTLHours)
		if c.ERT.InversionCommand != "" {
			fmt.Fprintf(out, "ert.inversion_command: %s\n", c.ERT.InversionCommand)
		}
		provider := c.Narrative.Provider
		if provider == "" {
			provider = "none"
		}
		fmt.Fprintf(out, "narrative.provider: %s (available: %s)\n", provider, strings.Join(ai.Providers(), ", "))
		fmt.Fprintf(out, "narrative.model: %s\n", c.Narrative.Model)
		fmt.Fprintf(out, "narrative.api_key: %s\n", mask(c.Narrative.APIKey))
		fmt.Fprintf(out, "storage.backend: %s\n", c.Storage.Backend)
		if c.Storage.MinioAccessKey != "" {
			fmt.Fprintf(out, "storage.minio_access_key: %s\n", mask(c.Storage.MinioAccessKey))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Flag overrides are not persisted.
		c, err := cfgpkg.Load(cfgFile)
		if err != nil {
			return err
		}
		if err := setConfigValue(c, args[0], args[1]); err != nil {
			return err
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		cfg = c
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func setConfigValue(c *cfgpkg.Global, key, val string) error {
	num := func() (float64, error) {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number for %s: %v", key, val)
		}
		return f, nil
	}
	integer := func() (int, error) {
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return 0, fmt.Errorf("invalid int for %s: %v", key, val)
		}
		return i, nil
	}
	var err error
	switch key {
	case "server.addr":
		c.Server.Addr = val
	case "server.upload_dir":
		c.Server.UploadDir = val
	case "server.max_upload_mb":
		c.Server.MaxUploadMB, err = integer()
	case "server.public_base_url":
		c.Server.PublicBaseURL = strings.TrimRight(val, "/")
	case "log.mode":
		c.Log.Mode = val
	case "thresholds.favorable_cost_ceiling":
		c.Thresholds.FavorableCostCeiling, err = num()
	case "thresholds.favorable_yield_floor":
		c.Thresholds.FavorableYieldFloor, err = num()
	case "thresholds.problematic_yield_ceiling":
		c.Thresholds.ProblematicYieldCeiling, err = num()
	case "thresholds.problematic_cost_floor":
		c.Thresholds.ProblematicCostFloor, err = num()
	case "session.backend":
		switch strings.ToLower(val) {
		case "sqlite", "redis":
			c.Session.Backend = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid session.backend: %s (use sqlite or redis)", val)
		}
	case "session.sqlite_path":
		c.Session.SQLitePath = val
	case "session.redis_addr":
		c.Session.RedisAddr = val
	case "session.ttl_hours":
		c.Session.TTLHours, err = integer()
	case "ert.inversion_command":
		c.ERT.InversionCommand = val
	case "ert.timeout_sec":
		c.ERT.TimeoutSec, err = integer()
	case "narrative.provider":
		p := strings.ToLower(strings.TrimSpace(val))
		if p != "none" && !slices.Contains(ai.Providers(), p) {
			return fmt.Errorf("invalid narrative.provider: %s (use none, %s)", val, strings.Join(ai.Providers(), ", "))
		}
		c.Narrative.Provider = p
	case "narrative.model":
		c.Narrative.Model = val
	case "narrative.api_key":
		c.Narrative.APIKey = val
	case "narrative.base_url":
		c.Narrative.BaseURL = strings.TrimRight(val, "/")
	case "narrative.ollama_host":
		c.Narrative.OllamaHost = val
	case "narrative.timeout_sec":
		c.Narrative.TimeoutSec, err = integer()
	case "storage.backend":
		switch strings.ToLower(val) {
		case "none", "local", "minio", "s3", "gcs":
			c.Storage.Backend = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid storage.backend: %s (use none, minio or gcs)", val)
		}
	case "storage.bucket":
		c.Storage.Bucket = val
	case "storage.minio_endpoint":
		c.Storage.MinioEndpoint = val
	case "storage.public_base_url":
		c.Storage.PublicBaseURL = val
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return err
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
