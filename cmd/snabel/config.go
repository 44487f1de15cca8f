// Package main provides client and backend configuration commands.
package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/snabel/cli/internal/config"
	"github.com/snabel/cli/internal/ui"
)

var configInitForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View and edit client and backend settings",
	Long: `View and edit the client settings in ~/.config/snabel/config.yaml, and the
backend's own settings.

EXAMPLES:
  snabel config path
  snabel config show
  snabel config set poll.interval 5s
  snabel config set stream.reconnect true
  snabel config server
  snabel config server set GIT_REMOTE=origin`,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show client config path",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective client settings and where each comes from",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a client setting",
	Long:  "Set a client setting and write the config file.\n\nSupported keys:\n" + supportedKeysHelp(),
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the effective settings to the config file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Show backend settings",
	Args:  cobra.NoArgs,
	RunE:  runConfigServer,
}

var configServerSetCmd = &cobra.Command{
	Use:   "set <KEY=VALUE>...",
	Short: "Update backend settings",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runConfigServerSet,
}

func init() {
	for _, c := range []*cobra.Command{configPathCmd, configShowCmd, configSetCmd, configInitCmd} {
		c.Annotations = map[string]string{annotationCreatesConfig: "true"}
	}

	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing config file")

	configServerCmd.AddCommand(configServerSetCmd)

	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configServerCmd)
}

func supportedKeysHelp() string {
	s := ""
	for _, k := range config.Keys {
		s += fmt.Sprintf("  %-28s %s\n", k.Key, k.Description)
	}
	return s
}

// clientConfigPath returns the file the settings are read from and written to.
func clientConfigPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	if used := v.ConfigFileUsed(); used != "" {
		return used, nil
	}
	return config.DefaultPath()
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path, err := clientConfigPath()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	path, err := clientConfigPath()
	if err != nil {
		return err
	}
	fileKeys := config.ReadFileKeys(path)

	if jsonOutput(cmd) {
		out := make(map[string]interface{}, len(config.Keys))
		for _, k := range config.Keys {
			out[k.Key] = v.Get(k.Key)
		}
		return printJSON(cmd.OutOrStdout(), out)
	}

	rows := make([][]string, 0, len(config.Keys))
	for _, k := range config.Keys {
		source := config.Source(k, fileKeys)
		if f := cmd.Flags().Lookup(flagFor(k.Key)); f != nil && f.Changed {
			source = "(flag: --" + f.Name + ")"
		}
		rows = append(rows, []string{k.Key, fmt.Sprintf("%v", v.Get(k.Key)), source})
	}
	ui.RenderKeyValueTable(cmd.OutOrStdout(), []string{"KEY", "VALUE", "SOURCE"}, rows)
	ui.PrintDim("File: %s", path)
	return nil
}

// flagFor returns the flag bound to key, or "".
func flagFor(key string) string {
	for name, k := range config.FlagBindings {
		if k == key {
			return name
		}
	}
	return ""
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	path, err := clientConfigPath()
	if err != nil {
		return err
	}

	// Work on file + defaults only so env and flags are not persisted.
	fileOnly := viper.New()
	config.SetDefaults(fileOnly)
	if _, statErr := os.Stat(path); statErr == nil {
		fileOnly.SetConfigFile(path)
		if err := fileOnly.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg, err := config.Set(fileOnly, args[0], args[1])
	if err != nil {
		return err
	}
	if err := config.Save(path, cfg); err != nil {
		return err
	}
	ui.PrintSuccess("Set %s = %s", args[0], args[1])
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, err := clientConfigPath()
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(path); statErr == nil && !configInitForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	cfg, err := config.FromViper(v)
	if err != nil {
		return err
	}
	if err := config.Save(path, cfg); err != nil {
		return err
	}
	ui.PrintSuccess("Wrote %s", path)
	return nil
}

func runConfigServer(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	values, err := a.ctl.Config(cmd.Context())
	if err != nil {
		return describeError("fetch backend config", err)
	}
	if jsonOutput(cmd) {
		return printJSON(cmd.OutOrStdout(), values)
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, values[k]})
	}
	ui.RenderKeyValueTable(cmd.OutOrStdout(), []string{"KEY", "VALUE"}, rows)
	return nil
}

func runConfigServerSet(cmd *cobra.Command, args []string) error {
	updates, err := parseAssignments(args)
	if err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	msg, err := a.ctl.UpdateConfig(cmd.Context(), updates)
	if err != nil {
		return describeError("update backend config", err)
	}
	if msg == "" {
		msg = "Backend config updated"
	}
	ui.PrintSuccess("%s", msg)
	return nil
}

// parseAssignments parses KEY=VALUE arguments.
func parseAssignments(args []string) (map[string]string, error) {
	updates := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("expected KEY=VALUE, got %q", arg)
		}
		updates[key] = value
	}
	return updates, nil
}
