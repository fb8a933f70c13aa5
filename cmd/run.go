package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/local-job-scraper/internal/config"
	"github.com/JakeFAU/local-job-scraper/internal/report"
)

func newRunCmd() *cobra.Command {
	var profileKey string
	cmd := &cobra.Command{
		Use:   "run [profile]",
		Short: "Run one profile, or all of them",
		Long: `Runs the discovery pipeline for a profile key, or for every profile when
the key is "all". Without a key an interactive menu is shown.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := profileKey
			if len(args) == 1 {
				key = args[0]
			}
			return runProfiles(cmd, key)
		},
	}
	cmd.Flags().StringVarP(&profileKey, "profile", "p", "", `profile key to run, or "all"`)
	return cmd
}

func runProfiles(cmd *cobra.Command, key string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.Config()
	out := cmd.OutOrStdout()

	if strings.TrimSpace(key) == "" {
		key, err = promptProfile(cmd.InOrStdin(), out, cfg)
		if err != nil {
			return err
		}
	}

	profiles, err := cfg.SelectProfiles(key)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	runner := appInstance.Runner()
	if !strings.EqualFold(strings.TrimSpace(key), config.AllProfiles) {
		if _, err := runner.Run(ctx, profiles[0]); err != nil {
			return fmt.Errorf("run profile %s: %w", profiles[0].Key, err)
		}
		return nil
	}

	results, runErr := runner.RunAll(ctx, profiles)
	if err := report.WriteCombined(out, results); err != nil {
		appInstance.Logger().Warn("write combined summary", zap.Error(err))
	}
	if runErr != nil {
		return fmt.Errorf("run all profiles: %w", runErr)
	}
	return nil
}

// promptProfile shows the menu and reads one choice. The run-all entry takes
// the first number after the profile count that is not itself a profile key.
func promptProfile(in io.Reader, out io.Writer, cfg config.Config) (string, error) {
	keys := cfg.ProfileKeys()
	entries := make([]report.MenuEntry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, report.MenuEntry{Key: k, Name: cfg.Profiles[k].Name})
	}
	n := len(keys) + 1
	for slices.Contains(keys, strconv.Itoa(n)) {
		n++
	}
	allKey := strconv.Itoa(n)

	if err := report.WriteMenu(out, cfg.Location.Label, cfg.Location.TotalRadiusMeters, entries, allKey); err != nil {
		return "", fmt.Errorf("write menu: %w", err)
	}

	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("read choice: %w", err)
		}
		return "", errors.New("no profile selected")
	}
	choice := strings.TrimSpace(scanner.Text())
	if choice == allKey || strings.EqualFold(choice, config.AllProfiles) {
		return config.AllProfiles, nil
	}
	if p, ok := cfg.Profile(choice); ok {
		return p.Key, nil
	}
	return "", fmt.Errorf("%w: invalid choice %q", config.ErrConfiguration, choice)
}
