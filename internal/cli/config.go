package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmaddaus/sprintboard/internal/config"
	"github.com/jmaddaus/sprintboard/internal/model"
)

func newConfigCmd(gf *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the connection settings",
		RunE:  groupRunE,
	}

	var reveal bool
	list := &cobra.Command{
		Use:   "list",
		Short: "Show every setting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(gf)
			if err != nil {
				return err
			}
			if !reveal {
				s = s.Redacted()
			}
			printSettings(cmd.OutOrStdout(), s, gf.pretty)
			return nil
		},
	}
	list.Flags().BoolVar(&reveal, "reveal", false, "show the access token")

	get := &cobra.Command{
		Use:   "get <field>",
		Short: "Print one setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(gf)
			if err != nil {
				return err
			}
			v, ok := s.Get(args[0])
			if !ok {
				return unknownFieldError(args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set <field> <value>",
		Short: "Change one setting; an empty value clears it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := setSetting(gf, args[0], args[1])
			if err != nil {
				return err
			}
			printSettings(cmd.OutOrStdout(), s.Redacted(), gf.pretty)
			return nil
		},
	}

	cmd.AddCommand(list, get, set)
	return cmd
}

// loadSettings reads the settings through the daemon when --host is set,
// otherwise from the data dir.
func loadSettings(gf *globalFlags) (*model.Settings, error) {
	if gf.host != "" {
		return NewClient(gf.host).Settings()
	}
	ss, err := gf.settingsStore()
	if err != nil {
		return nil, err
	}
	return ss.Load()
}

// setSetting writes one field through the daemon when --host is set,
// otherwise straight to the settings file.
func setSetting(gf *globalFlags, field, value string) (*model.Settings, error) {
	if gf.host != "" {
		return NewClient(gf.host).SetSetting(field, value)
	}
	ss, err := gf.settingsStore()
	if err != nil {
		return nil, err
	}
	s, err := ss.Set(field, value)
	if errors.Is(err, config.ErrUnknownField) {
		return nil, unknownFieldError(field)
	}
	return s, err
}

func unknownFieldError(field string) error {
	keys := make([]string, len(model.SettingsFields))
	for i, f := range model.SettingsFields {
		keys[i] = f.Key
	}
	return fmt.Errorf("unknown setting %q; valid settings: %v", field, keys)
}
