package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/systmms/cloudtruth/internal/config"
)

const (
	apiKeyPage    = "\"API Access\""
	apiAccessPath = "organization/api"
)

// apiAccessURL derives the web page that issues API keys from the API
// server URL. Only CloudTruth hosted servers and local development map.
func apiAccessURL(serverURL string) (string, bool) {
	api := strings.TrimSuffix(serverURL, "/")
	if strings.HasPrefix(api, "https://localhost:8000") {
		return "https://localhost:7000/" + apiAccessPath, true
	}
	if strings.HasPrefix(api, "https://api.") && strings.HasSuffix(api, "cloudtruth.io") {
		return strings.Replace(api, "https://api", "https://app", 1) + "/" + apiAccessPath, true
	}
	return "", false
}

// NewLoginCommand creates the login command.
func NewLoginCommand(cfg *config.Config) *cobra.Command {
	var (
		yes        bool
		useKeyring bool
	)
	cmd := &cobra.Command{
		Use:         "login",
		Short:       "Sets up a CloudTruth configuration profile api_key",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{AnnotationSkipKeyring: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			settings := cfg.Settings()
			profile := settings.Profile.Value

			if settings.APIKey.Value != "" {
				if !yes {
					fmt.Fprintf(out, "\n%s\n"+
						"  An API key is already setup for profile '%s'.\n"+
						"  Login will overwrite the current configuration profile API key.\n"+
						"  Using a new API key will not remove access via the old API key.\n"+
						"  Use '%s logout' to remove an existing API key from a profile.\n\n",
						separator, profile, BinaryName)
					if !confirm(cfg, cmd, fmt.Sprintf("Do you want to update the API key in profile '%s'", profile), defaultNo) {
						logger(cfg).Warn("Login not performed: using existing API key")
						return nil
					}
				} else {
					logger(cfg).Warn("Updating API key in profile '%s'.", profile)
				}
			}

			if url, ok := apiAccessURL(settings.ServerURL.Value); ok {
				fmt.Fprintf(out, "\n%s\n"+
					"  Use a browser to generate a new API token from the %s page\n"+
					"  (%s).\n\n"+
					"  Use the \"Generate New Token\" button on the %s page, copy the value, and paste\n"+
					"  that value here.\n\n",
					separator, apiKeyPage, url, apiKeyPage)
			} else {
				logger(cfg).Warn("Unable to determine %s page URL", apiKeyPage)
			}

			fmt.Fprintln(out, "Enter the new \"API key\" here:")
			secret, err := readSecret(cmd.InOrStdin())
			if err != nil {
				return err
			}
			defer secret.Destroy()
			key, err := secret.Reveal()
			if err != nil {
				return err
			}
			key = strings.TrimSpace(key)
			if key == "" {
				logger(cfg).Warn("Login not performed: no API key provided")
				return nil
			}

			pf := cfg.Profiles()
			p, ok := pf.Get(profile)
			if !ok {
				p = &config.Profile{}
				pf.Set(profile, p)
			}
			if useKeyring {
				if err := config.StoreAPIKey(profile, key); err != nil {
					return err
				}
				p.APIKey = config.KeyringMarker
			} else {
				if p.APIKey == config.KeyringMarker {
					if err := config.DeleteAPIKey(profile); err != nil {
						return err
					}
				}
				p.APIKey = key
			}
			if err := cfg.SaveProfiles(); err != nil {
				return err
			}
			fmt.Fprintf(out, "Updated profile '%s' in %s\n", profile, cfg.Path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Avoid confirmation prompt(s)")
	cmd.Flags().BoolVar(&useKeyring, "keyring", false, "Store the API key in the OS keyring")
	return cmd
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(cfg *config.Config) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:         "logout",
		Short:       "Removes a CloudTruth configuration profile api_key",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{AnnotationSkipKeyring: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			profile := cfg.Settings().Profile.Value
			pf := cfg.Profiles()
			p, ok := pf.Get(profile)
			if !ok || p.APIKey == "" {
				logger(cfg).Warn("Logout not performed: no API key in profile '%s'", profile)
				return nil
			}
			if !yes && !confirm(cfg, cmd, fmt.Sprintf("Remove the API key from profile '%s'", profile), defaultNo) {
				logger(cfg).Warn("Logout not performed: API key kept in profile '%s'", profile)
				return nil
			}
			if p.APIKey == config.KeyringMarker {
				if err := config.DeleteAPIKey(profile); err != nil {
					return err
				}
			}
			p.APIKey = ""
			if err := cfg.SaveProfiles(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed API key from profile '%s' in %s\n", profile, cfg.Path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Avoid confirmation prompt(s)")
	return cmd
}
