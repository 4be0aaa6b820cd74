package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"spamcheck-backend/internal/config"
	"spamcheck-backend/internal/controller"
	"spamcheck-backend/internal/models"
	"spamcheck-backend/internal/services"
)

type checkOptions struct {
	profile     string
	profileFile string
	baseURL     string
	endpoint    string
	minLength   int
	timeout     time.Duration
	asJSON      bool
}

func newCheckCmd() *cobra.Command {
	var opts checkOptions

	cmd := &cobra.Command{
		Use:   "check [text]",
		Short: "Analyze one email; reads stdin when no text is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var text string
			if len(args) == 1 {
				text = args[0]
			} else {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
				text = string(data)
			}

			profile, err := resolveProfile(opts, cmd.Flags().Changed("endpoint"), cmd.Flags().Changed("min-length"))
			if err != nil {
				return err
			}

			client, err := services.NewPredictionClient(profile.Endpoint, opts.timeout, 1)
			if err != nil {
				return err
			}

			ctrl := controller.New(controller.Options{
				SessionID: uuid.New(),
				Endpoint:  profile.Endpoint,
				MinLength: profile.MinLength,
				Predictor: client,
			})
			view := ctrl.Submit(cmd.Context(), text)

			return printView(cmd.OutOrStdout(), view, opts.asJSON)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.profile, "profile", config.ProfileRelative, "form preset, see the profiles command")
	f.StringVar(&opts.profileFile, "profile-file", "", "YAML file with extra presets")
	f.StringVar(&opts.baseURL, "base-url", "http://localhost:5000", "base URL for relative endpoints")
	f.StringVar(&opts.endpoint, "endpoint", "", "prediction endpoint, overrides the preset")
	f.IntVar(&opts.minLength, "min-length", 0, "minimum characters, overrides the preset; 0 disables")
	f.DurationVar(&opts.timeout, "timeout", 15*time.Second, "request timeout")
	f.BoolVar(&opts.asJSON, "json", false, "print the full view as JSON")

	return cmd
}

func loadProfiles(path string) (map[string]config.Profile, error) {
	profiles := config.BuiltinProfiles()
	if path == "" {
		return profiles, nil
	}
	extra, err := config.LoadProfiles(path)
	if err != nil {
		return nil, err
	}
	for name, p := range extra {
		profiles[name] = p
	}
	return profiles, nil
}

// resolveProfile applies explicit flags over the named preset and returns
// the preset with an absolute endpoint.
func resolveProfile(opts checkOptions, endpointSet, minLengthSet bool) (config.Profile, error) {
	profiles, err := loadProfiles(opts.profileFile)
	if err != nil {
		return config.Profile{}, err
	}

	p, ok := profiles[opts.profile]
	if !ok {
		return config.Profile{}, fmt.Errorf("unknown profile %q", opts.profile)
	}
	if endpointSet {
		p.Endpoint = opts.endpoint
	}
	if minLengthSet {
		p.MinLength = opts.minLength
	}

	p.Endpoint, err = config.ResolveEndpoint(opts.baseURL, p.Endpoint)
	if err != nil {
		return config.Profile{}, fmt.Errorf("invalid endpoint: %w", err)
	}
	return p, nil
}

// printView writes the outcome and turns any failure into a command error.
func printView(w io.Writer, view models.View, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(view); err != nil {
			return err
		}
	} else if view.State == models.StateSuccess {
		fmt.Fprintln(w, view.Message)
	}

	if view.State == models.StateFailure {
		return errors.New(strings.TrimSpace(view.Message))
	}
	return nil
}
