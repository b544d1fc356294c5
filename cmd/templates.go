package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"kglogistics/config"
	"kglogistics/services"
)

type templateSeed struct {
	Templates []struct {
		Name    string `yaml:"name"`
		Subject string `yaml:"subject"`
		Body    string `yaml:"body"`
	} `yaml:"templates"`
}

func readTemplateSeed(r io.Reader) ([]services.TemplateInput, error) {
	var seed templateSeed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		return nil, fmt.Errorf("failed to parse template seed: %w", err)
	}
	inputs := make([]services.TemplateInput, 0, len(seed.Templates))
	for _, t := range seed.Templates {
		inputs = append(inputs, services.TemplateInput{Name: t.Name, Subject: t.Subject, Body: t.Body})
	}
	return inputs, nil
}

// NewTemplatesCommand loads email templates from a YAML file, creating new
// ones and overwriting existing ones by name.
func NewTemplatesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Manage email templates",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Create or update templates from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			inputs, err := readTemplateSeed(f)
			if err != nil {
				return err
			}
			if err := openDB(); err != nil {
				return err
			}
			return seedTemplates(cmd, services.NewTemplateService(config.DB, nil), inputs)
		},
	})
	return cmd
}

func seedTemplates(cmd *cobra.Command, svc *services.TemplateService, inputs []services.TemplateInput) error {
	for _, in := range inputs {
		tmpl, created, err := svc.UpsertTemplate(cmd.Context(), in)
		if err != nil {
			return fmt.Errorf("template %q: %w", in.Name, err)
		}
		verb := "updated"
		if created {
			verb = "created"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", verb, tmpl.Name, tmpl.ID)
	}
	return nil
}
