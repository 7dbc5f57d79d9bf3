package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nupi-ai/contentplugins/internal/constants"
	"github.com/nupi-ai/contentplugins/internal/manifest"
	"github.com/nupi-ai/contentplugins/internal/pluginpb"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", out)
	return err
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func readBody(path, contentType string) (*pluginpb.Body, error) {
	if path == "" {
		return nil, nil
	}
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	return &pluginpb.Body{ContentType: contentType, Content: data}, nil
}

func newCatalogueCommand(opts *globalOptions) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "catalogue [plugin...]",
		Short: "Load plugins and print the merged catalogue",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				dir := cfg.PluginDir
				manifests, warnings := manifest.Discover(dir, nil)
				for _, w := range warnings {
					fmt.Fprintf(os.Stderr, "warning: %s: %v\n", w.Dir, w.Err)
				}
				seen := map[string]bool{}
				for _, m := range manifests {
					if !seen[m.Name] {
						seen[m.Name] = true
						args = append(args, m.Name)
					}
				}
				if len(args) == 0 {
					return fmt.Errorf("no plugins installed in %s", dir)
				}
			}
			s, err := openSession(cmd, opts, args...)
			if err != nil {
				return err
			}
			defer s.close()
			return printJSON(cmd.OutOrStdout(), s.manager.Catalogue())
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Load every installed plugin")
	return cmd
}

func newConfigureCommand(opts *globalOptions) *cobra.Command {
	var contentType string
	cmd := &cobra.Command{
		Use:   "configure column:N=EXPRESSION...",
		Short: "Build example content, rules and generators from column expressions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := map[string]any{}
			for _, arg := range args {
				selector, expression, ok := strings.Cut(arg, "=")
				if !ok {
					return fmt.Errorf("invalid column definition %q, expected column:N=EXPRESSION", arg)
				}
				fields[selector] = expression
			}
			config, err := structpb.NewStruct(fields)
			if err != nil {
				return err
			}

			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer s.close()
			resp, err := s.manager.ConfigureContents(s.ctx, contentType, config)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVar(&contentType, "content-type", constants.CSVContentType, "Content type to configure")
	return cmd
}

func newCompareCommand(opts *globalOptions) *cobra.Command {
	var (
		expectedPath    string
		actualPath      string
		rulesPath       string
		contentType     string
		allowUnexpected bool
	)
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare actual content against expected content",
		RunE: func(cmd *cobra.Command, _ []string) error {
			expected, err := readBody(expectedPath, contentType)
			if err != nil {
				return err
			}
			actual, err := readBody(actualPath, contentType)
			if err != nil {
				return err
			}
			req := &pluginpb.CompareContentsRequest{
				Expected:            expected,
				Actual:              actual,
				AllowUnexpectedKeys: allowUnexpected,
			}
			if rulesPath != "" {
				if err := readJSONFile(rulesPath, &req.Rules); err != nil {
					return err
				}
			}

			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer s.close()
			resp, err := s.manager.CompareContents(s.ctx, req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&expectedPath, "expected", "", "File with the expected content")
	flags.StringVar(&actualPath, "actual", "", "File with the actual content (- for stdin)")
	flags.StringVar(&rulesPath, "rules", "", "JSON file with matching rules keyed by column path")
	flags.StringVar(&contentType, "content-type", constants.CSVContentType, "Content type of both bodies")
	flags.BoolVar(&allowUnexpected, "allow-unexpected", false, "Allow extra columns in the actual content")
	return cmd
}

func newGenerateCommand(opts *globalOptions) *cobra.Command {
	var (
		contentsPath   string
		generatorsPath string
		contentType    string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Replace column values using generators and print the result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			contents, err := readBody(contentsPath, contentType)
			if err != nil {
				return err
			}
			if contents == nil {
				return fmt.Errorf("--contents is required")
			}
			req := &pluginpb.GenerateContentRequest{Contents: contents}
			if generatorsPath != "" {
				if err := readJSONFile(generatorsPath, &req.Generators); err != nil {
					return err
				}
			}

			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer s.close()
			resp, err := s.manager.GenerateContent(s.ctx, req)
			if err != nil {
				return err
			}
			if resp.Contents == nil {
				return nil
			}
			_, err = cmd.OutOrStdout().Write(resp.Contents.Content)
			return err
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&contentsPath, "contents", "", "File with the content to regenerate (- for stdin)")
	flags.StringVar(&generatorsPath, "generators", "", "JSON file with generators keyed by column path")
	flags.StringVar(&contentType, "content-type", constants.CSVContentType, "Content type of the content")
	return cmd
}
