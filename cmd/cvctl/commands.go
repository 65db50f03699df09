package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"cvCanvas/internal/cv"
	"cvCanvas/internal/layout"
	"cvCanvas/internal/pdf"
	"cvCanvas/internal/templates"
)

type rootOptions struct {
	output string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	engine := layout.NewEngine()

	rootCmd := &cobra.Command{
		Use:   "cvctl",
		Short: "Inspect and rearrange CV page layouts offline",
		Long: `cvctl reads a CV document (or a bare JSON array of components) and runs the
same pagination rules the editor uses: page distribution, placement advice,
overflow splitting and drag-and-drop reordering.`,
		Example: `  cvctl pages cv.json
  cvctl suggest cv.json --type projects
  cvctl split cv.json --id exp-1 -o yaml
  cvctl move cv.json --active skills-1 --over exp-1
  cvctl export cv.json --out cv.pdf`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "json", "output format: json or yaml")

	rootCmd.AddCommand(
		newPagesCommand(opts, engine),
		newSuggestCommand(opts, engine),
		newOverflowCommand(opts, engine),
		newSplitCommand(opts, engine),
		newMoveCommand(opts),
		newExportCommand(engine),
		newTemplatesCommand(opts),
	)
	return rootCmd
}

func newPagesCommand(opts *rootOptions, engine *layout.Engine) *cobra.Command {
	var pageCount int
	cmd := &cobra.Command{
		Use:   "pages <file>",
		Short: "Show the derived pages with estimated heights",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(args[0])
			if err != nil {
				return err
			}
			return opts.write(cmd.OutOrStdout(), engine.Layout(doc.Components, max(pageCount, doc.PageCount)))
		},
	}
	cmd.Flags().IntVar(&pageCount, "page-count", 0, "minimum number of pages, including trailing empty ones")
	return cmd
}

type suggestion struct {
	Type            cv.Type `json:"type"`
	Page            int     `json:"page"`
	Order           int     `json:"order"`
	EstimatedHeight int     `json:"estimatedHeight"`
	ExceedsPage     bool    `json:"exceedsPage"`
}

func newSuggestCommand(opts *rootOptions, engine *layout.Engine) *cobra.Command {
	var typ string
	cmd := &cobra.Command{
		Use:   "suggest <file> --type <type>",
		Short: "Suggest the page a new component of the given type should go on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t := cv.Type(typ)
			if !t.Valid() {
				return fmt.Errorf("%w: %q (want one of %s)", cv.ErrUnknownType, typ, typeNames())
			}
			doc, err := readDocument(args[0])
			if err != nil {
				return err
			}
			page := engine.SuggestPage(doc.Components, t)
			candidate := cv.Component{Type: t}
			return opts.write(cmd.OutOrStdout(), suggestion{
				Type:            t,
				Page:            page,
				Order:           layout.NextOrder(doc.Components, page),
				EstimatedHeight: engine.Estimator().Estimate(candidate),
				ExceedsPage:     engine.WillExceedPageHeight(layout.Distribute(doc.Components)[page], candidate),
			})
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "component type")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newOverflowCommand(opts *rootOptions, engine *layout.Engine) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "overflow <file> --id <component>",
		Short: "Report how a component's items divide across its page boundary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(args[0])
			if err != nil {
				return err
			}
			c, _, ok := doc.Find(id)
			if !ok {
				return fmt.Errorf("component %q not found", id)
			}
			return opts.write(cmd.OutOrStdout(), engine.ComputeOverflow(c, layout.Distribute(doc.Components)[c.PageNumber]))
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "component id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

type changeResult struct {
	Changed    bool           `json:"changed"`
	Components []cv.Component `json:"components"`
}

func newSplitCommand(opts *rootOptions, engine *layout.Engine) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "split <file> --id <component>",
		Short: "Move the items that overflow the component's page onto the next page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(args[0])
			if err != nil {
				return err
			}
			if _, _, ok := doc.Find(id); !ok {
				return fmt.Errorf("component %q not found", id)
			}
			next, changed := engine.ApplySplit(doc.Components, id)
			return opts.write(cmd.OutOrStdout(), changeResult{Changed: changed, Components: next})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "component id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newMoveCommand(opts *rootOptions) *cobra.Command {
	var (
		active string
		over   string
		page   int
	)
	cmd := &cobra.Command{
		Use:   "move <file> --active <id> (--over <id> | --page <n>)",
		Short: "Apply a drag-and-drop move; invalid moves leave the components unchanged",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (over == "") == (page <= 0) {
				return errors.New("exactly one of --over or --page is required")
			}
			doc, err := readDocument(args[0])
			if err != nil {
				return err
			}
			var (
				next    []cv.Component
				changed bool
			)
			if over != "" {
				next, changed = layout.Reorder(doc.Components, active, over)
			} else {
				next, changed = layout.MoveToPage(doc.Components, active, page)
			}
			return opts.write(cmd.OutOrStdout(), changeResult{Changed: changed, Components: next})
		},
	}
	cmd.Flags().StringVar(&active, "active", "", "id of the dragged component")
	cmd.Flags().StringVar(&over, "over", "", "id of the component it was dropped on")
	cmd.Flags().IntVar(&page, "page", 0, "page it was dropped on (empty area)")
	_ = cmd.MarkFlagRequired("active")
	return cmd
}

func newExportCommand(engine *layout.Engine) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export <file> --out <cv.pdf>",
		Short: "Render the document to PDF with the built-in renderer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(args[0])
			if err != nil {
				return err
			}
			pages := engine.Layout(doc.Components, doc.PageCount)
			data, err := pdf.NativeRenderer{}.Render(cmd.Context(), pdf.Input{Document: doc, Pages: pages})
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d pages to %s\n", len(pages), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "cv.pdf", "output file")
	return cmd
}

func newTemplatesCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List the built-in templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := templates.Builtin()
			if err != nil {
				return err
			}
			return opts.write(cmd.OutOrStdout(), catalog.List())
		},
	}
}

// readDocument 读取完整文档，或只包含组件数组的文件。
func readDocument(path string) (cv.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return cv.Document{}, fmt.Errorf("read %s: %w", path, err)
	}
	return parseDocument(raw)
}

func parseDocument(raw []byte) (cv.Document, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var components []cv.Component
		if err := json.Unmarshal(trimmed, &components); err != nil {
			return cv.Document{}, fmt.Errorf("decode components: %w", err)
		}
		return cv.Document{Components: components}, nil
	}

	var doc cv.Document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return cv.Document{}, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

// write 输出结果。YAML 经由 JSON 中转，保持组件的扁平字段与 JSON 一致。
func (o *rootOptions) write(w io.Writer, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	switch strings.ToLower(o.output) {
	case "", "json":
		_, err = fmt.Fprintln(w, string(raw))
		return err
	case "yaml", "yml":
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q", o.output)
	}
}

func typeNames() string {
	names := make([]string, 0, len(cv.Types))
	for _, t := range cv.Types {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}
