package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/aschepis/backscratcher/lifelog/client"
	"github.com/aschepis/backscratcher/lifelog/config"
	"github.com/aschepis/backscratcher/lifelog/locale"
	"github.com/aschepis/backscratcher/lifelog/memory"
)

func newAddCmd(a *app) *cobra.Command {
	var (
		location  string
		mediaPath string
		at        string
	)
	cmd := &cobra.Command{
		Use:   "add [text...]",
		Short: "Record a memory from text and/or a media file",
		RunE: func(cmd *cobra.Command, args []string) error {
			nm := client.NewMemory{
				Content:  strings.Join(args, " "),
				Location: location,
			}
			if at != "" {
				t, err := time.ParseInLocation("2006-01-02", at, time.Local)
				if err != nil {
					return fmt.Errorf("--at must be YYYY-MM-DD: %w", err)
				}
				nm.CreatedAt = &t
			}
			if mediaPath != "" {
				mediaType, mimeType, err := mediaTypeFor(mediaPath)
				if err != nil {
					return err
				}
				data, err := os.ReadFile(mediaPath) //#nosec G304 -- user-selected file
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", mediaPath, err)
				}
				nm.MediaType, nm.MediaMIME, nm.Media = string(mediaType), mimeType, data
			}

			saved, err := a.client.AddMemory(a.context(cmd), nm)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Saved memory %s\n", saved.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&location, "location", "", "where it happened")
	cmd.Flags().StringVar(&mediaPath, "media", "", "image, audio or video file to attach")
	cmd.Flags().StringVar(&at, "at", "", "date of the memory (YYYY-MM-DD); defaults to now")
	return cmd
}

// mediaTypeFor maps a file extension onto a memory media type.
func mediaTypeFor(path string) (memory.MediaType, string, error) {
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mimeType == "" {
		return "", "", fmt.Errorf("cannot tell the media type of %s", path)
	}
	mimeType, _, _ = strings.Cut(mimeType, ";")
	family, _, _ := strings.Cut(mimeType, "/")
	mt, err := memory.ParseMediaType(family)
	if err != nil || mt == memory.MediaTypeText {
		return "", "", fmt.Errorf("unsupported media %s (%s)", path, mimeType)
	}
	return mt, mimeType, nil
}

func newListCmd(a *app) *cobra.Command {
	var (
		query string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List memories, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mems, err := a.client.ListMemories(a.context(cmd), query, limit)
			if err != nil {
				return err
			}
			return renderMemories(a.out, mems, a.displayLocale())
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "only memories matching this text")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of memories")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a memory and its media",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.DeleteMemory(a.context(cmd), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted memory %s\n", args[0])
			return nil
		},
	}
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var summary string
	cmd := &cobra.Command{
		Use:   "analyze <id>",
		Short: "Analyze a memory, or replace its summary with --summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.context(cmd)
			var (
				analysis *memory.AIAnalysis
				err      error
			)
			if summary != "" {
				analysis, err = a.client.EditSummary(ctx, args[0], summary)
			} else {
				analysis, err = a.client.Analyze(ctx, args[0], a.model, a.locale)
			}
			if err != nil {
				return err
			}
			renderAnalysis(a.out, *analysis)
			return nil
		},
	}
	cmd.Flags().StringVar(&summary, "summary", "", "replace the summary instead of analyzing")
	return cmd
}

func newAskCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question...>",
		Short: "Ask a question answered from your memories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.context(cmd)
			answer, err := a.client.Ask(ctx, strings.Join(args, " "), a.model)
			if err != nil {
				return err
			}

			// Footnotes show each cited memory. A lookup failure only costs
			// the footnote its detail.
			unresolved := lo.SliceToMap(answer.Unresolved, func(id string) (string, bool) { return id, true })
			sources := make(map[string]memory.Memory)
			for _, id := range answer.CitedIDs {
				if unresolved[id] {
					continue
				}
				m, err := a.client.GetMemory(ctx, id)
				if err != nil {
					a.logger.Debug().Err(err).Str("id", id).Msg("failed to load cited memory")
					continue
				}
				sources[id] = *m
			}
			renderAnswer(a.out, answer, sources, a.displayLocale())
			return nil
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit int
		wipe  bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show or clear past questions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := a.context(cmd)
			if wipe {
				if err := a.client.ClearExchanges(ctx); err != nil {
					return err
				}
				fmt.Fprintln(a.out, "Chat history cleared")
				return nil
			}
			exchanges, err := a.client.Exchanges(ctx, limit)
			if err != nil {
				return err
			}
			return renderExchanges(a.out, exchanges, a.displayLocale())
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of exchanges")
	cmd.Flags().BoolVar(&wipe, "clear", false, "delete the chat history")
	return cmd
}

// newConfigCmd persists the effective --server, --model and --locale as the
// client defaults.
func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Save the current connection flags as defaults",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			cfg := *a.cfg
			if a.server != "" {
				cfg.ServerURL = a.server
			}
			cfg.Model = a.model
			cfg.Locale = a.locale
			if cfg.Locale != "" {
				if _, err := locale.Parse(cfg.Locale); err != nil {
					return err
				}
			}
			path := config.GetClientConfigPath()
			if err := config.SaveClientConfig(&cfg, path); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Saved client config to %s\n", path)
			return nil
		},
	}
}

func newGraphCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "graph",
		Short: "Build the relationship graph of your memories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			view, err := a.client.Graph(a.context(cmd), a.model)
			if err != nil {
				return err
			}
			renderGraph(a.out, view)
			return nil
		},
	}
}

func newModelsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List models and manage their API keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			models, err := a.client.Models(a.context(cmd))
			if err != nil {
				return err
			}
			return renderModels(a.out, models)
		},
	}

	var baseURL string
	set := &cobra.Command{
		Use:   "set <model-id> <api-key>",
		Short: "Store the API key (and optional base URL) for a model",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.SetModelConfig(a.context(cmd), args[0], args[1], baseURL); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Configured %s\n", args[0])
			return nil
		},
	}
	set.Flags().StringVar(&baseURL, "base-url", "", "endpoint override")

	unset := &cobra.Command{
		Use:   "unset <model-id>",
		Short: "Remove the stored config for a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.DeleteModelConfig(a.context(cmd), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Removed config for %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(set, unset)
	return cmd
}
