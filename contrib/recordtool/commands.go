// Package recordtool implements the recordtool command line: type
// inference on raw tokens, conversion between JSON and the text record
// format, binary deltas between two versions of a document, and a small
// persistent record store.
package recordtool

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	goruntime "runtime"
	"strings"

	"github.com/spf13/cobra"
	"github.com/surrealdb/recordcodec/pkg/delta"
	"github.com/surrealdb/recordcodec/pkg/jsonbridge"
	"github.com/surrealdb/recordcodec/pkg/models"
	"github.com/surrealdb/recordcodec/pkg/textcodec"
	"github.com/surrealdb/recordcodec/pkg/typeresolver"
	"golang.org/x/sync/errgroup"
)

type app struct {
	config     *Config
	configPath string
	rt         *runtime
}

// NewCommand builds the recordtool root command with all its subcommands.
func NewCommand() *cobra.Command {
	a := &app{config: NewConfig()}

	root := &cobra.Command{
		Use:   "recordtool",
		Short: "Inspect and convert schema-flexible records",
		Long: `recordtool converts documents between JSON and the text record format,
infers the types of raw tokens, computes binary deltas between two versions
of a document and keeps records in a local store.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.rt == nil {
				return nil
			}
			return a.rt.close()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "YAML config file")
	flags.StringVar(&a.config.LogLevel, "log-level", a.config.LogLevel, "Minimum log level")
	flags.StringVar(&a.config.LogFile, "log-file", a.config.LogFile, "Log file, stderr when empty")
	flags.StringVar(&a.config.SchemaFile, "schema", a.config.SchemaFile, "YAML schema file")
	flags.StringVarP(&a.config.DataDir, "data-dir", "d", a.config.DataDir, "Record store directory")
	flags.StringVar(&a.config.Metrics, "metrics", a.config.Metrics, "Metrics sink: none, basic or prometheus")
	flags.Float64Var(&a.config.PadOverAllocation, "pad", a.config.PadOverAllocation, "Pad encoded records by this factor")
	flags.Int32Var(&a.config.Cluster, "cluster", a.config.Cluster, "Cluster new records are stored in")

	root.AddCommand(
		a.inferCommand(),
		a.encodeCommand(),
		a.decodeCommand(),
		a.diffCommand(),
		a.patchCommand(),
		a.storeCommand(),
	)
	return root
}

// overrides maps flags to the config setting they override when a config
// file is loaded too.
var overrides = map[string]func(dst, src *Config){
	"log-level": func(dst, src *Config) { dst.LogLevel = src.LogLevel },
	"log-file":  func(dst, src *Config) { dst.LogFile = src.LogFile },
	"schema":    func(dst, src *Config) { dst.SchemaFile = src.SchemaFile },
	"data-dir":  func(dst, src *Config) { dst.DataDir = src.DataDir },
	"metrics":   func(dst, src *Config) { dst.Metrics = src.Metrics },
	"pad":       func(dst, src *Config) { dst.PadOverAllocation = src.PadOverAllocation },
	"cluster":   func(dst, src *Config) { dst.Cluster = src.Cluster },
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	config := a.config
	if a.configPath != "" {
		loaded, err := LoadConfig(a.configPath)
		if err != nil {
			return err
		}
		for name, apply := range overrides {
			if cmd.Flags().Changed(name) {
				apply(loaded, a.config)
			}
		}
		config = loaded
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	rt, err := newRuntime(config, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.rt = rt
	return nil
}

// input reads the named file, or standard input for "-" or no name.
func input(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(args[0])
}

func (a *app) inferCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "infer <token>...",
		Short: "Print the type each token decodes as",
		Long: `Print the type each raw field token decodes as when no schema declares one.

Example:
  recordtool infer 20l '"text"' '[#10:3,#10:4]' 1.5`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, token := range args {
				inf := typeresolver.Infer(token)
				line := token + "\t" + inf.Type.String()
				if inf.LinkedType.Declared() {
					line += " of " + inf.LinkedType.String()
				}
				if !inf.Certain {
					line += " (uncertain)"
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
}

func (a *app) encodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "encode [file.json]",
		Short: "Convert a JSON document to the text record format",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := input(cmd, args)
			if err != nil {
				return err
			}
			e, err := jsonbridge.Import(a.rt.ctx, data, nil)
			if err != nil {
				return err
			}
			res, err := textcodec.Encode(a.rt.ctx, e, a.rt.encodeOptions())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(res.Bytes))
			return nil
		},
	}
}

func (a *app) decodeCommand() *cobra.Command {
	var fields []string
	cmd := &cobra.Command{
		Use:   "decode <file>...",
		Short: "Convert text records to JSON, one line per file",
		Long: `Convert text records to JSON. Files are decoded concurrently and printed
in the order given.

Example:
  recordtool decode person.rec --fields name,age`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results := make([][]byte, len(args))
			g := new(errgroup.Group)
			g.SetLimit(goruntime.NumCPU())
			for i, path := range args {
				g.Go(func() error {
					data, err := os.ReadFile(path)
					if err != nil {
						return err
					}
					e, err := textcodec.Decode(a.rt.ctx, data, nil, fields...)
					if err != nil {
						return fmt.Errorf("%s: %w", path, err)
					}
					results[i], err = jsonbridge.Export(a.rt.ctx, e)
					return err
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, result := range results {
				fmt.Fprintln(out, string(result))
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&fields, "fields", nil, "Only decode these fields")
	return cmd
}

// baseline imports the JSON document at path and marks it clean.
func (a *app) baseline(path string) (*models.Entity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	e, err := jsonbridge.Import(a.rt.ctx, data, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	e.MarkClean()
	return e, nil
}

func (a *app) diffCommand() *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "diff <old.json> <new.json>",
		Short: "Print the base64 delta turning one JSON document into another",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.baseline(args[0])
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			if _, err := jsonbridge.Import(a.rt.ctx, data, e); err != nil {
				return fmt.Errorf("%s: %w", args[1], err)
			}

			var out []byte
			if full {
				out, err = delta.Serialize(a.rt.ctx, e)
			} else {
				out, err = delta.SerializeDelta(a.rt.ctx, e)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), base64.StdEncoding.EncodeToString(out))
			return nil
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "Print the full binary form of the new document instead")
	return cmd
}

func (a *app) patchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "patch <base.json> [delta]",
		Short: "Apply a base64 delta to a JSON document and print the result",
		Long: `Apply a base64 delta printed by diff to a JSON document. The delta is read
from standard input when it is not given as an argument.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.baseline(args[0])
			if err != nil {
				return err
			}
			encoded, err := input(cmd, args[1:])
			if err != nil {
				return err
			}
			changes, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(encoded)))
			if err != nil {
				return fmt.Errorf("delta is not base64: %w", err)
			}
			if err := delta.DeserializeDelta(a.rt.ctx, changes, e); err != nil {
				return err
			}
			out, err := jsonbridge.Export(a.rt.ctx, e)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func (a *app) storeCommand() *cobra.Command {
	store := &cobra.Command{
		Use:   "store",
		Short: "Keep records in the store under the data directory",
	}

	put := &cobra.Command{
		Use:   "put [file.json]",
		Short: "Store a JSON document and print its record id",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := a.rt.store()
			if err != nil {
				return err
			}
			data, err := input(cmd, args)
			if err != nil {
				return err
			}
			e, err := codec.ImportJSON(data, nil)
			if err != nil {
				return err
			}
			rid, _, err := codec.Save(e, a.rt.config.Cluster)
			if err != nil {
				return err
			}
			a.rt.log.Debug("record stored", "rid", rid)
			fmt.Fprintln(cmd.OutOrStdout(), rid)
			return nil
		},
	}

	get := &cobra.Command{
		Use:   "get <rid>",
		Short: "Print a stored record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := a.rt.store()
			if err != nil {
				return err
			}
			rid, err := models.ParseRecordID(args[0])
			if err != nil {
				return err
			}
			e, err := codec.Load(rid, nil)
			if err != nil {
				return err
			}
			out, err := codec.ExportJSON(e)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Print every stored record in the text format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			codec, err := a.rt.store()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			return codec.Scan(func(rid models.RecordID, data []byte) error {
				_, err := fmt.Fprintf(out, "%s\t%s\n", rid, bytes.TrimRight(data, " "))
				return err
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <rid>",
		Short: "Delete a stored record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := a.rt.store()
			if err != nil {
				return err
			}
			rid, err := models.ParseRecordID(args[0])
			if err != nil {
				return err
			}
			return codec.Delete(rid)
		},
	}

	store.AddCommand(put, get, list, del)
	return store
}
