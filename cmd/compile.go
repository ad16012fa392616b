// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"atomicgo.dev/cursor"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc/status"

	"compilerd/service/internal/bridge"
	"compilerd/service/internal/bridge/grpcclient"
	"compilerd/service/internal/bridge/model"
	"compilerd/service/internal/config"
	"compilerd/service/internal/keychain"
	"compilerd/service/internal/logging"
	"compilerd/service/internal/render"
	"compilerd/service/internal/resolver"
	"compilerd/service/internal/warehouse"
)

var (
	namedQuery string
	queryText  string
	unary      bool
	schemaFile string
)

// compileCmd compiles a document against a running service, answering its
// dependency requests from client.root and the configured connections.
var compileCmd = &cobra.Command{
	Use:   "compile <file>",
	Short: "Compile a document through the Compiler service",
	Long: `The compile command opens a CompileStream to the service, sends the file as the
primary document and answers every request the service makes: imported documents are
read relative to client.root, table and SQL block schemas are inspected on the named
connection, and queries are executed when the mode is compile_and_render.

Connection DSNs come from client.connections or from the OS keychain (see connect).

With --unary nothing is negotiated: every model file below client.root and the
--schema blob go out in a single Compile call, and --query names the query to prepare.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if namedQuery != "" && queryText != "" {
			return errors.New("--query and --run are mutually exclusive")
		}
		if unary && queryText != "" {
			return errors.New("--run is not available with --unary")
		}
		ctx := cmd.Context()
		cc := cfg.Client

		url, content, err := readPrimary(cc.Root, args[0])
		if err != nil {
			return err
		}
		if unary {
			return compileUnary(ctx, url, content)
		}
		mode := model.ModeCompileAndRender
		if cc.Mode == config.ModeCompileOnly {
			mode = model.ModeCompileOnly
		}

		pool := warehouse.NewPool(cc.Connections, keychainDSN, logger)
		defer func() {
			if err := pool.Close(); err != nil {
				logger.Warn("close connections", zap.Error(err))
			}
		}()

		b := bridge.New()
		if err := b.Connect(ctx, cc.Address, grpcclient.DialOptions{Insecure: cc.Insecure}); err != nil {
			return err
		}
		defer b.Close(ctx)
		if err := b.Open(ctx); err != nil {
			logging.PresentStreamError(err)
			return err
		}

		cursor.Hide()
		defer cursor.Show()
		spinner, _ := pterm.DefaultSpinner.WithRemoveWhenDone(false).Start("Compiling " + url)
		r := resolver.New(b, resolver.DirReader{Root: cc.Root}, resolver.FromPool(pool), resolver.Options{
			MaxRounds: cc.MaxRounds,
			MaxRows:   cc.MaxRows,
			Logger:    logger,
			Observer: func(e resolver.Event) {
				if spinner != nil {
					spinner.UpdateText(describeEvent(e))
				}
			},
		})
		out, err := r.Run(ctx, &model.Inbound{
			Type:       model.InboundCompile,
			Document:   &model.Document{URL: url, Content: content},
			NamedQuery: namedQuery,
			Query:      queryText,
			Mode:       mode,
		})
		if err != nil {
			if spinner != nil {
				spinner.Fail("Compilation failed")
			}
			presentFailure(err)
			return err
		}
		if spinner != nil {
			spinner.Success(fmt.Sprintf("Compiled %s in %d rounds", url, out.Progress.Rounds))
		}
		presentOutcome(out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(compileCmd)
	f := compileCmd.Flags()
	f.StringVarP(&namedQuery, "query", "q", "", "Named query to compile")
	f.StringVar(&queryText, "run", "", "Ad-hoc query text to compile")
	f.String("address", "localhost:14310", "Compiler service address")
	f.Bool("insecure", true, "Connect without TLS")
	f.String("root", ".", "Directory imports are resolved against")
	f.String("mode", config.ModeCompileAndRender, "compile_and_render or compile_only")
	f.Int("max-rows", 1000, "Maximum rows sent back for a query run (0 for all)")
	f.BoolVar(&unary, "unary", false, "Send everything in one Compile call instead of negotiating")
	f.StringVar(&schemaFile, "schema", "", "Table schema JSON sent with --unary")

	flagKeys["address"] = "client.address"
	flagKeys["insecure"] = "client.insecure"
	flagKeys["root"] = "client.root"
	flagKeys["mode"] = "client.mode"
	flagKeys["max-rows"] = "client.max_rows"
}

// readPrimary reads the document and names it by its slash path relative to root.
func readPrimary(root, file string) (url, content string, err error) {
	b, err := os.ReadFile(file)
	if err != nil {
		return "", "", fmt.Errorf("read %s: %w", file, err)
	}
	url = filepath.Base(file)
	absRoot, rerr := filepath.Abs(root)
	absFile, ferr := filepath.Abs(file)
	if rerr == nil && ferr == nil {
		if rel, err := filepath.Rel(absRoot, absFile); err == nil && !strings.HasPrefix(rel, "..") {
			url = filepath.ToSlash(rel)
		}
	}
	return url, string(b), nil
}

// keychainDSN looks up connections that are not configured.
func keychainDSN(name string) (string, error) {
	km, err := keychain.GetManager()
	if err != nil {
		return "", err
	}
	return km.LoadDSN(name)
}

func describeEvent(e resolver.Event) string {
	switch e.Type {
	case resolver.EventImport:
		return fmt.Sprintf("Reading %s", strings.Join(e.Items, ", "))
	case resolver.EventTableSchemas:
		return fmt.Sprintf("Inspecting %s on %s", strings.Join(e.Items, ", "), e.Connection)
	case resolver.EventSQLBlock:
		return fmt.Sprintf("Describing SQL block %s on %s", strings.Join(e.Items, ", "), e.Connection)
	case resolver.EventRun:
		return fmt.Sprintf("Running query on %s", e.Connection)
	}
	return e.Message
}

func presentFailure(err error) {
	var failure *resolver.CompileFailure
	switch {
	case errors.As(err, &failure):
		pterm.Error.Println(failure.Content)
		if len(failure.Problems) < 2 {
			return
		}
		for _, p := range failure.Problems {
			line := ""
			if p.At != nil {
				line = fmt.Sprintf(" (line %d)", p.At.Line+1)
			}
			pterm.Println(pterm.Gray(fmt.Sprintf("  • %s: %s%s", p.Severity, p.Message, line)))
		}
	default:
		if _, ok := status.FromError(err); ok {
			logging.PresentStreamError(err)
		}
	}
}

func presentOutcome(out *resolver.Outcome) {
	done := out.Complete
	for _, p := range done.Problems {
		pterm.Warning.Println(p.Message)
	}
	if done.Connection != "" {
		pterm.Info.Printfln("Connection: %s", done.Connection)
	}
	pterm.DefaultSection.Println("Result")
	fmt.Println(done.Content)

	if res := out.Progress.Result; res != nil {
		pterm.DefaultSection.Println("Rows")
		if err := render.Text(os.Stdout, res.Columns, res.Data, res.TotalRows); err != nil {
			logger.Warn("render rows", zap.Error(err))
		}
	}
}
