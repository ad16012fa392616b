// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"compilerd/service/internal/compiler/lite"
	"compilerd/service/internal/server"
)

// serveCmd runs the Compiler gRPC service until SIGINT or SIGTERM.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Compiler gRPC service",
	Long: `The serve command hosts the Compiler service (unary Compile and bidirectional
CompileStream) together with the standard gRPC health service. On SIGINT or SIGTERM
the health status flips to NOT_SERVING and open streams get shutdown_timeout to finish.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sc := cfg.Server
		svc := server.NewService(lite.New(), server.ServiceOptions{
			DefaultConnection: sc.DefaultConnection,
			CompileOnly:       sc.CompileOnly,
			Logger:            logger,
		})
		srv, err := server.New(svc, server.Options{
			TLSCert:         sc.TLSCert,
			TLSKey:          sc.TLSKey,
			MaxMessageBytes: sc.MaxMessageBytes,
			ShutdownTimeout: sc.ShutdownTimeout,
			Logger:          logger,
		})
		if err != nil {
			return err
		}

		lis, err := net.Listen("tcp", sc.Listen)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", sc.Listen, err)
		}
		logger.Info("compiler service listening",
			zap.String("addr", lis.Addr().String()),
			zap.Bool("tls", sc.TLSCert != ""),
			zap.Bool("compile_only", sc.CompileOnly),
			zap.String("version", Version))
		if err := srv.Serve(ctx, lis); err != nil {
			return err
		}
		logger.Info("compiler service stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	f := serveCmd.Flags()
	f.String("listen", "0.0.0.0:14310", "Address to listen on")
	f.String("tls-cert", "", "TLS certificate file")
	f.String("tls-key", "", "TLS key file")
	f.Bool("compile-only", false, "Never ask clients to run queries, whatever mode they request")
	f.String("default-connection", "default_connection", "Name of the implicit connection")
	f.Int("max-message-bytes", 64<<20, "Maximum gRPC message size")
	f.Duration("shutdown-timeout", 0, "Grace period for open streams on shutdown (default 10s)")

	flagKeys["listen"] = "server.listen"
	flagKeys["tls-cert"] = "server.tls_cert"
	flagKeys["tls-key"] = "server.tls_key"
	flagKeys["compile-only"] = "server.compile_only"
	flagKeys["default-connection"] = "server.default_connection"
	flagKeys["max-message-bytes"] = "server.max_message_bytes"
	flagKeys["shutdown-timeout"] = "server.shutdown_timeout"
}
