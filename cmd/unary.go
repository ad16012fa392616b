// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pterm/pterm"
	"go.uber.org/zap"
	"google.golang.org/grpc/status"

	"compilerd/service/internal/bridge"
	"compilerd/service/internal/bridge/grpcclient"
	"compilerd/service/internal/bridge/model"
	"compilerd/service/internal/logging"
)

// compileUnary sends the primary document, every other model file below
// client.root and the --schema blob in one Compile call.
func compileUnary(ctx context.Context, url, content string) error {
	cc := cfg.Client
	refs, err := collectReferences(cc.Root, url)
	if err != nil {
		return err
	}
	var schema string
	if schemaFile != "" {
		b, err := os.ReadFile(schemaFile)
		if err != nil {
			return fmt.Errorf("read schema %s: %w", schemaFile, err)
		}
		schema = string(b)
	}

	b := bridge.New()
	if err := b.Connect(ctx, cc.Address, grpcclient.DialOptions{Insecure: cc.Insecure}); err != nil {
		return err
	}
	defer b.Close(ctx)

	modelJSON, sql, err := b.Compile(ctx, &model.Inbound{
		Type:       model.InboundCompile,
		Document:   &model.Document{URL: url, Content: content},
		References: refs,
		Schema:     schema,
		Query:      namedQuery,
	})
	if err != nil {
		if _, ok := status.FromError(err); ok {
			logging.PresentStreamError(err)
		}
		return err
	}
	logger.Debug("unary compile done", zap.Int("references", len(refs)), zap.Bool("query", sql != ""))
	if sql != "" {
		pterm.DefaultSection.Println("SQL")
		fmt.Println(sql)
		return nil
	}
	pterm.DefaultSection.Println("Model")
	fmt.Println(modelJSON)
	return nil
}

// collectReferences reads every .malloy file below root except primary, named
// by slash path relative to root.
func collectReferences(root, primary string) ([]model.Document, error) {
	if root == "" {
		root = "."
	}
	var refs []model.Document
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".malloy" {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		url := filepath.ToSlash(rel)
		if url == primary {
			return nil
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		refs = append(refs, model.Document{URL: url, Content: string(b)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}
