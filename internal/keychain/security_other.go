// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

//go:build !darwin

package keychain

import "errors"

var errNoSecurity = errors.New("security backend only available on macOS")

// securityBackend is a stub for non-macOS platforms.
type securityBackend struct{}

func newSecurityBackend() (*securityBackend, error) { return nil, errNoSecurity }

func (s *securityBackend) Set(string, string) error   { return errNoSecurity }
func (s *securityBackend) Get(string) (string, error) { return "", errNoSecurity }
func (s *securityBackend) Delete(string) error        { return errNoSecurity }
