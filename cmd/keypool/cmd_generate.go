package main

import (
	"bytes"
	"os"

	keypool "github.com/rbaliyan/config-keypool"
)

type generateCmd struct {
	Output  string `arg:"" optional:"" type:"path" help:"The output path for the key set. Defaults to stdout."`
	Entries int    `short:"n" default:"32" help:"The number of entries to generate."`
}

func (cmd *generateCmd) Run(_ *Globals, s *streams) error {
	keys, err := keypool.GenerateKeySet(cmd.Entries)
	if err != nil {
		return err
	}

	if cmd.Output == "" || cmd.Output == "-" {
		return keypool.WriteKeySet(s.out, keys)
	}

	var buf bytes.Buffer
	if err := keypool.WriteKeySet(&buf, keys); err != nil {
		return err
	}

	// Key sets are secrets. The mode of an existing file is tightened before
	// anything is written to it.
	f, err := os.OpenFile(cmd.Output, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if err := f.Chmod(0600); err != nil {
		f.Close()
		return err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
