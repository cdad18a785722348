package main

import (
	"fmt"
	"strings"

	keypool "github.com/rbaliyan/config-keypool"
	"github.com/rbaliyan/config-keypool/internal/symmetric"
)

type inspectCmd struct {
	Input string `arg:"" optional:"" help:"The path to the envelope file. Defaults to stdin."`
}

// Run prints the envelope layout. It needs no key set and never verifies.
func (cmd *inspectCmd) Run(_ *Globals, s *streams) error {
	text, err := readInput(cmd.Input, s.in)
	if err != nil {
		return err
	}

	e, err := keypool.SplitEnvelope(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(s.out, "mac:        %x\nkey entry:  %d\nkey offset: %d\niv entry:   %d\niv offset:  %d\nciphertext: %d bytes\n",
		e.MAC, e.Header.KeyEntry(), e.Header.KeyOffset(), e.Header.IVEntry(), e.Header.IVOffset(), len(e.Ciphertext))
	return err
}

type algorithmsCmd struct{}

func (cmd *algorithmsCmd) Run(_ *Globals, s *streams) error {
	for _, alg := range symmetric.Algorithms() {
		if _, err := fmt.Fprintf(s.out, "%-14s key=%d\n", alg, keypool.KeyLength(alg)); err != nil {
			return err
		}
	}
	return nil
}
