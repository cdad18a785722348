package main

import (
	"context"
	"fmt"
	"strings"
)

type encryptCmd struct {
	Input string `arg:"" optional:"" help:"The path to the plaintext file. Defaults to stdin."`
}

func (cmd *encryptCmd) Run(g *Globals, s *streams) error {
	c, _, _, err := openCipher(g, s)
	if err != nil {
		return err
	}
	defer c.Pool().Destroy()

	plaintext, err := readInput(cmd.Input, s.in)
	if err != nil {
		return err
	}

	envelope, err := c.EncryptContext(context.Background(), plaintext)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(s.out, envelope)
	return err
}

type decryptCmd struct {
	Input string `arg:"" optional:"" help:"The path to the envelope file. Defaults to stdin."`
}

func (cmd *decryptCmd) Run(g *Globals, s *streams) error {
	c, _, _, err := openCipher(g, s)
	if err != nil {
		return err
	}
	defer c.Pool().Destroy()

	text, err := readInput(cmd.Input, s.in)
	if err != nil {
		return err
	}

	plaintext, err := c.DecryptContext(context.Background(), strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}

	_, err = s.out.Write(plaintext)
	return err
}
