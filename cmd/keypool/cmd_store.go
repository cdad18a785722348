package main

import (
	"context"
	"fmt"

	"github.com/rbaliyan/config-keypool/store"
)

// openStore opens the configured store. The returned func closes the store
// and destroys the pool.
func openStore(g *Globals, s *streams) (*store.Store, func(), error) {
	c, cfg, log, err := openCipher(g, s)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Store == "" {
		c.Pool().Destroy()
		return nil, nil, fmt.Errorf("no store: pass --store, set %s or add store to the config file", envStore)
	}

	st, err := store.Open(store.Config{Path: cfg.Store, SyncWrites: true, Logger: log}, c)
	if err != nil {
		c.Pool().Destroy()
		return nil, nil, err
	}

	return st, func() {
		if err := st.Close(); err != nil {
			log.WithError(err).Error("failed to close store")
		}
		c.Pool().Destroy()
	}, nil
}

type putCmd struct {
	Key   string `arg:"" help:"The key to store the value under."`
	Input string `arg:"" optional:"" help:"The path to the value file. Defaults to stdin."`
}

func (cmd *putCmd) Run(g *Globals, s *streams) error {
	value, err := readInput(cmd.Input, s.in)
	if err != nil {
		return err
	}

	st, done, err := openStore(g, s)
	if err != nil {
		return err
	}
	defer done()

	return st.Put(context.Background(), cmd.Key, value)
}

type getCmd struct {
	Key string `arg:"" help:"The key to read."`
}

func (cmd *getCmd) Run(g *Globals, s *streams) error {
	st, done, err := openStore(g, s)
	if err != nil {
		return err
	}
	defer done()

	value, err := st.Get(context.Background(), cmd.Key)
	if err != nil {
		return err
	}

	_, err = s.out.Write(value)
	return err
}

type deleteCmd struct {
	Key string `arg:"" help:"The key to remove."`
}

func (cmd *deleteCmd) Run(g *Globals, s *streams) error {
	st, done, err := openStore(g, s)
	if err != nil {
		return err
	}
	defer done()

	return st.Delete(context.Background(), cmd.Key)
}

type listCmd struct{}

func (cmd *listCmd) Run(g *Globals, s *streams) error {
	st, done, err := openStore(g, s)
	if err != nil {
		return err
	}
	defer done()

	keys, err := st.Keys(context.Background())
	if err != nil {
		return err
	}
	for _, k := range keys {
		if _, err := fmt.Fprintln(s.out, k); err != nil {
			return err
		}
	}
	return nil
}

